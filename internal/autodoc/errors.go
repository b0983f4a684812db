package autodoc

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnresolvedTypeReference is reported through Options.OnUnresolved and
	// never aborts a render.
	ErrUnresolvedTypeReference = errors.New("unresolved type reference")
	ErrUnsupportedItemKind     = errors.New("unsupported item kind")
	ErrMalformedFlattenTarget  = errors.New("malformed flatten target")
	ErrCyclicFlatten           = errors.New("cyclic flatten")
)

// RenderError locates a fatal render failure within the source descriptor.
type RenderError struct {
	Item    string
	Variant string
	Field   string
	Err     error
}

func (e *RenderError) Error() string {
	var b strings.Builder
	b.WriteString("rendering")
	if e.Item != "" {
		b.WriteString(" " + e.Item)
	}
	if e.Variant != "" {
		fmt.Fprintf(&b, " variant %q", e.Variant)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// cycleError reports the flatten path that looped back on itself.
func cycleError(path []string, name string) error {
	chain := append(append([]string{}, path...), name)
	return fmt.Errorf("%w: %s", ErrCyclicFlatten, strings.Join(chain, " -> "))
}
