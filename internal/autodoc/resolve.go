package autodoc

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultLinkPrefix is prepended to a descriptor's page path in links.
const DefaultLinkPrefix = "/reference/"

// DefaultOverrides maps opaque type names to fixed display text.
var DefaultOverrides = map[string]string{
	"FetchResponse": "Raw file content.",
}

type Options struct {
	// LinkPrefix defaults to DefaultLinkPrefix.
	LinkPrefix string
	// Overrides defaults to DefaultOverrides when nil.
	Overrides map[string]string
	// OnUnresolved receives a *RenderError wrapping
	// ErrUnresolvedTypeReference for every reference missing from the store.
	OnUnresolved func(err error)
}

// Renderer turns descriptors into markdown. It holds no mutable state and
// may be shared between goroutines.
type Renderer struct {
	store        Store
	linkPrefix   string
	overrides    map[string]string
	onUnresolved func(error)
}

func NewRenderer(store Store, opts Options) *Renderer {
	r := &Renderer{
		store:        store,
		linkPrefix:   opts.LinkPrefix,
		overrides:    opts.Overrides,
		onUnresolved: opts.OnUnresolved,
	}
	if r.linkPrefix == "" {
		r.linkPrefix = DefaultLinkPrefix
	}
	if r.overrides == nil {
		r.overrides = DefaultOverrides
	}
	return r
}

// ResolveType returns the display form of a type signature, linked when it
// names a descriptor in the store.
func (r *Renderer) ResolveType(sig string) string {
	return r.newPass("").resolve(sig)
}

// pass carries the location of the descriptor being rendered for error
// reporting.
type pass struct {
	*Renderer
	item    string
	variant string
}

func (r *Renderer) newPass(item string) *pass {
	return &pass{Renderer: r, item: item}
}

func (p *pass) inVariant(name string) *pass {
	child := *p
	child.variant = name
	return &child
}

func (p *pass) fail(field string, err error) error {
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return &RenderError{Item: p.item, Variant: p.variant, Field: field, Err: err}
}

func (p *pass) resolve(sig string) string {
	expr, err := ParseType(sig)
	if err != nil {
		return escapeAngles(sig)
	}
	return p.display(expr)
}

func (p *pass) display(expr *TypeExpr) string {
	expr = expr.Unwrap()
	switch expr.Kind {
	case ExprList:
		return "Array of " + p.display(expr.Inner())
	case ExprGeneric:
		return escapeAngles(expr.String())
	}

	if text, ok := p.overrides[expr.Name]; ok {
		return text
	}
	if expr.Kind == ExprPrimitive {
		return primitiveDisplay[expr.Name]
	}
	if loc, ok := p.store.Lookup(expr.Name); ok {
		return fmt.Sprintf("[%s](%s%s)", expr.Name, p.linkPrefix, PagePath(loc))
	}
	if p.onUnresolved != nil {
		p.onUnresolved(&RenderError{
			Item:    p.item,
			Variant: p.variant,
			Err:     fmt.Errorf("%w: %s", ErrUnresolvedTypeReference, expr.Name),
		})
	}
	return expr.Name
}

// summaryOf returns the brief summary of the descriptor expr refers to, or ""
// when it refers to nothing summarisable. Lists summarise their element.
func (p *pass) summaryOf(expr *TypeExpr) (string, error) {
	expr = expr.Unwrap()
	for expr.Kind == ExprList {
		expr = expr.Inner().Unwrap()
	}
	if expr.Kind != ExprReference {
		return "", nil
	}
	if _, ok := p.overrides[expr.Name]; ok {
		return "", nil
	}
	loc, ok := p.store.Lookup(expr.Name)
	if !ok {
		return "", nil
	}
	info, err := p.store.Load(loc)
	if err != nil {
		return "", p.fail("", fmt.Errorf("loading %s: %w", loc, err))
	}
	return p.brief(info)
}

func (p *pass) summaryOfSig(sig string) (string, error) {
	expr, err := ParseType(sig)
	if err != nil {
		return "", nil
	}
	return p.summaryOf(expr)
}

// brief lists a struct's fields or an enum's variants without following
// any further summaries.
func (p *pass) brief(info *ItemInfo) (string, error) {
	switch {
	case info.Item.Struct != nil:
		return p.fieldTable(info.Item.Struct.Fields, info.Name)
	case info.Item.Enum != nil:
		model := TitleCase(info.Name)
		var items []string
		for _, v := range info.Item.Enum.Variants {
			summary, _ := SplitDoc(deref(v.Doc))
			body, err := p.variantBody(v, info.Item.Enum, model, true)
			if err != nil {
				return "", err
			}
			items = append(items, joinBlocks("- "+TitleCase(v.Name), summary, body))
		}
		return strings.Join(items, "\n\n"), nil
	}
	return "", nil
}

var angleEscaper = strings.NewReplacer("<", `\<`)

func escapeAngles(s string) string {
	return angleEscaper.Replace(s)
}

// joinBlocks joins the non-empty blocks with a blank line.
func joinBlocks(blocks ...string) string {
	var kept []string
	for _, b := range blocks {
		if b != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}
