package autodoc

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExprKind classifies a node of a parsed type signature.
type ExprKind int

const (
	ExprReference ExprKind = iota
	ExprPrimitive
	ExprList
	ExprOptional
	ExprWrapper
	ExprGeneric
)

func (k ExprKind) String() string {
	switch k {
	case ExprPrimitive:
		return "primitive"
	case ExprReference:
		return "reference"
	case ExprList:
		return "list"
	case ExprOptional:
		return "optional"
	case ExprWrapper:
		return "wrapper"
	case ExprGeneric:
		return "generic"
	}
	return fmt.Sprintf("ExprKind(%d)", int(k))
}

// TypeExpr is one node of a type signature such as Option<Vec<Box<User>>>.
// List, Optional and Wrapper nodes carry their inner expression in Args[0];
// Result also keeps its error type in Args[1].
type TypeExpr struct {
	Kind ExprKind
	Name string
	Args []*TypeExpr
}

// Wrapper names recognised by the parser.
const (
	wrapOption      = "Option"
	wrapVec         = "Vec"
	wrapBox         = "Box"
	wrapJSON        = "Json"
	wrapForm        = "Form"
	wrapResult      = "Result"
	wrapRateLimited = "RateLimitedRouteResponse"
)

var wrapperKinds = map[string]ExprKind{
	wrapOption:      ExprOptional,
	wrapVec:         ExprList,
	wrapBox:         ExprWrapper,
	wrapJSON:        ExprWrapper,
	wrapForm:        ExprWrapper,
	wrapResult:      ExprWrapper,
	wrapRateLimited: ExprWrapper,
}

var primitiveDisplay = map[string]string{
	"u8":       "Number",
	"u16":      "Number",
	"u32":      "Number",
	"u64":      "Number",
	"u128":     "Number",
	"usize":    "Number",
	"i8":       "Number",
	"i16":      "Number",
	"i32":      "Number",
	"i64":      "Number",
	"i128":     "Number",
	"isize":    "Number",
	"f32":      "Number",
	"f64":      "Number",
	"bool":     "Boolean",
	"str":      "String",
	"String":   "String",
	"TempFile": "File",
}

// ParseType parses a serialized type signature. The grammar is
// Name | Name<Expr, Expr, ...>.
func ParseType(sig string) (*TypeExpr, error) {
	p := &typeParser{src: sig}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("parsing type %q: unexpected %q at offset %d", sig, p.src[p.pos:], p.pos)
	}
	return expr, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) parseExpr() (*TypeExpr, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if c != '_' && c != ':' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			break
		}
		p.pos += size
	}
	name := p.src[start:p.pos]
	if name == "" {
		return nil, fmt.Errorf("parsing type %q: expected name at offset %d", p.src, start)
	}

	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '<' {
		if _, ok := primitiveDisplay[name]; ok {
			return &TypeExpr{Kind: ExprPrimitive, Name: name}, nil
		}
		return &TypeExpr{Kind: ExprReference, Name: name}, nil
	}

	p.pos++ // '<'
	var args []*TypeExpr
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("parsing type %q: unterminated argument list", p.src)
		}
		if p.src[p.pos] == ',' {
			p.pos++
			continue
		}
		if p.src[p.pos] == '>' {
			p.pos++
			break
		}
		return nil, fmt.Errorf("parsing type %q: unexpected %q at offset %d", p.src, p.src[p.pos], p.pos)
	}

	kind, ok := wrapperKinds[name]
	if !ok || !wrapperArity(name, len(args)) {
		kind = ExprGeneric
	}
	return &TypeExpr{Kind: kind, Name: name, Args: args}, nil
}

func wrapperArity(name string, n int) bool {
	if name == wrapResult {
		return n == 1 || n == 2
	}
	return n == 1
}

// Inner returns the wrapped expression of a List, Optional or Wrapper node.
func (e *TypeExpr) Inner() *TypeExpr {
	if len(e.Args) == 0 {
		return nil
	}
	return e.Args[0]
}

// Unwrap strips every display-transparent layer (Optional and Wrapper
// nodes) until a Primitive, Reference, List or Generic node remains. The
// result does not depend on the order in which those layers were nested.
func (e *TypeExpr) Unwrap() *TypeExpr {
	for e.Kind == ExprOptional || e.Kind == ExprWrapper {
		e = e.Inner()
	}
	return e
}

// UnwrapNamed strips outer Wrapper nodes whose names are listed, stopping at
// the first layer that is not.
func (e *TypeExpr) UnwrapNamed(names ...string) *TypeExpr {
	for e.Kind == ExprWrapper && slices.Contains(names, e.Name) {
		e = e.Inner()
	}
	return e
}

// String reproduces the signature in canonical form.
func (e *TypeExpr) String() string {
	if len(e.Args) == 0 {
		return e.Name
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "<" + strings.Join(args, ", ") + ">"
}
