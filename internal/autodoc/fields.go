package autodoc

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

const fieldTableHeader = "| Field | Type | Description |\n| --- | --- | --- |"

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// RenderFields renders fields as a markdown table, inlining flattened
// fields. item names the enclosing descriptor for error context.
func (r *Renderer) RenderFields(item string, fields []FieldInfo) (string, error) {
	return r.newPass(item).fieldTable(fields, item)
}

// fieldTable renders the table, or "" when there are no rows. owner seeds
// the flatten path so a struct flattening itself is caught.
func (p *pass) fieldTable(fields []FieldInfo, owner string) (string, error) {
	var path []string
	if owner != "" {
		path = []string{owner}
	}
	rows, err := p.fieldRows(fields, path)
	if err != nil {
		return "", err
	}
	return table(fieldTableHeader, rows), nil
}

func (p *pass) fieldRows(fields []FieldInfo, path []string) ([]string, error) {
	var rows []string
	for _, f := range fields {
		if !f.Flattened {
			rows = append(rows, p.fieldRow(f))
			continue
		}
		inlined, err := p.flatten(f, path)
		if err != nil {
			return nil, err
		}
		rows = append(rows, inlined...)
	}
	return rows, nil
}

func (p *pass) fieldRow(f FieldInfo) string {
	name := f.Name
	if f.Omittable {
		name += "?"
	}
	typ := p.resolve(f.FieldType)
	if f.Nullable {
		typ += "?"
	}
	return tableRow(name, typ, InlineDoc(deref(f.Doc)))
}

// flatten returns the rows of the struct a flattened field points at.
func (p *pass) flatten(f FieldInfo, path []string) ([]string, error) {
	expr, err := ParseType(f.FieldType)
	if err != nil {
		return nil, p.fail(f.Name, fmt.Errorf("%w: %w", ErrMalformedFlattenTarget, err))
	}
	target := expr.Unwrap()
	if target.Kind != ExprReference {
		return nil, p.fail(f.Name, fmt.Errorf("%w: %s is a %s, not a struct", ErrMalformedFlattenTarget, f.FieldType, target.Kind))
	}
	for _, seen := range path {
		if seen == target.Name {
			return nil, p.fail(f.Name, cycleError(path, target.Name))
		}
	}

	loc, ok := p.store.Lookup(target.Name)
	if !ok {
		return nil, p.fail(f.Name, fmt.Errorf("%w: %s has no descriptor", ErrMalformedFlattenTarget, target.Name))
	}
	info, err := p.store.Load(loc)
	if err != nil {
		return nil, p.fail(f.Name, fmt.Errorf("%w: loading %s: %w", ErrMalformedFlattenTarget, loc, err))
	}
	if info.Item.Struct == nil {
		return nil, p.fail(f.Name, fmt.Errorf("%w: %s is a %s, not a struct", ErrMalformedFlattenTarget, target.Name, info.Item.Kind))
	}

	next := append(path[:len(path):len(path)], target.Name)
	return p.fieldRows(info.Item.Struct.Fields, next)
}

// InlineDoc flattens doc text into a single table cell. Paragraph breaks
// become <br><br> and hard-wrapped lines are joined with a space.
func InlineDoc(doc string) string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return ""
	}
	paragraphs := paragraphBreak.Split(doc, -1)
	for i, para := range paragraphs {
		paragraphs[i] = softWrap(para)
	}
	return strings.ReplaceAll(strings.Join(paragraphs, "<br><br>"), "|", `\|`)
}

func softWrap(s string) string {
	rs := []rune(s)
	for i := 1; i < len(rs)-1; i++ {
		if rs[i] == '\n' && !unicode.IsSpace(rs[i-1]) && !unicode.IsSpace(rs[i+1]) {
			rs[i] = ' '
		}
	}
	return string(rs)
}

func tableRow(cells ...string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func table(header string, rows []string) string {
	if len(rows) == 0 {
		return ""
	}
	return header + "\n" + strings.Join(rows, "\n")
}
