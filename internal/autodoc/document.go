package autodoc

import (
	"fmt"
	"strings"
	"unicode"
)

// ExampleSeparator divides a doc comment into its description and a
// trailing example block.
const ExampleSeparator = "-----"

// FragFields names the field table fragment of a struct document.
const FragFields = "fields"

// Fragment is one addressable section of a rendered document.
type Fragment struct {
	Name    string
	Content string
}

// Document is a rendered descriptor.
type Document struct {
	Title     string
	Summary   string
	Example   string
	Kind      ItemKind
	Markdown  string
	Fragments []Fragment
}

// Fragment returns the named section, if present.
func (d *Document) Fragment(name string) (string, bool) {
	for _, f := range d.Fragments {
		if f.Name == name {
			return f.Content, true
		}
	}
	return "", false
}

// Render returns the markdown page for info.
func (r *Renderer) Render(info *ItemInfo) (string, error) {
	doc, err := r.RenderDocument(info)
	if err != nil {
		return "", err
	}
	return doc.Markdown, nil
}

// RenderDocument renders info and keeps its sections addressable.
func (r *Renderer) RenderDocument(info *ItemInfo) (*Document, error) {
	p := r.newPass(info.Name)
	summary, example := SplitDoc(info.DocText())
	doc := &Document{
		Title:   TitleCase(info.Name),
		Summary: summary,
		Example: example,
		Kind:    info.Item.Kind,
	}

	var banner string
	var err error
	switch item := info.Item; {
	case item.Struct != nil:
		var fields string
		fields, err = p.fieldTable(item.Struct.Fields, info.Name)
		if fields != "" {
			doc.Fragments = append(doc.Fragments, Fragment{Name: FragFields, Content: fields})
		}
	case item.Enum != nil:
		model := doc.Title
		for _, v := range item.Enum.Variants {
			var frag Fragment
			if frag, err = p.variantSection(v, item.Enum, model); err != nil {
				break
			}
			doc.Fragments = append(doc.Fragments, frag)
		}
	case item.Route != nil:
		banner = routeBanner(item.Route.Method, item.Route.Route)
		doc.Fragments, err = p.routeSections(item.Route)
	default:
		err = p.fail("", fmt.Errorf("%w: %q", ErrUnsupportedItemKind, item.Kind))
	}
	if err != nil {
		return nil, err
	}

	doc.Markdown = joinBlocks("# "+doc.Title, banner, summary, joinFragments(doc.Fragments), example) + "\n"
	return doc, nil
}

// SplitDoc splits doc at the first ExampleSeparator. Both halves are trimmed;
// example is empty when there is no separator.
func SplitDoc(doc string) (summary, example string) {
	summary, example, _ = strings.Cut(doc, ExampleSeparator)
	return strings.TrimSpace(summary), strings.TrimSpace(example)
}

// TitleCase turns an identifier such as user_id or userCreated into a
// heading ("User Id", "User Created"). Digits never start a word, so
// version_2 becomes "Version2".
func TitleCase(name string) string {
	var b strings.Builder
	wordStart := true
	for _, r := range name {
		if r == '_' {
			wordStart = true
			continue
		}
		if wordStart {
			r = unicode.ToUpper(r)
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		wordStart = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Slug lowercases a title and joins its words with dashes.
func Slug(title string) string {
	return strings.ToLower(strings.Join(strings.Fields(title), "-"))
}

func joinFragments(frags []Fragment) string {
	blocks := make([]string, len(frags))
	for i, f := range frags {
		blocks[i] = f.Content
	}
	return joinBlocks(blocks...)
}
