package autodoc

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const dataDescription = "The data of this variant."

// tagScheme is how an enum marks which variant a value holds.
type tagScheme int

const (
	// schemeUntagged has no discriminator; variants are told apart by shape.
	schemeUntagged tagScheme = iota
	// schemeInternal puts the tag next to the variant's own fields.
	schemeInternal
	// schemeAdjacent puts the tag and the variant data under separate keys.
	schemeAdjacent
)

func schemeOf(e *EnumInfo) tagScheme {
	switch {
	case e.Untagged || e.Tag == nil:
		return schemeUntagged
	case e.Content != nil:
		return schemeAdjacent
	default:
		return schemeInternal
	}
}

// RenderVariant renders the body of one variant of the enum named model.
func (r *Renderer) RenderVariant(model string, e *EnumInfo, v EnumVariant) (string, error) {
	return r.newPass(model).variantBody(v, e, TitleCase(model), false)
}

// variantSection is the "## Variant" heading with its doc, body and example.
func (p *pass) variantSection(v EnumVariant, e *EnumInfo, model string) (Fragment, error) {
	summary, example := SplitDoc(deref(v.Doc))
	body, err := p.variantBody(v, e, model, false)
	if err != nil {
		return Fragment{}, err
	}
	title := TitleCase(v.Name)
	return Fragment{
		Name:    Slug(title),
		Content: joinBlocks("## "+title, summary, body, example),
	}, nil
}

// variantBody renders the tag, content and field rows of v. In brief mode no
// summaries of referenced types are expanded and struct data is introduced
// inline instead of under a heading.
func (p *pass) variantBody(v EnumVariant, e *EnumInfo, model string, brief bool) (string, error) {
	p = p.inVariant(v.Name)
	scheme := schemeOf(e)

	var rows []string
	if scheme != schemeUntagged {
		literal := RenameVariant(v.Name, deref(e.RenameAll))
		rows = append(rows, tableRow(*e.Tag, `"`+literal+`"`, fmt.Sprintf("The %s of this %s variant.", *e.Tag, model)))
	}

	switch v.Kind {
	case VariantUnit:
		if scheme == schemeAdjacent {
			rows = append(rows, tableRow(*e.Content, "Null", "This variant carries no data."))
		}
		return table(fieldTableHeader, rows), nil

	case VariantTuple:
		typ := p.resolve(v.FieldType)
		if scheme == schemeAdjacent {
			rows = append(rows, tableRow(*e.Content, typ, dataDescription))
			return table(fieldTableHeader, rows), nil
		}
		var summary string
		if !brief {
			var err error
			if summary, err = p.summaryOfSig(v.FieldType); err != nil {
				return "", err
			}
		}
		return joinBlocks(table(fieldTableHeader, rows), "This variant contains a "+typ, summary), nil

	case VariantStruct:
		if scheme != schemeAdjacent {
			fieldRows, err := p.fieldRows(v.Fields, []string{p.item})
			if err != nil {
				return "", err
			}
			return table(fieldTableHeader, append(rows, fieldRows...)), nil
		}

		dataTitle := TitleCase(v.Name) + " Data"
		rows = append(rows, tableRow(*e.Content, dataTitle, dataDescription))
		fields, err := p.fieldTable(v.Fields, p.item)
		if err != nil {
			return "", err
		}
		var data string
		switch {
		case fields == "":
		case brief:
			data = "With the data of this variant being:\n\n" + fields
		default:
			data = "### " + dataTitle + "\n\n" + fields
		}
		return joinBlocks(table(fieldTableHeader, rows), data), nil
	}

	return "", p.fail("", fmt.Errorf("%w: variant type %q", ErrUnsupportedItemKind, v.Kind))
}

// RenameVariant applies a serde rename_all rule to a variant name. Unknown
// rules leave the name unchanged.
func RenameVariant(name, rule string) string {
	switch rule {
	case "SCREAMING_SNAKE_CASE":
		return strings.ToUpper(splitWords(name, '_'))
	case "snake_case":
		return strings.ToLower(splitWords(name, '_'))
	case "SCREAMING-KEBAB-CASE":
		return strings.ToUpper(splitWords(name, '-'))
	case "kebab-case":
		return strings.ToLower(splitWords(name, '-'))
	case "lowercase":
		return strings.ToLower(name)
	case "UPPERCASE":
		return strings.ToUpper(name)
	case "camelCase":
		if name == "" {
			return name
		}
		first, size := utf8.DecodeRuneInString(name)
		return string(unicode.ToLower(first)) + name[size:]
	}
	return name
}

// splitWords inserts sep before every uppercase letter that follows a
// character which is neither uppercase nor already a separator.
func splitWords(name string, sep rune) string {
	var b strings.Builder
	var prev rune
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(prev) && !isSeparator(prev) {
			b.WriteRune(sep)
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || unicode.IsSpace(r)
}
