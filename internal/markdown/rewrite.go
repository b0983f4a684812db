package markdown

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	gmparser "github.com/gomarkdown/markdown/parser"
	"gopkg.in/yaml.v3"
)

func parse(src string) ast.Node {
	return gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))
}

// ExtractLinks returns the unique link destinations in src, in document order.
func ExtractLinks(src string) []string {
	seen := make(map[string]bool)
	var links []string
	ast.WalkFunc(parse(src), func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if link, ok := node.(*ast.Link); ok {
			dest := string(link.Destination)
			if dest != "" && !seen[dest] {
				seen[dest] = true
				links = append(links, dest)
			}
		}
		return ast.GoToNext
	})
	return links
}

// RewriteLinks rewrites markdown link destinations using the provided link map.
// It parses the markdown to AST to find all link destinations, then performs
// targeted string replacements to preserve original formatting.
func RewriteLinks(src string, linkMap map[string]string) string {
	if len(linkMap) == 0 {
		return src
	}

	type replacement struct {
		oldDest string
		newDest string
	}
	var replacements []replacement
	for _, dest := range ExtractLinks(src) {
		if newDest, ok := linkMap[dest]; ok {
			replacements = append(replacements, replacement{dest, newDest})
		}
	}
	if len(replacements) == 0 {
		return src
	}

	result := src

	// Inline links: [text](destination)
	for _, r := range replacements {
		result = strings.ReplaceAll(result, "]("+r.oldDest+")", "]("+r.newDest+")")
	}

	// Reference-style definitions: [ref]: destination
	refMap := make(map[string]string, len(replacements))
	for _, r := range replacements {
		refMap["]: "+r.oldDest] = "]: " + r.newDest
	}
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for oldSuffix, newSuffix := range refMap {
			if strings.HasSuffix(trimmed, oldSuffix) {
				lines[i] = strings.Replace(line, oldSuffix, newSuffix, 1)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

// RewritePrefix replaces the prefix of every link destination starting with
// from, leaving other links alone.
func RewritePrefix(src, from, to string) string {
	linkMap := make(map[string]string)
	for _, dest := range ExtractLinks(src) {
		if rest, ok := strings.CutPrefix(dest, from); ok {
			linkMap[dest] = to + rest
		}
	}
	return RewriteLinks(src, linkMap)
}

// AddFrontMatter prepends a YAML front-matter block. Keys are sorted so the
// output is stable across runs.
func AddFrontMatter(src string, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return src, nil
	}

	node, err := mappingNode(fields)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		_ = enc.Close()
		return "", fmt.Errorf("encoding front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(buf.Bytes())
	b.WriteString("---\n\n")
	b.WriteString(src)
	return b.String(), nil
}

// SplitFrontMatter separates a leading front-matter block from the body.
// Documents without one are returned unchanged with a nil map.
func SplitFrontMatter(src string) (map[string]any, string, error) {
	rest, ok := strings.CutPrefix(src, "---\n")
	if !ok {
		return nil, src, nil
	}
	head, body, ok := strings.Cut(rest, "\n---\n")
	if !ok {
		return nil, src, nil
	}
	fields := make(map[string]any)
	if err := yaml.Unmarshal([]byte(head), &fields); err != nil {
		return nil, src, fmt.Errorf("decoding front matter: %w", err)
	}
	return fields, strings.TrimPrefix(body, "\n"), nil
}

func mappingNode(m map[string]any) (*yaml.Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		val, err := valueNode(m[k])
		if err != nil {
			return nil, fmt.Errorf("front matter key %q: %w", k, err)
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, val)
	}
	return n, nil
}

func valueNode(v any) (*yaml.Node, error) {
	switch vv := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: vv}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(vv)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(vv)}, nil
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range vv {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: item})
		}
		return seq, nil
	case map[string]any:
		return mappingNode(vv)
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
