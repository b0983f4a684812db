package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcdickinson/refdoc/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeRenderer struct {
	pages map[string]string
	items []rpc.ItemSummary
	got   []rpc.RenderRequest
}

func (f *fakeRenderer) Render(_ context.Context, req rpc.RenderRequest) (*rpc.RenderResponse, error) {
	f.got = append(f.got, req)
	page, ok := f.pages[req.Name]
	if !ok {
		return nil, errors.New("daemon returned 404: not found")
	}
	return &rpc.RenderResponse{Name: req.Name, Markdown: page}, nil
}

func (f *fakeRenderer) Items(context.Context) (*rpc.ItemsResponse, error) {
	return &rpc.ItemsResponse{Items: f.items}, nil
}

func (f *fakeRenderer) Build(context.Context, rpc.BuildRequest) (*rpc.BuildResponse, error) {
	return &rpc.BuildResponse{Version: "0.1.0", Rendered: []string{"todel/User.json"}}, nil
}

const postPage = "# Post\n\n| Field | Type | Description |\n| --- | --- | --- |\n| author | [User](/reference/todel/User) |  |\n"

func newFake() *fakeRenderer {
	return &fakeRenderer{
		pages: map[string]string{
			"Post":            postPage,
			"todel/Post.json": postPage,
		},
		items: []rpc.ItemSummary{
			{Name: "Post", Package: "todel", Kind: "struct", Locator: "todel/Post.json"},
			{Name: "get_user", Package: "oprish", Kind: "route", Locator: "oprish/get_user.json"},
		},
	}
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(res.Content))
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestRenderItem_RewritesLinks(t *testing.T) {
	t.Parallel()
	s := New(newFake(), "/reference/", "refdoc")

	res, err := s.handleRenderItem(context.Background(), callTool(map[string]any{"name": "Post"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}
	want := strings.Replace(postPage, "(/reference/todel/User)", "(autodoc://todel/User)", 1)
	if diff := cmp.Diff(want, resultText(t, res)); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderItem_Errors(t *testing.T) {
	t.Parallel()
	s := New(newFake(), "/reference/", "refdoc")

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing_name", map[string]any{}},
		{"unknown_item", map[string]any{"name": "Member"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleRenderItem(context.Background(), callTool(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsError {
				t.Error("expected a tool error")
			}
		})
	}
}

func TestListItems_FilterAndURIs(t *testing.T) {
	t.Parallel()
	s := New(newFake(), "/reference/", "refdoc")

	res, err := s.handleListItems(context.Background(), callTool(map[string]any{"package": "oprish"}))
	if err != nil {
		t.Fatal(err)
	}
	var items []listedItem
	if err := json.Unmarshal([]byte(resultText(t, res)), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Name != "get_user" || items[0].URI != "autodoc://oprish/get_user" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestReadResource(t *testing.T) {
	t.Parallel()
	fake := newFake()
	s := New(fake, "/reference/", "refdoc")

	var req mcp.ReadResourceRequest
	req.Params.URI = "autodoc://todel/Post#fields"
	contents, err := s.handleReadResource(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected one resource, got %d", len(contents))
	}
	text := contents[0].(mcp.TextResourceContents)
	if text.URI != req.Params.URI || !strings.Contains(text.Text, "autodoc://todel/User") {
		t.Errorf("unexpected resource: %+v", text)
	}
	if diff := cmp.Diff([]rpc.RenderRequest{{Name: "todel/Post.json", Fragment: "fields"}}, fake.got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestParseURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		uri          string
		wantLocator  string
		wantFragment string
		wantErr      bool
	}{
		{"plain", "autodoc://todel/User", "todel/User.json", "", false},
		{"fragment", "autodoc://oprish/get_user#response", "oprish/get_user.json", "response", false},
		{"wrong_scheme", "rsdoc://todel/User", "", "", true},
		{"no_package", "autodoc://User", "", "", true},
		{"nested", "autodoc://a/b/c", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, frag, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if loc != tt.wantLocator || frag != tt.wantFragment {
				t.Errorf("got (%q, %q), want (%q, %q)", loc, frag, tt.wantLocator, tt.wantFragment)
			}
		})
	}
}

func TestInstructionsNameBinary(t *testing.T) {
	t.Parallel()
	if !strings.Contains(instructions, "%[1]s render <name>") {
		t.Error("instructions should reference the binary name")
	}
}
