package daemon

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jcdickinson/refdoc/internal/cas"
	"github.com/jcdickinson/refdoc/internal/config"
	"github.com/jcdickinson/refdoc/internal/rpc"
)

const userJSON = `{"name":"User","doc":"A user.","category":"user","hidden":false,"package":"todel",
"item":{"type":"struct","fields":[{"name":"id","doc":null,"field_type":"u64","flattened":false,"nullable":false,"ommitable":false}]}}`

const statusJSON = `{"name":"Status","doc":null,"category":"user","hidden":false,"package":"todel",
"item":{"type":"enum","tag":null,"untagged":true,"content":null,"rename_all":null,
"variants":[{"type":"unit","name":"Online","doc":"The user is online."}]}}`

func writeDescriptors(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func startServer(t *testing.T) (*Client, string, string) {
	t.Helper()
	root := t.TempDir()
	writeDescriptors(t, root, map[string]string{
		"index.json":        `{"version":"0.1.0","items":["todel/User.json","todel/Status.json"]}`,
		"todel/User.json":   userJSON,
		"todel/Status.json": statusJSON,
	})
	out := t.TempDir()

	// Unix socket paths are length-limited, so keep this one short.
	sockDir, err := os.MkdirTemp("", "refdoc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(sockDir) })
	socketPath := filepath.Join(sockDir, "d.sock")

	cfg := &config.Config{
		Autodoc: config.AutodocConfig{Dir: root},
		Build:   config.BuildConfig{OutputDir: out, Workers: 2},
	}
	srv := NewServer(cfg, nil, cas.New(t.TempDir()), socketPath)
	go srv.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	client := NewClient(socketPath)
	deadline := time.Now().Add(5 * time.Second)
	for !client.IsAvailable() {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return client, root, out
}

func TestServer_Render(t *testing.T) {
	client, _, _ := startServer(t)
	ctx := context.Background()

	want := "# User\n\nA user.\n\n| Field | Type | Description |\n| --- | --- | --- |\n| id | Number |  |\n"

	t.Run("by_name", func(t *testing.T) {
		resp, err := client.Render(ctx, rpc.RenderRequest{Name: "User"})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, resp.Markdown); diff != "" {
			t.Errorf("markdown mismatch (-want +got):\n%s", diff)
		}
		if resp.Locator != "todel/User.json" || resp.ContentHash != cas.Hash(want) {
			t.Errorf("unexpected metadata: %+v", resp)
		}
		if diff := cmp.Diff([]string{"fields"}, resp.Fragments); diff != "" {
			t.Errorf("fragments mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("by_locator", func(t *testing.T) {
		resp, err := client.Render(ctx, rpc.RenderRequest{Name: "todel/User.json"})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Name != "User" || resp.Markdown != want {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("fragment", func(t *testing.T) {
		resp, err := client.Render(ctx, rpc.RenderRequest{Name: "Status", Fragment: "online"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(resp.Markdown, "## Online") {
			t.Errorf("unexpected fragment: %q", resp.Markdown)
		}
	})

	t.Run("missing_item", func(t *testing.T) {
		_, err := client.Render(ctx, rpc.RenderRequest{Name: "Member"})
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %v", err)
		}
	})

	t.Run("missing_fragment", func(t *testing.T) {
		_, err := client.Render(ctx, rpc.RenderRequest{Name: "User", Fragment: "nope"})
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %v", err)
		}
	})
}

func TestServer_ItemsAndStatus(t *testing.T) {
	client, _, _ := startServer(t)
	ctx := context.Background()

	items, err := client.Items(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []rpc.ItemSummary{
		{Name: "User", Package: "todel", Category: "user", Kind: "struct", Locator: "todel/User.json"},
		{Name: "Status", Package: "todel", Category: "user", Kind: "enum", Locator: "todel/Status.json"},
	}
	if diff := cmp.Diff(want, items.Items); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.Version != "0.1.0" || status.Items != 2 || status.LastBuild != nil {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestServer_Build(t *testing.T) {
	client, _, out := startServer(t)

	resp, err := client.Build(context.Background(), rpc.BuildRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"todel/User.json", "todel/Status.json"}, resp.Rendered); diff != "" {
		t.Errorf("rendered mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(out, "todel", "Status.md")); err != nil {
		t.Errorf("expected Status page: %v", err)
	}
}

func TestServer_ClearCacheReloads(t *testing.T) {
	client, root, _ := startServer(t)
	ctx := context.Background()

	if _, err := client.Render(ctx, rpc.RenderRequest{Name: "User"}); err != nil {
		t.Fatal(err)
	}
	writeDescriptors(t, root, map[string]string{
		"todel/User.json": strings.Replace(userJSON, "A user.", "A registered user.", 1),
	})

	cached, err := client.Render(ctx, rpc.RenderRequest{Name: "User"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(cached.Markdown, "A user.") {
		t.Error("render should be served from memory before clear-cache")
	}

	if err := client.ClearCache(ctx, false); err != nil {
		t.Fatal(err)
	}
	fresh, err := client.Render(ctx, rpc.RenderRequest{Name: "User"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fresh.Markdown, "A registered user.") {
		t.Errorf("expected reloaded descriptor, got %q", fresh.Markdown)
	}
}

func TestServer_BuildReloadsDescriptors(t *testing.T) {
	client, root, out := startServer(t)
	ctx := context.Background()

	if _, err := client.Build(ctx, rpc.BuildRequest{}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.Render(ctx, rpc.RenderRequest{Name: "User"}); err != nil {
		t.Fatal(err)
	}

	writeDescriptors(t, root, map[string]string{
		"todel/User.json": strings.Replace(userJSON, "A user.", "A registered user.", 1),
	})

	resp, err := client.Build(ctx, rpc.BuildRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"todel/User.json"}, resp.Rendered); diff != "" {
		t.Errorf("rendered mismatch (-want +got):\n%s", diff)
	}
	page, err := os.ReadFile(filepath.Join(out, "todel", "User.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "A registered user.") {
		t.Errorf("page was built from the old descriptor: %q", page)
	}

	rendered, err := client.Render(ctx, rpc.RenderRequest{Name: "User"})
	if err != nil {
		t.Fatal(err)
	}
	if rendered.Markdown != string(page) {
		t.Errorf("render disagrees with the build:\n%s", cmp.Diff(string(page), rendered.Markdown))
	}
}

func TestBuildKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"same_options", buildKey("/out", false), buildKey("/out", false), true},
		{"hidden_differs", buildKey("/out", false), buildKey("/out", true), false},
		{"dir_differs", buildKey("/out", true), buildKey("/other", true), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.a == tt.b) != tt.same {
				t.Errorf("keys %q and %q: same=%v, want %v", tt.a, tt.b, tt.a == tt.b, tt.same)
			}
		})
	}
}
