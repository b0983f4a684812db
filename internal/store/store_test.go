package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jcdickinson/refdoc/internal/autodoc"
)

const userJSON = `{"name":"User","doc":"A user.","category":"user","hidden":false,"package":"todel",
"item":{"type":"struct","fields":[{"name":"id","doc":null,"field_type":"u64","flattened":false,"nullable":false,"ommitable":false}]}}`

const routeJSON = `{"name":"get_user","doc":null,"category":"user","hidden":false,"package":"oprish",
"item":{"type":"route","method":"GET","route":"/users/<id>","path_params":[{"name":"id","param_type":"u64"}],
"query_params":[],"body_type":null,"return_type":"Result<Json<User>, ErrorResponse>","guards":[]}}`

func writeFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.json":           `{"version":"0.1.0","items":["todel/User.json","oprish/get_user.json"]}`,
		"todel/User.json":      userJSON,
		"oprish/get_user.json": routeJSON,
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestOpen_LookupAndLoad(t *testing.T) {
	t.Parallel()
	d, err := Open(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	if d.Version() != "0.1.0" {
		t.Errorf("version: got %q", d.Version())
	}
	loc, ok := d.Lookup("User")
	if !ok || loc != "todel/User.json" {
		t.Fatalf("Lookup(User) = %q, %v", loc, ok)
	}
	if _, ok := d.Lookup("Member"); ok {
		t.Error("Lookup(Member) should miss")
	}

	info, err := d.Load(loc)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "User" || info.Item.Struct == nil || len(info.Item.Struct.Fields) != 1 {
		t.Errorf("unexpected descriptor: %+v", info)
	}

	again, err := d.Load(loc)
	if err != nil {
		t.Fatal(err)
	}
	if again != info {
		t.Error("second Load should return the memoised descriptor")
	}
}

func TestDir_RendersThroughStore(t *testing.T) {
	t.Parallel()
	d, err := Open(writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}

	info, err := d.Load("oprish/get_user.json")
	if err != nil {
		t.Fatal(err)
	}
	got, err := autodoc.NewRenderer(d, autodoc.Options{}).Render(info)
	if err != nil {
		t.Fatal(err)
	}
	want := "# Get User\n\n" +
		`<span class="method">GET</span><span class="route">/users/<span class="special-segment">&lt;id&gt;</span></span>` + "\n\n" +
		"## Path Params\n\n| Name | Type |\n| --- | --- |\n| id | Number |\n\n" +
		"## Response\n\n[User](/reference/todel/User)\n\n" +
		"| Field | Type | Description |\n| --- | --- | --- |\n| id | Number |  |\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestCompress(t *testing.T) {
	t.Parallel()
	root := writeFixture(t)

	n, err := Compress(root)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("compressed %d files, want 3", n)
	}
	if _, err := os.Stat(filepath.Join(root, "todel", "User.json")); !os.IsNotExist(err) {
		t.Error("plain descriptor should have been removed")
	}

	d, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	info, err := d.Load("todel/User.json")
	if err != nil {
		t.Fatal(err)
	}
	if info.DocText() != "A user." {
		t.Errorf("doc: got %q", info.DocText())
	}
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		index string
	}{
		{"missing_index", ""},
		{"bad_json", `{"items":`},
		{"absolute_locator", `{"items":["/etc/User.json"]}`},
		{"parent_locator", `{"items":["../User.json"]}`},
		{"not_json", `{"items":["todel/User.yaml"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			if tt.index != "" {
				if err := os.WriteFile(filepath.Join(root, IndexFile), []byte(tt.index), 0644); err != nil {
					t.Fatal(err)
				}
			}
			if _, err := Open(root); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingDescriptor(t *testing.T) {
	t.Parallel()
	root := writeFixture(t)
	if err := os.Remove(filepath.Join(root, "todel", "User.json")); err != nil {
		t.Fatal(err)
	}

	d, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Load("todel/User.json"); err == nil {
		t.Error("expected error for missing descriptor")
	}
}
