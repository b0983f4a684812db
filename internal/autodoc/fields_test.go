package autodoc

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRenderFields(t *testing.T) {
	t.Parallel()
	r := NewRenderer(fixtureStore(), Options{})

	tests := []struct {
		name   string
		fields []FieldInfo
		want   string
	}{
		{
			"empty",
			nil,
			"",
		},
		{
			"plain_row",
			[]FieldInfo{{Name: "value", FieldType: "u64"}},
			"| Field | Type | Description |\n| --- | --- | --- |\n| value | Number |  |",
		},
		{
			"markers",
			[]FieldInfo{
				{Name: "nick", FieldType: "Option<String>", Nullable: true},
				{Name: "bio", FieldType: "String", Omittable: true},
				{Name: "status", FieldType: "Option<Status>", Nullable: true, Omittable: true},
			},
			"| Field | Type | Description |\n| --- | --- | --- |\n" +
				"| nick | String? |  |\n" +
				"| bio? | String |  |\n" +
				"| status? | [Status](/reference/todel/Status)? |  |",
		},
		{
			"list_nullable",
			[]FieldInfo{{Name: "ids", FieldType: "Option<Vec<u64>>", Nullable: true}},
			"| Field | Type | Description |\n| --- | --- | --- |\n| ids | Array of Number? |  |",
		},
		{
			"flattened",
			[]FieldInfo{
				{Name: "name", FieldType: "String", Doc: ptr("Display\nname.")},
				{Name: "post", FieldType: "Post", Flattened: true},
			},
			"| Field | Type | Description |\n| --- | --- | --- |\n" +
				"| name | String | Display name. |\n" +
				"| id | Number |  |\n" +
				"| created_at | Number |  |\n" +
				"| author | [User](/reference/todel/User) |  |",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.RenderFields("Container", tt.fields)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderFields_FlattenErrors(t *testing.T) {
	t.Parallel()
	r := NewRenderer(fixtureStore(), Options{})

	tests := []struct {
		name      string
		item      string
		field     FieldInfo
		wantErr   error
		wantField string
	}{
		{"self_cycle", "Loop", FieldInfo{Name: "inner", FieldType: "Box<Loop>", Flattened: true}, ErrCyclicFlatten, "inner"},
		{"transitive_cycle", "Holder", FieldInfo{Name: "a", FieldType: "LoopA", Flattened: true}, ErrCyclicFlatten, "a"},
		{"primitive_target", "Holder", FieldInfo{Name: "count", FieldType: "u64", Flattened: true}, ErrMalformedFlattenTarget, "count"},
		{"list_target", "Holder", FieldInfo{Name: "users", FieldType: "Vec<User>", Flattened: true}, ErrMalformedFlattenTarget, "users"},
		{"missing_target", "Holder", FieldInfo{Name: "extra", FieldType: "Attachment", Flattened: true}, ErrMalformedFlattenTarget, "extra"},
		{"enum_target", "Holder", FieldInfo{Name: "status", FieldType: "Status", Flattened: true}, ErrMalformedFlattenTarget, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.RenderFields(tt.item, []FieldInfo{tt.field})
			if err == nil {
				t.Fatalf("expected error, got output %q", got)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			var re *RenderError
			if !errors.As(err, &re) {
				t.Fatalf("error %T is not a *RenderError", err)
			}
			if re.Item != tt.item {
				t.Errorf("item: got %q, want %q", re.Item, tt.item)
			}
			if tt.wantErr == ErrMalformedFlattenTarget && re.Field != tt.wantField {
				t.Errorf("field: got %q, want %q", re.Field, tt.wantField)
			}
		})
	}
}

func TestRenderFields_CycleNamesPath(t *testing.T) {
	t.Parallel()
	r := NewRenderer(fixtureStore(), Options{})

	_, err := r.RenderFields("Holder", []FieldInfo{{Name: "a", FieldType: "LoopA", Flattened: true}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Holder -> LoopA -> LoopB -> LoopA") {
		t.Errorf("error does not name the cycle: %v", err)
	}
}

func TestInlineDoc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", "", ""},
		{"single_line", "The user id.", "The user id."},
		{"soft_wrap", "A long line\nwrapped here\nand here.", "A long line wrapped here and here."},
		{"paragraphs", "First.\n\nSecond.", "First.<br><br>Second."},
		{"many_blank_lines", "First.\n\n\n\nSecond.", "First.<br><br>Second."},
		{"wrap_before_space_kept", "List:\n - item", "List:\n - item"},
		{"pipes_escaped", "a | b", `a \| b`},
		{"trimmed", "\n  padded  \n", "padded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InlineDoc(tt.doc); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
