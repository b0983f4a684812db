package autodoc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRouteBanner(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		route  string
		want   string
	}{
		{
			"plain",
			"GET",
			"/users",
			`<span class="method">GET</span><span class="route">/users</span>`,
		},
		{
			"one_segment",
			"GET",
			"/users/<id>",
			`<span class="method">GET</span><span class="route">/users/<span class="special-segment">&lt;id&gt;</span></span>`,
		},
		{
			"many_segments",
			"DELETE",
			"/spheres/<sphere_id>/members/<user_id>",
			`<span class="method">DELETE</span><span class="route">/spheres/<span class="special-segment">&lt;sphere_id&gt;</span>/members/<span class="special-segment">&lt;user_id&gt;</span></span>`,
		},
		{
			"stray_brackets",
			"POST",
			"/a>b/<c",
			`<span class="method">POST</span><span class="route">/a&gt;b/&lt;c</span>`,
		},
		{
			"escaped_method",
			"<GET>",
			"/users",
			`<span class="method">&lt;GET&gt;</span><span class="route">/users</span>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := routeBanner(tt.method, tt.route); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderRoute(t *testing.T) {
	t.Parallel()
	r := NewRenderer(fixtureStore(), Options{})

	tests := []struct {
		name  string
		route RouteInfo
		want  string
	}{
		{
			"empty",
			RouteInfo{Method: "GET", Route: "/"},
			"",
		},
		{
			"path_params",
			RouteInfo{PathParams: []ParamInfo{{Name: "id", ParamType: "u64"}}},
			"## Path Params\n\n| Name | Type |\n| --- | --- |\n| id | Number |",
		},
		{
			"query_only",
			RouteInfo{QueryParams: []ParamInfo{
				{Name: "limit", ParamType: "Option<u32>"},
				{Name: "before", ParamType: "Option<u64>"},
			}},
			"## Query Params\n\n| Name | Type |\n| --- | --- |\n| limit | Number |\n| before | Number |",
		},
		{
			"json_body",
			RouteInfo{BodyType: ptr("Json<User>")},
			"## Request Body\n\nA JSON [User](/reference/todel/User)\n\n" + userTable,
		},
		{
			"form_body",
			RouteInfo{BodyType: ptr("Form<UploadData>")},
			"## Request Body\n\nA `multipart/form-data` UploadData",
		},
		{
			"plain_body",
			RouteInfo{BodyType: ptr("String")},
			"## Request Body\n\nString",
		},
		{
			"response_result",
			RouteInfo{ReturnType: ptr("Result<Json<User>, ErrorResponse>")},
			"## Response\n\n[User](/reference/todel/User)\n\n" + userTable,
		},
		{
			"response_rate_limited_list",
			RouteInfo{ReturnType: ptr("RateLimitedRouteResponse<Result<Json<Vec<Status>>, ErrorResponse>>")},
			"## Response\n\nArray of [Status](/reference/todel/Status)\n\n" +
				"- Online",
		},
		{
			"response_override",
			RouteInfo{ReturnType: ptr("Result<FetchResponse, ErrorResponse>")},
			"## Response\n\nRaw file content.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.RenderRoute("route", &tt.route)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRenderRoute_SectionOrder(t *testing.T) {
	t.Parallel()
	r := NewRenderer(fixtureStore(), Options{})

	got, err := r.RenderRoute("edit_post", &RouteInfo{
		Method:      "PATCH",
		Route:       "/posts/<id>",
		PathParams:  []ParamInfo{{Name: "id", ParamType: "u64"}},
		QueryParams: []ParamInfo{{Name: "notify", ParamType: "bool"}},
		BodyType:    ptr("Json<Post>"),
		ReturnType:  ptr("Result<Json<Post>, ErrorResponse>"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(got, "\n") {
		t.Errorf("leading separator not trimmed: %q", got)
	}

	last := -1
	for _, heading := range []string{"## Path Params", "## Query Params", "## Request Body", "## Response"} {
		idx := strings.Index(got, heading)
		if idx < 0 {
			t.Fatalf("missing %s in:\n%s", heading, got)
		}
		if idx < last {
			t.Errorf("%s out of order", heading)
		}
		last = idx
	}
}
