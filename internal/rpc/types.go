package rpc

import "time"

// RenderRequest is the request body for POST /render. Name is either a
// type name or a locator ending in .json.
type RenderRequest struct {
	Name     string `json:"name"`
	Fragment string `json:"fragment,omitempty"`
}

// RenderResponse is the response body for POST /render.
type RenderResponse struct {
	Name        string   `json:"name"`
	Locator     string   `json:"locator"`
	Markdown    string   `json:"markdown"`
	ContentHash string   `json:"content_hash"`
	Fragments   []string `json:"fragments,omitempty"`
}

// BuildRequest is the request body for POST /build. Empty fields fall back
// to the daemon's configuration.
type BuildRequest struct {
	OutputDir     string `json:"output_dir,omitempty"`
	IncludeHidden bool   `json:"include_hidden,omitempty"`
}

// BuildResponse is the response body for POST /build.
type BuildResponse struct {
	Version    string   `json:"version"`
	Rendered   []string `json:"rendered"`
	Unchanged  []string `json:"unchanged"`
	Skipped    []string `json:"skipped"`
	Pruned     []string `json:"pruned,omitempty"`
	Failed     []string `json:"failed,omitempty"`
	Unresolved []string `json:"unresolved,omitempty"`
	Dangling   []string `json:"dangling,omitempty"`
}

// ItemsResponse is the response body for GET /items.
type ItemsResponse struct {
	Version string        `json:"version"`
	Items   []ItemSummary `json:"items"`
}

type ItemSummary struct {
	Name     string `json:"name"`
	Package  string `json:"package"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Hidden   bool   `json:"hidden"`
	Locator  string `json:"locator"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Dir       string       `json:"dir"`
	Version   string       `json:"version"`
	Items     int          `json:"items"`
	LastBuild *BuildStatus `json:"last_build,omitempty"`
	Pages     []PageStatus `json:"pages"`
}

type BuildStatus struct {
	IndexVersion string     `json:"index_version"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Rendered     int        `json:"rendered"`
	Unchanged    int        `json:"unchanged"`
	Failed       int        `json:"failed"`
}

type PageStatus struct {
	Name        string    `json:"name"`
	Package     string    `json:"package"`
	Kind        string    `json:"kind"`
	Locator     string    `json:"locator"`
	ContentHash string    `json:"content_hash"`
	RenderedAt  time.Time `json:"rendered_at"`
}

// ClearCacheRequest is the request body for POST /clear-cache. Without All
// only the in-memory descriptors and renders are dropped.
type ClearCacheRequest struct {
	All bool `json:"all,omitempty"`
}
