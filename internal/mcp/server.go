package mcp

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jcdickinson/refdoc/internal/daemon"
	md "github.com/jcdickinson/refdoc/internal/markdown"
	"github.com/jcdickinson/refdoc/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

// URIScheme prefixes the resource URIs pages link to.
const URIScheme = "autodoc://"

// Renderer is the part of the daemon client the MCP server needs.
type Renderer interface {
	Render(ctx context.Context, req rpc.RenderRequest) (*rpc.RenderResponse, error)
	Items(ctx context.Context) (*rpc.ItemsResponse, error)
	Build(ctx context.Context, req rpc.BuildRequest) (*rpc.BuildResponse, error)
}

type Server struct {
	mcpServer  *server.MCPServer
	client     Renderer
	linkPrefix string
}

// NewServer connects to (or spawns) the daemon and registers the tools.
// binary is the command name shown in the instructions.
func NewServer(socketPath, linkPrefix, binary string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return New(client, linkPrefix, binary), nil
}

func New(client Renderer, linkPrefix, binary string) *Server {
	s := &Server{client: client, linkPrefix: linkPrefix}

	mcpServer := server.NewMCPServer(
		"refdoc",
		"0.1.0",
		server.WithInstructions(fmt.Sprintf(instructions, binary)),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("render_item",
			mcp.WithDescription("Render the reference page of a struct, enum or route. Links to other items are autodoc:// resource URIs."),
			mcp.WithString("name",
				mcp.Description("Type or route name (e.g. \"User\"), or a descriptor locator ending in .json"),
				mcp.Required(),
			),
			mcp.WithString("fragment",
				mcp.Description("Optional section to return instead of the whole page (e.g. \"fields\", \"response\", a variant slug)"),
			),
		),
		s.handleRenderItem,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_items",
			mcp.WithDescription("List every documented item with its package, kind, category and resource URI."),
			mcp.WithString("package",
				mcp.Description("Optional package to filter by"),
			),
		),
		s.handleListItems,
	)

	mcpServer.AddTool(
		mcp.NewTool("build",
			mcp.WithDescription("Render every item into the configured output directory. Synchronous; returns a summary of the build."),
			mcp.WithBoolean("include_hidden",
				mcp.Description("Also render items marked hidden"),
			),
		),
		s.handleBuild,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			URIScheme+"{package}/{name}",
			"API reference page",
			mcp.WithTemplateDescription("Read the reference page of an item. Append #fragment to read one section."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func (s *Server) render(ctx context.Context, req rpc.RenderRequest) (*rpc.RenderResponse, error) {
	resp, err := s.client.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Markdown = md.RewritePrefix(resp.Markdown, s.linkPrefix, URIScheme)
	return resp, nil
}

func (s *Server) handleRenderItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	fragment, _ := args["fragment"].(string)

	resp, err := s.render(ctx, rpc.RenderRequest{Name: name, Fragment: fragment})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("render failed: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

type listedItem struct {
	rpc.ItemSummary
	URI string `json:"uri"`
}

func (s *Server) handleListItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pkg, _ := req.GetArguments()["package"].(string)

	resp, err := s.client.Items(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing items failed: %v", err)), nil
	}

	items := []listedItem{}
	for _, it := range resp.Items {
		if pkg != "" && it.Package != pkg {
			continue
		}
		items = append(items, listedItem{
			ItemSummary: it,
			URI:         URIScheme + strings.TrimSuffix(it.Locator, ".json"),
		})
	}

	resultJSON, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleBuild(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeHidden, _ := req.GetArguments()["include_hidden"].(bool)

	resp, err := s.client.Build(ctx, rpc.BuildRequest{IncludeHidden: includeHidden})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("build failed: %v", err)), nil
	}

	resultJSON, _ := json.MarshalIndent(resp, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

// ParseURI splits autodoc://package/name#fragment into a locator and a
// fragment.
func ParseURI(uri string) (locator, fragment string, err error) {
	trimmed, ok := strings.CutPrefix(uri, URIScheme)
	if !ok {
		return "", "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	trimmed, fragment, _ = strings.Cut(trimmed, "#")
	pkg, name, ok := strings.Cut(trimmed, "/")
	if !ok || pkg == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid resource URI: %s", uri)
	}
	return pkg + "/" + name + ".json", fragment, nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	locator, fragment, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.render(ctx, rpc.RenderRequest{Name: locator, Fragment: fragment})
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", locator, err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) Shutdown(_ context.Context) error {
	return nil
}
