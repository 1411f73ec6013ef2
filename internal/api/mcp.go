package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/knowd/internal/search"
	"github.com/kalambet/knowd/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store        storage.Reader
	Engine       *search.Engine
	DefaultLimit int // <= 0 means search.DefaultLimit
}

// NewMCPServer creates an MCP server with all knowd tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"knowd",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("knowd: search a personal knowledge base of notes and links, ranked by term overlap and tags."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("query_knowledge",
			mcp.WithDescription("Search notes and links. Items are ranked by the fraction of query words they contain; items carrying one of the given tags are always included."),
			mcp.WithString("query", mcp.Description("Free-text query"), mcp.Required()),
			mcp.WithArray("tags", mcp.Description("Optional tag names to include regardless of text match")),
			mcp.WithNumber("limit", mcp.Description("Maximum notes and maximum links to return (default 10)")),
		),
		mcpQueryKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("get_context",
			mcp.WithDescription("Return a few notes and links relevant to a topic, preferring items tagged with tags related to the query."),
			mcp.WithString("query", mcp.Description("Topic to gather context for"), mcp.Required()),
		),
		mcpGetContext(deps),
	)

	s.AddTool(
		mcp.NewTool("ide_context",
			mcp.WithDescription("Return knowledge relevant to the code being edited. At least one argument is required."),
			mcp.WithString("query", mcp.Description("Optional free-text query")),
			mcp.WithString("file", mcp.Description("Path or name of the open file")),
			mcp.WithString("selection", mcp.Description("Currently selected text")),
		),
		mcpIDEContext(deps),
	)

	s.AddTool(
		mcp.NewTool("list_tags",
			mcp.WithDescription("List every tag in the knowledge base."),
		),
		mcpListTags(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"knowledge://tags",
			"Tags",
			mcp.WithResourceDescription("All tags as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceTags(deps),
	)

	return s
}

func mcpQueryKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := deps.DefaultLimit
		if limit <= 0 {
			limit = search.DefaultLimit
		}
		q, err := search.ValidateQuery(req.GetArguments(), search.WithDefaultLimit(limit))
		if err != nil {
			return mcpOutcome(search.OutcomeOf(nil, err)), nil
		}
		res, err := deps.Engine.Search(ctx, q)
		return mcpOutcome(search.OutcomeOf(res, err)), nil
	}
}

func mcpGetContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := search.ValidateQuery(map[string]any{"query": req.GetArguments()["query"]})
		if err != nil {
			return mcpOutcome(search.OutcomeOf(nil, err)), nil
		}
		res, err := deps.Engine.Context(ctx, q.Query)
		return mcpOutcome(search.OutcomeOf(res, err)), nil
	}
}

func mcpIDEContext(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := ideQuery(
			req.GetString("query", ""),
			req.GetString("file", ""),
			req.GetString("selection", ""),
		)
		if err != nil {
			return mcpOutcome(search.OutcomeOf(nil, err)), nil
		}
		res, err := deps.Engine.Context(ctx, query)
		return mcpOutcome(search.OutcomeOf(res, err)), nil
	}
}

func mcpListTags(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tags, err := deps.Store.GetTags(ctx)
		if err != nil {
			return mcpOutcome(search.OutcomeOf(nil, fmt.Errorf("loading tags: %w", err))), nil
		}
		return mcpOutcome(search.OutcomeOf(nonNilTags(tags), nil)), nil
	}
}

func mcpResourceTags(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tags, err := deps.Store.GetTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tags: %w", err)
		}

		b, err := json.Marshal(nonNilTags(tags))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tags: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// mcpOutcome renders an Outcome as the tool result text. Failures are
// flagged with IsError so clients can tell them apart.
func mcpOutcome(o search.Outcome) *mcp.CallToolResult {
	b, err := json.Marshal(o)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	res := mcpText(string(b))
	_, res.IsError = o.(search.Failure)
	return res
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: msg,
			},
		},
		IsError: true,
	}
}
