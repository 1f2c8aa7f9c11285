package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/Yates-Labs/memctx/internal/session"
	"github.com/Yates-Labs/memctx/internal/source"
	"github.com/mark3labs/mcp-go/mcp"
)

// Messages returned when nothing matched
const (
	noContextMessage  = "No relevant context found."
	noMemoriesMessage = "No relevant memories found."
)

// ContextTool handles the mem_context MCP tool.
type ContextTool struct {
	engine  Assembler
	sources []source.Source
	scope   ScopeFunc
	dir     string
}

// NewContextTool creates a ContextTool.
func NewContextTool(deps Deps) *ContextTool {
	return &ContextTool{engine: deps.Engine, sources: deps.Sources, scope: deps.Scope, dir: deps.Dir}
}

// Definition returns the MCP tool definition for mem_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_context",
		mcp.WithDescription(
			"Assemble relevant memory for a query from every configured source, "+
				"rendered as a single delimited context block ready to prepend to a prompt.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the agent is working on"),
		),
		mcp.WithString("directory",
			mcp.Description("Working directory used to scope results (default: server directory)"),
		),
	)
}

// Handle processes the mem_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	scope, err := t.scope(req.GetString("directory", t.dir))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve directory: %v", err)), nil
	}

	assembled, err := t.engine.Assemble(ctx, query, scope, t.sources)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("assemble context: %v", err)), nil
	}
	if assembled == nil {
		return mcp.NewToolResultText(noContextMessage), nil
	}
	return mcp.NewToolResultText(assembled.Text), nil
}

// SearchTool handles the mem_search MCP tool.
type SearchTool struct {
	client search.Client
	topK   int
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(deps Deps) *SearchTool {
	return &SearchTool{client: deps.Search, topK: deps.TopK}
}

// Definition returns the MCP tool definition for mem_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_search",
		mcp.WithDescription("Run a raw search against one collection and return the scored hits as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query"),
		),
		mcp.WithString("collection",
			mcp.Description("Collection to search (default: backend default)"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Max results (default: configured topK)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Score floor (default: 0.01)"),
		),
		mcp.WithString("filter",
			mcp.Description(`Filter expression, e.g. source starts_with "/repo"`),
		),
	)
}

// Handle processes the mem_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	topK := intArg(req, "top_k", t.topK)
	if topK <= 0 {
		return mcp.NewToolResultError("'top_k' must be positive"), nil
	}

	res := t.client.Search(ctx, query, search.Options{
		Collection: req.GetString("collection", ""),
		TopK:       topK,
		MinScore:   floatArg(req, "min_score", source.DefaultMinScore),
		Filter:     req.GetString("filter", ""),
	})
	switch res.Outcome {
	case search.OutcomeNotFound:
		return mcp.NewToolResultError(res.Err.Error()), nil
	case search.OutcomeTransportError:
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", res.Err)), nil
	}

	hits := res.Hits
	if hits == nil {
		hits = []search.Hit{}
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode hits: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// CompactContextTool handles the mem_compact_context MCP tool.
type CompactContextTool struct {
	retriever Retriever
	scope     ScopeFunc
	dir       string
}

// NewCompactContextTool creates a CompactContextTool.
func NewCompactContextTool(deps Deps) *CompactContextTool {
	return &CompactContextTool{retriever: deps.Retriever, scope: deps.Scope, dir: deps.Dir}
}

// Definition returns the MCP tool definition for mem_compact_context.
func (t *CompactContextTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_compact_context",
		mcp.WithDescription(
			"Gather the memories most useful for summarizing the current session, "+
				"widening to global memory when the project has few matches.",
		),
		mcp.WithString("directory",
			mcp.Description("Working directory used to scope results (default: server directory)"),
		),
	)
}

// Handle processes the mem_compact_context tool call.
func (t *CompactContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope, err := t.scope(req.GetString("directory", t.dir))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resolve directory: %v", err)), nil
	}

	hits := t.retriever.Retrieve(ctx, assembly.CompactionRequest(scope))
	block := assembly.FormatCompactionBlock(hits, scope)
	if block == "" {
		return mcp.NewToolResultText(noMemoriesMessage), nil
	}
	return mcp.NewToolResultText(block), nil
}

// WatchTool handles the mem_watch MCP tool.
type WatchTool struct {
	base       context.Context
	watcher    Watcher
	supervisor *session.Supervisor
}

// NewWatchTool creates a WatchTool. Watchers run on base, not on the
// request context, so they outlive the call that started them.
func NewWatchTool(base context.Context, deps Deps) *WatchTool {
	return &WatchTool{base: base, watcher: deps.Watcher, supervisor: deps.Supervisor}
}

// Definition returns the MCP tool definition for mem_watch.
func (t *WatchTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_watch",
		mcp.WithDescription("Start watching a path so memory stays indexed while the session runs. Only one watcher runs at a time."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File or directory to watch"),
		),
	)
}

// Handle processes the mem_watch tool call.
func (t *WatchTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := strings.TrimSpace(req.GetString("path", ""))
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	if t.watcher == nil {
		return mcp.NewToolResultError("watching requires the memsearch backend"), nil
	}

	if !superviseWatch(t.base, t.supervisor, t.watcher, path) {
		return mcp.NewToolResultText(fmt.Sprintf("A watcher is already running (%s).", t.supervisor.Status().Name)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Watching %s.", path)), nil
}

// superviseWatch runs watcher on path under supervisor and reports whether
// it started.
func superviseWatch(ctx context.Context, supervisor *session.Supervisor, watcher Watcher, path string) bool {
	return supervisor.Start(ctx, "watch "+path, func(ctx context.Context) error {
		err := watcher.Watch(ctx, path)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// WatchStatusTool handles the mem_watch_status MCP tool.
type WatchStatusTool struct {
	supervisor *session.Supervisor
}

// NewWatchStatusTool creates a WatchStatusTool.
func NewWatchStatusTool(deps Deps) *WatchStatusTool {
	return &WatchStatusTool{supervisor: deps.Supervisor}
}

// Definition returns the MCP tool definition for mem_watch_status.
func (t *WatchStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("mem_watch_status",
		mcp.WithDescription("Report whether the memory watcher is running and the last error it exited with."),
	)
}

// Handle processes the mem_watch_status tool call.
func (t *WatchStatusTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(t.supervisor.Status())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// floatArg extracts a number argument from a tool request.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}
