package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/Yates-Labs/memctx/internal/session"
	"github.com/Yates-Labs/memctx/internal/source"
	"github.com/mark3labs/mcp-go/mcp"
)

type mockAssembler struct {
	AssembleFn func(ctx context.Context, query, scopePath string, sources []source.Source) (*assembly.AssembledContext, error)
}

func (m *mockAssembler) Assemble(ctx context.Context, query, scopePath string, sources []source.Source) (*assembly.AssembledContext, error) {
	return m.AssembleFn(ctx, query, scopePath, sources)
}

type mockRetriever struct {
	RetrieveFn func(ctx context.Context, req assembly.TieredRequest) []assembly.TieredHit
}

func (m *mockRetriever) Retrieve(ctx context.Context, req assembly.TieredRequest) []assembly.TieredHit {
	return m.RetrieveFn(ctx, req)
}

type mockWatcher struct {
	mu    sync.Mutex
	paths []string
}

func (m *mockWatcher) Watch(ctx context.Context, path string) error {
	m.mu.Lock()
	m.paths = append(m.paths, path)
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func fixedScope(root string) ScopeFunc {
	return func(string) (string, error) { return root, nil }
}

func testDeps() Deps {
	return Deps{
		Engine: &mockAssembler{AssembleFn: func(context.Context, string, string, []source.Source) (*assembly.AssembledContext, error) {
			return nil, nil
		}},
		Retriever: &mockRetriever{RetrieveFn: func(context.Context, assembly.TieredRequest) []assembly.TieredHit {
			return nil
		}},
		Search: search.ClientFunc(func(context.Context, string, search.Options) search.Result {
			return search.OK(nil)
		}),
		Scope: fixedScope("/repo"),
		TopK:  10,
	}
}

func TestNewRequiresComponents(t *testing.T) {
	if _, err := New(context.Background(), Deps{}); err == nil {
		t.Error("Expected error for missing components")
	}
	if _, err := New(context.Background(), testDeps()); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
}

func TestContextTool(t *testing.T) {
	deps := testDeps()
	deps.Sources = source.DefaultSources("project", "global")

	var gotQuery, gotScope string
	var gotSources int
	deps.Engine = &mockAssembler{AssembleFn: func(_ context.Context, query, scope string, sources []source.Source) (*assembly.AssembledContext, error) {
		gotQuery, gotScope, gotSources = query, scope, len(sources)
		return &assembly.AssembledContext{Text: "<memsearch-context>\nhello\n</memsearch-context>"}, nil
	}}

	tool := NewContextTool(deps)
	if tool.Definition().Name != "mem_context" {
		t.Errorf("Expected mem_context, got %s", tool.Definition().Name)
	}

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "  auth flow  "}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(res))
	}
	if gotQuery != "auth flow" || gotScope != "/repo" || gotSources != 2 {
		t.Errorf("Unexpected engine call: %q %q %d", gotQuery, gotScope, gotSources)
	}
	if !strings.Contains(resultText(res), "hello") {
		t.Errorf("Expected assembled text, got %q", resultText(res))
	}
}

func TestContextToolNoContext(t *testing.T) {
	tool := NewContextTool(testDeps())

	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "q"}))
	if resultText(res) != noContextMessage {
		t.Errorf("Expected %q, got %q", noContextMessage, resultText(res))
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !res.IsError {
		t.Error("Expected error for missing query")
	}
}

func TestContextToolEngineError(t *testing.T) {
	deps := testDeps()
	deps.Engine = &mockAssembler{AssembleFn: func(context.Context, string, string, []source.Source) (*assembly.AssembledContext, error) {
		return nil, source.ErrInvalidSource
	}}

	res, err := NewContextTool(deps).Handle(context.Background(), makeReq(map[string]interface{}{"query": "q"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.IsError {
		t.Error("Expected tool error for invalid sources")
	}
}

func TestSearchTool(t *testing.T) {
	deps := testDeps()
	var got search.Options
	deps.Search = search.ClientFunc(func(_ context.Context, _ string, opts search.Options) search.Result {
		got = opts
		return search.OK([]search.Hit{{Content: "a", Score: 0.9, ChunkHash: "h1"}})
	})

	res, _ := NewSearchTool(deps).Handle(context.Background(), makeReq(map[string]interface{}{
		"query":      "q",
		"collection": "notes",
		"top_k":      float64(3),
		"min_score":  0.5,
		"filter":     `source starts_with "/repo"`,
	}))
	if res.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(res))
	}
	if got.Collection != "notes" || got.TopK != 3 || got.MinScore != 0.5 || got.Filter == "" {
		t.Errorf("Unexpected options %+v", got)
	}

	var hits []search.Hit
	if err := json.Unmarshal([]byte(resultText(res)), &hits); err != nil {
		t.Fatalf("Expected JSON hits, got %q: %v", resultText(res), err)
	}
	if len(hits) != 1 || hits[0].ChunkHash != "h1" {
		t.Errorf("Unexpected hits %+v", hits)
	}
}

func TestSearchToolDefaultsAndOutcomes(t *testing.T) {
	deps := testDeps()
	var got search.Options
	result := search.OK(nil)
	deps.Search = search.ClientFunc(func(_ context.Context, _ string, opts search.Options) search.Result {
		got = opts
		return result
	})
	tool := NewSearchTool(deps)

	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "q"}))
	if got.TopK != 10 || got.MinScore != source.DefaultMinScore {
		t.Errorf("Expected default topK and min score, got %+v", got)
	}
	if resultText(res) != "[]" {
		t.Errorf("Expected empty JSON list, got %q", resultText(res))
	}

	result = search.NotFound("missing")
	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "q"}))
	if !res.IsError || !strings.Contains(resultText(res), "missing") {
		t.Errorf("Expected not found error, got %q", resultText(res))
	}

	result = search.TransportError(errors.New("connection refused"))
	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "q"}))
	if !res.IsError || !strings.Contains(resultText(res), "connection refused") {
		t.Errorf("Expected transport error, got %q", resultText(res))
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"query": "q", "top_k": float64(0)}))
	if !res.IsError {
		t.Error("Expected error for non-positive top_k")
	}
}

func TestCompactContextTool(t *testing.T) {
	deps := testDeps()
	var got assembly.TieredRequest
	deps.Retriever = &mockRetriever{RetrieveFn: func(_ context.Context, req assembly.TieredRequest) []assembly.TieredHit {
		got = req
		return []assembly.TieredHit{{
			Hit:  search.Hit{Content: "Shipped the parser", Score: 0.8, Origin: "/repo/notes.md", ChunkHash: "c1"},
			Tier: assembly.TierPrimary,
		}}
	}}

	res, _ := NewCompactContextTool(deps).Handle(context.Background(), makeReq(nil))
	if got.Query != assembly.CompactionQuery || got.PrimaryScope != "/repo" {
		t.Errorf("Unexpected request %+v", got)
	}
	text := resultText(res)
	if !strings.HasPrefix(text, "<memsearch-compact-context>") || !strings.Contains(text, "notes.md") {
		t.Errorf("Unexpected block %q", text)
	}
}

func TestCompactContextToolEmpty(t *testing.T) {
	res, _ := NewCompactContextTool(testDeps()).Handle(context.Background(), makeReq(nil))
	if resultText(res) != noMemoriesMessage {
		t.Errorf("Expected %q, got %q", noMemoriesMessage, resultText(res))
	}
}

func TestWatchTool(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := testDeps()
	watcher := &mockWatcher{}
	deps.Watcher = watcher
	deps.Supervisor = session.NewSupervisor(nil)
	defer deps.Supervisor.Stop()

	tool := NewWatchTool(ctx, deps)
	status := NewWatchStatusTool(deps)

	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"path": "/repo/docs"}))
	if res.IsError || !strings.Contains(resultText(res), "Watching /repo/docs") {
		t.Fatalf("Unexpected result %q", resultText(res))
	}

	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"path": "/other"}))
	if !strings.Contains(resultText(res), "already running") {
		t.Errorf("Expected refusal, got %q", resultText(res))
	}

	res, _ = status.Handle(context.Background(), makeReq(nil))
	var st session.Status
	if err := json.Unmarshal([]byte(resultText(res)), &st); err != nil {
		t.Fatalf("Expected JSON status, got %q", resultText(res))
	}
	if !st.Running || st.Name != "watch /repo/docs" {
		t.Errorf("Unexpected status %+v", st)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for deps.Supervisor.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for watcher to stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st := deps.Supervisor.Status(); st.LastError != "" {
		t.Errorf("Expected clean stop on cancel, got %q", st.LastError)
	}
}

func TestWatchToolWithoutWatcher(t *testing.T) {
	deps := testDeps()
	deps.Supervisor = session.NewSupervisor(nil)

	res, _ := NewWatchTool(context.Background(), deps).Handle(context.Background(), makeReq(map[string]interface{}{"path": "/repo"}))
	if !res.IsError {
		t.Error("Expected error when the backend cannot watch")
	}
	res, _ = NewWatchTool(context.Background(), deps).Handle(context.Background(), makeReq(map[string]interface{}{}))
	if !res.IsError {
		t.Error("Expected error for missing path")
	}
}
