// Package server exposes memctx retrieval as MCP tools over stdio.
//
// Each tool is a struct holding its dependencies, with Definition()
// returning the mcp.Tool schema and Handle() serving calls.
package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/Yates-Labs/memctx/internal/doctor"
	"github.com/Yates-Labs/memctx/internal/search"
	"github.com/Yates-Labs/memctx/internal/session"
	"github.com/Yates-Labs/memctx/internal/source"
	"github.com/Yates-Labs/memctx/internal/workspace"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Assembler builds the delimited context block for a query
type Assembler interface {
	Assemble(ctx context.Context, query, scopePath string, sources []source.Source) (*assembly.AssembledContext, error)
}

// Retriever runs a tiered primary/global retrieval
type Retriever interface {
	Retrieve(ctx context.Context, req assembly.TieredRequest) []assembly.TieredHit
}

// Watcher keeps an index in sync with a path until ctx is cancelled
type Watcher interface {
	Watch(ctx context.Context, path string) error
}

// Admin manages the memsearch index and its settings
type Admin interface {
	Reset(ctx context.Context) error
	ConfigGet(ctx context.Context, key string) (map[string]any, error)
	ConfigSet(ctx context.Context, key, value string) error
}

// DoctorFunc runs the environment checks
type DoctorFunc func(ctx context.Context) doctor.Report

// ScopeFunc maps a working directory to the scope path hits are matched against
type ScopeFunc func(dir string) (string, error)

// Deps are the components the tools are built from
type Deps struct {
	Engine     Assembler
	Retriever  Retriever
	Search     search.Client
	Watcher    Watcher    // Nil when the backend cannot watch
	Admin      Admin      // Nil when the backend has no managed index
	Doctor     DoctorFunc // Nil leaves mem_doctor out
	Supervisor *session.Supervisor
	Sources    []source.Source
	Scope      ScopeFunc // Nil resolves the git worktree root
	Dir        string    // Directory used when a call names none
	TopK       int
	Logger     *slog.Logger
}

// New creates the MCP server with every tool registered. ctx bounds
// background work started by tools, such as the file watcher.
func New(ctx context.Context, deps Deps) (*server.MCPServer, error) {
	if deps.Engine == nil || deps.Retriever == nil || deps.Search == nil {
		return nil, fmt.Errorf("engine, retriever and search client are required")
	}
	if deps.Scope == nil {
		deps.Scope = resolveRoot
	}
	if deps.Supervisor == nil {
		deps.Supervisor = session.NewSupervisor(deps.Logger)
	}
	if deps.TopK <= 0 {
		deps.TopK = 10
	}

	s := server.NewMCPServer(
		"memctx",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	contextTool := NewContextTool(deps)
	s.AddTool(contextTool.Definition(), contextTool.Handle)

	searchTool := NewSearchTool(deps)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	compactTool := NewCompactContextTool(deps)
	s.AddTool(compactTool.Definition(), compactTool.Handle)

	watchTool := NewWatchTool(ctx, deps)
	s.AddTool(watchTool.Definition(), watchTool.Handle)

	statusTool := NewWatchStatusTool(deps)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	resetTool := NewResetTool(deps)
	s.AddTool(resetTool.Definition(), resetTool.Handle)

	configTool := NewConfigTool(deps)
	s.AddTool(configTool.Definition(), configTool.Handle)

	if deps.Doctor != nil {
		doctorTool := NewDoctorTool(deps)
		s.AddTool(doctorTool.Definition(), doctorTool.Handle)
	}

	return s, nil
}

func resolveRoot(dir string) (string, error) {
	scope, err := workspace.Resolve(dir)
	if err != nil {
		return "", err
	}
	return scope.Root, nil
}
