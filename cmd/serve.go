package cmd

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/memctx/internal/assembly"
	"github.com/Yates-Labs/memctx/internal/doctor"
	"github.com/Yates-Labs/memctx/internal/search/memsearch"
	"github.com/Yates-Labs/memctx/internal/server"
	"github.com/Yates-Labs/memctx/internal/session"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server (stdio transport)",
	Long: `Start an MCP server on stdin/stdout exposing mem_context, mem_search,
mem_compact_context, mem_watch, mem_watch_status, mem_reset, mem_config and
mem_doctor.

With the memsearch backend the project is indexed and watched while the
server runs; set memsearch.autoIndex or memsearch.autoWatch to false to
turn either off.

Logs go to stderr so they never interfere with the transport.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := assembly.NewEngine(a.backend, a.cfg.EngineConfig(), a.logger)
	if err != nil {
		return err
	}
	tiered, err := assembly.NewTiered(a.backend, a.cfg.TieredRetrieverConfig(), a.logger)
	if err != nil {
		return err
	}

	supervisor := session.NewSupervisor(a.logger)
	defer supervisor.Stop()

	s, err := server.New(ctx, server.Deps{
		Engine:    engine,
		Retriever: tiered,
		Search:    a.backend,
		Watcher:   a.backend.watcher(),
		Admin:     a.backend.admin(),
		Doctor: func(ctx context.Context) doctor.Report {
			return doctor.Run(ctx, a.cfg, memsearch.New(memsearch.Config{Binary: a.cfg.Memsearch.Binary}, nil))
		},
		Supervisor: supervisor,
		Sources:    a.cfg.EffectiveSources(),
		Dir:        a.scope.Dir,
		TopK:       a.cfg.TopK,
		Logger:     a.logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	server.StartSession(ctx, server.SessionOptions{
		Dir:        a.scope.Root,
		AutoIndex:  a.cfg.Memsearch.AutoIndex,
		AutoWatch:  a.cfg.Memsearch.AutoWatch,
		Indexer:    a.backend.sessionIndexer(),
		Watcher:    a.backend.watcher(),
		Supervisor: supervisor,
		Logger:     a.logger,
	})

	a.logger.Info("serving", "backend", a.backend.name, "scope", a.scope.Root)
	return mcpserver.ServeStdio(s)
}
