package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Yates-Labs/memctx/internal/config"
	"github.com/Yates-Labs/memctx/internal/logging"
	"github.com/Yates-Labs/memctx/internal/workspace"
	"github.com/spf13/cobra"
)

var (
	workDir     string
	verbosity   int
	quiet       bool
	backendName string
	logFile     string
)

var rootCmd = &cobra.Command{
	Use:   "memctx",
	Short: "memctx - Memory context assembly for coding agents",
	Long: `memctx retrieves relevant memory for a coding agent and renders it as a
bounded, delimited context block.

It queries every configured source (project memory, global memory, and any
sources you add) through a search backend, ranks and groups what comes back,
and formats it for injection into a prompt or a session summary.

Configuration is read from memctx.yaml or the "memsearch" block of
opencode.json in the project root, then from .env and the environment.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", "", "Working directory (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress all log output")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "Search backend: memsearch, sqlite or milvus (default from config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file instead of stderr")
}

// app is the state shared by every command
type app struct {
	cfg     *config.Config
	scope   workspace.Scope
	logger  *slog.Logger
	backend *backend
	logOut  *os.File
}

// newApp resolves the workspace, loads configuration and opens the backend.
func newApp(ctx context.Context) (*app, error) {
	scope, err := workspace.Resolve(workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	cfg, err := config.Load(scope.Root)
	if err != nil {
		return nil, err
	}
	if backendName != "" {
		cfg.Backend = backendName
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	level := logging.LevelFromVerbosity(verbosity, quiet)
	if verbosity == 0 && !quiet && cfg.LogLevel != "" {
		level = logging.LevelFromString(cfg.LogLevel)
	}
	logger := logging.New(os.Stderr, level)
	var logOut *os.File
	if logFile != "" {
		logger, logOut, err = logging.NewFile(logFile, level)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Path != "" {
		logger.Debug("config loaded", "path", cfg.Path, "backend", cfg.Backend)
	}

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		if logOut != nil {
			_ = logOut.Close()
		}
		return nil, err
	}

	return &app{cfg: cfg, scope: scope, logger: logger, backend: b, logOut: logOut}, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("failed to close backend", "error", err)
	}
	if a.logOut != nil {
		_ = a.logOut.Close()
	}
}
