package server

import (
	"context"
	"log/slog"

	"github.com/Yates-Labs/memctx/internal/session"
)

// Indexer indexes a path in the backend's own index
type Indexer interface {
	Index(ctx context.Context, path string, recursive bool) error
}

// SessionOptions control the work started alongside the server
type SessionOptions struct {
	Dir        string
	AutoIndex  bool
	AutoWatch  bool
	Indexer    Indexer // Nil skips indexing
	Watcher    Watcher // Nil skips watching
	Supervisor *session.Supervisor
	Logger     *slog.Logger
}

// StartSession starts watching Dir under the supervisor and indexes it in
// the background. Failures are logged, never returned. The channel is closed
// once indexing has finished or was skipped.
func StartSession(ctx context.Context, opts SessionOptions) <-chan struct{} {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "session", "dir", opts.Dir)

	if opts.AutoWatch && opts.Watcher != nil && opts.Supervisor != nil {
		if !superviseWatch(ctx, opts.Supervisor, opts.Watcher, opts.Dir) {
			logger.Info("watcher already running", "task", opts.Supervisor.Status().Name)
		}
	}

	done := make(chan struct{})
	if !opts.AutoIndex || opts.Indexer == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		if err := opts.Indexer.Index(ctx, opts.Dir, true); err != nil {
			logger.Warn("auto-index failed", "error", err)
			return
		}
		logger.Info("auto-index finished")
	}()
	return done
}
