// Package session owns background work tied to an agent session's lifetime,
// such as the memsearch file watcher.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Task is a long-running function that returns when ctx is cancelled
type Task func(ctx context.Context) error

// Status is a snapshot of the supervised task
type Status struct {
	Name      string    `json:"name,omitempty"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Supervisor runs at most one task at a time and tracks whether it is alive.
// The zero value is not usable; use NewSupervisor.
type Supervisor struct {
	mu      sync.Mutex
	name    string
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
	lastErr error
	logger  *slog.Logger
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{logger: logger.With("component", "session")}
}

// Start launches task under name unless a task is already running, and
// reports whether it started one. The task runs on a context derived from
// ctx; it stops when ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context, name string, task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		s.logger.Info("task already running", "task", s.name)
		return false
	}

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.name = name
	s.cancel = cancel
	s.done = done
	s.started = time.Now()
	s.lastErr = nil

	go func() {
		err := task(taskCtx)
		cancel()

		s.mu.Lock()
		s.lastErr = err
		if s.done == done {
			s.done = nil
			s.cancel = nil
		}
		s.mu.Unlock()
		close(done)

		if err != nil {
			s.logger.Warn("task exited", "task", name, "error", err)
		} else {
			s.logger.Info("task stopped", "task", name)
		}
	}()

	s.logger.Info("task started", "task", name)
	return true
}

// Running reports whether a task is currently alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Status returns a snapshot of the current or last task.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Name: s.name, Running: s.done != nil}
	if st.Running {
		st.StartedAt = s.started
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Stop cancels the running task, if any, and waits for it to return.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	<-done
}
