package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStartRefusesSecondTask(t *testing.T) {
	s := NewSupervisor(nil)
	block := func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}

	if !s.Start(context.Background(), "watch", block) {
		t.Fatal("Expected first start to succeed")
	}
	if s.Start(context.Background(), "watch", block) {
		t.Error("Expected second start to be refused")
	}
	if !s.Running() {
		t.Error("Expected task to be running")
	}

	st := s.Status()
	if !st.Running || st.Name != "watch" || st.StartedAt.IsZero() {
		t.Errorf("Unexpected status %+v", st)
	}

	s.Stop()
	if s.Running() {
		t.Error("Expected task to be stopped")
	}
	if !s.Start(context.Background(), "watch", block) {
		t.Error("Expected restart after stop")
	}
	s.Stop()
}

func TestTaskExitClearsRunning(t *testing.T) {
	s := NewSupervisor(nil)
	boom := errors.New("watcher crashed")

	s.Start(context.Background(), "watch", func(ctx context.Context) error {
		return boom
	})
	waitUntil(t, func() bool { return !s.Running() })

	if st := s.Status(); st.LastError != boom.Error() || st.Running {
		t.Errorf("Unexpected status %+v", st)
	}
	if !s.Start(context.Background(), "watch", func(ctx context.Context) error { return nil }) {
		t.Error("Expected start after the previous task exited")
	}
}

func TestParentCancellationStopsTask(t *testing.T) {
	s := NewSupervisor(nil)
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx, "watch", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	cancel()
	waitUntil(t, func() bool { return !s.Running() })
}

func TestStopIdle(t *testing.T) {
	s := NewSupervisor(nil)
	s.Stop()
	if s.Running() {
		t.Error("Expected idle supervisor")
	}
}
