package schedule

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for concurrent handlers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(testLogger(&syncBuffer{}))
	err := s.Add("etl", "every now and then", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestAddAcceptsDescriptors(t *testing.T) {
	s := New(testLogger(&syncBuffer{}))
	for _, spec := range []string{"@every 15m", "*/30 * * * *", "@hourly"} {
		if err := s.Add("etl", spec, func(ctx context.Context) error { return nil }); err != nil {
			t.Errorf("Add(%q): %v", spec, err)
		}
	}
	if n := len(s.cron.Entries()); n != 3 {
		t.Errorf("entries = %d, want 3", n)
	}
}

func TestWrapLogsFailures(t *testing.T) {
	var out syncBuffer
	s := New(testLogger(&out))

	type ctxKey struct{}
	s.ctx = context.WithValue(context.Background(), ctxKey{}, "run")

	var got any
	s.wrap("etl", func(ctx context.Context) error {
		got = ctx.Value(ctxKey{})
		return errors.New("warehouse unavailable")
	}).Run()

	if got != "run" {
		t.Errorf("job did not receive the scheduler context")
	}
	if !strings.Contains(out.String(), "job failed") || !strings.Contains(out.String(), "warehouse unavailable") {
		t.Errorf("failure not logged:\n%s", out.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(testLogger(&syncBuffer{}))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCronLoggerError(t *testing.T) {
	var out syncBuffer
	cronLogger{log: testLogger(&out)}.Error(errors.New("panic"), "recovered", "job", "etl")
	if !strings.Contains(out.String(), "cron: recovered") || !strings.Contains(out.String(), "error=panic") {
		t.Errorf("unexpected log output:\n%s", out.String())
	}
}
