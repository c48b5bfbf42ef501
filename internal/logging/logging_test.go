package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Config{Format: "json", Level: "info"})
	log.Debug("hidden")
	log.Info("visible", "table", "staff")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "visible" || entry["table"] != "staff" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestRunIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if RunID(ctx) != "" {
		t.Fatal("empty context should carry no run id")
	}
	id := NewRunID()
	if len(id) != 36 {
		t.Errorf("run id %q is not a uuid", id)
	}
	if got := RunID(WithRunID(ctx, id)); got != id {
		t.Errorf("RunID = %q, want %q", got, id)
	}
}
