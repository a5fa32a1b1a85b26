package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no logger on a bare context")
	}

	logger := slog.Default()
	ctx := ContextWithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected stored logger to be returned")
	}
	if ContextWithLogger(ctx, nil) != ctx {
		t.Fatalf("expected nil logger to leave context untouched")
	}
}

func TestNewJSONFiltersBelowLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "json")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "session_id", "a")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected json record: %v", err)
	}
	if record["msg"] != "shown" || record["session_id"] != "a" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatalf("expected unknown format to fail")
	}
}
