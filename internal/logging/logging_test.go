package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestNewJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(Component("lifecycle")).Warn(context.Background(), "start failed",
		Err(errors.New("boom")),
		Float64("accuracy", 4.5),
		Bool("tracking", false),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "start failed" {
		t.Fatalf("msg = %v, want %q", entry["msg"], "start failed")
	}
	if entry["component"] != "lifecycle" {
		t.Fatalf("component = %v, want lifecycle", entry["component"])
	}
	if entry["error"] != "boom" {
		t.Fatalf("error = %v, want boom", entry["error"])
	}
	if entry["level"] != "WARN" {
		t.Fatalf("level = %v, want WARN", entry["level"])
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.Debug(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug line to be filtered, got %q", buf.String())
	}
}

func TestEnsureSessionIDIsStable(t *testing.T) {
	ctx, id := EnsureSessionID(context.Background())
	if id == "" {
		t.Fatalf("expected a generated session id")
	}
	ctx2, id2 := EnsureSessionID(ctx)
	if id2 != id || SessionIDFromContext(ctx2) != id {
		t.Fatalf("session id changed: %q -> %q", id, id2)
	}
}

func TestContextLoggerRoundTrip(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on bare context")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("expected noop logger to be stored")
	}
}
