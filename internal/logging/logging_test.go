package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(Config{Level: "debug", Format: "json"}, &buf)

	log.With(String("component", "resolver")).Info(context.Background(), "route recomputed",
		Int("origin", 3),
		Ints("roads", []int{4, 5}),
		Error(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "route recomputed" || rec["component"] != "resolver" || rec["error"] != "boom" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["origin"] != float64(3) {
		t.Fatalf("origin = %v, want 3", rec["origin"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(Config{Level: "warn"}, &buf)
	ctx := context.Background()

	log.Info(ctx, "dropped")
	log.Warn(ctx, "kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("level filtering failed: %q", out)
	}
}

func TestWithTickLoggerReusesID(t *testing.T) {
	ctx, id := EnsureTickID(context.Background())
	if id == "" {
		t.Fatalf("expected generated tick id")
	}
	ctx2, _ := WithTickLogger(ctx, nil)
	if got := TickIDFromContext(ctx2); got != id {
		t.Fatalf("tick id = %q, want %q", got, id)
	}

	var buf bytes.Buffer
	_, log := WithTickLogger(ContextWithTickID(context.Background(), "tick-7"), newWithWriter(Config{}, &buf))
	log.Info(context.Background(), "hello")
	if !strings.Contains(buf.String(), "tick_id=tick-7") {
		t.Fatalf("tick logger missing tick_id: %q", buf.String())
	}
}

func TestRequestIDAndContextLogger(t *testing.T) {
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx, id := EnsureRequestID(ctx)
	if id != "req-1" {
		t.Fatalf("request id = %q, want req-1", id)
	}
	if LoggerFromContext(ctx) != nil {
		t.Fatalf("expected no logger on a bare context")
	}

	_, log := WithRequestLogger(ctx, Noop())
	ctx = ContextWithLogger(ctx, log)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("logger not stored on context")
	}
}

func TestFileOutputUsesRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navsim.log")
	w := outputFor(Config{File: path})
	if _, err := w.Write([]byte("line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if c, ok := w.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
