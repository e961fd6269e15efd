package logger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_NoPathNoMirrorDiscards(t *testing.T) {
	l := New(Config{})
	// Should not panic and should produce a usable logger even with nothing
	// wired up.
	l.Info("hello")
}

func TestNew_FileOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcprocd.log")
	l := New(Config{Path: path, Level: slog.LevelInfo})
	l.Info("daemon started", "pid", 1)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}
}

func TestNew_FileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcprocd.log")
	New(Config{Path: path})
	// valOr should have applied defaults; nothing observable from outside
	// New() itself, so just confirm construction didn't panic and the
	// helper computes the documented defaults.
	if got := valOr(0, DefaultMaxSizeMB); got != DefaultMaxSizeMB {
		t.Fatalf("valOr(0, default) = %d, want %d", got, DefaultMaxSizeMB)
	}
	if got := valOr(5, DefaultMaxSizeMB); got != 5 {
		t.Fatalf("valOr(5, default) = %d, want 5", got)
	}
}

func TestFanoutHandler_WritesToAllHandlers(t *testing.T) {
	var bufA, bufB bytes.Buffer
	ha := slog.NewJSONHandler(&bufA, nil)
	hb := slog.NewJSONHandler(&bufB, nil)
	f := fanoutHandler{ha, hb}

	logger := slog.New(f)
	logger.Info("test message")

	if bufA.Len() == 0 {
		t.Fatal("expected handler A to receive the record")
	}
	if bufB.Len() == 0 {
		t.Fatal("expected handler B to receive the record")
	}
}

func TestFanoutHandler_Enabled(t *testing.T) {
	quiet := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})
	verbose := slog.NewJSONHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})
	f := fanoutHandler{quiet, verbose}

	if !f.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected Enabled to be true when any handler accepts the level")
	}

	onlyQuiet := fanoutHandler{quiet}
	if onlyQuiet.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected Enabled to be false when no handler accepts the level")
	}
}

func TestFanoutHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, nil)
	f := fanoutHandler{h}

	withAttrs := f.WithAttrs([]slog.Attr{slog.String("component", "test")})
	if _, ok := withAttrs.(fanoutHandler); !ok {
		t.Fatalf("WithAttrs should return a fanoutHandler, got %T", withAttrs)
	}

	withGroup := f.WithGroup("g")
	if _, ok := withGroup.(fanoutHandler); !ok {
		t.Fatalf("WithGroup should return a fanoutHandler, got %T", withGroup)
	}

	logger := slog.New(withAttrs)
	logger.Info("grouped")
	if buf.Len() == 0 {
		t.Fatal("expected record to reach the underlying handler")
	}
}

func TestNew_FileAndMirror(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcprocd.log")
	l := New(Config{Path: path, MirrorStderr: true, Level: slog.LevelInfo})
	l.Info("both")

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file at %s: %v", path, err)
	}
}
