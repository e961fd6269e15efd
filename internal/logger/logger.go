// Package logger sets up the daemon's own diagnostic log: a single
// slog-based stream distinct from the managed-process output internal/loghub
// captures. Grounded on loykin-provisr/internal/logger.Config's
// lumberjack-backed rotation, redirected from per-process stdout/stderr
// files to one daemon-wide log file (spec.md §6, <state_root>/log/mcprocd.log).
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the daemon log (loykin-provisr/internal/logger defaults).
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the daemon's own diagnostic log destination and
// rotation, and whether it is also mirrored to stderr (for interactive,
// non-daemonized runs).
type Config struct {
	Path         string // mcprocd.log path; empty disables file logging
	MaxSizeMB    int
	MaxBackups   int
	MaxAgeDays   int
	Compress     bool
	Level        slog.Level
	MirrorStderr bool // also write human-readable colored text to stderr
}

// New builds the daemon's slog.Logger per Config. The file handler always
// writes JSON (machine-parseable); an optional stderr mirror uses
// ColorTextHandler for a human watching the terminal.
func New(cfg Config) *slog.Logger {
	var handlers []slog.Handler

	if cfg.Path != "" {
		w := &lj.Logger{
			Filename:   cfg.Path,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level}))
	}
	if cfg.MirrorStderr {
		handlers = append(handlers, NewColorTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level}, true))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: cfg.Level}))
	case 1:
		return slog.New(handlers[0])
	default:
		return slog.New(fanoutHandler(handlers))
	}
}

// fanoutHandler writes every record to each of its handlers: the daemon log
// file and an optional stderr mirror run side by side rather than one
// wrapping the other, since they use unrelated formats (JSON vs colored
// text).
type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
