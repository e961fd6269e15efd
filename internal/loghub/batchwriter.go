package loghub

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/neptaco/mcproc/internal/common"
)

// Batching thresholds are mandatory for throughput per spec.md §4.2 ("Lines
// are coalesced into ≈ 8 KiB chunks or flushed after a 50 ms quiescence
// window, whichever comes first"). The mechanism (size/time thresholds,
// background writer goroutine) is grounded on
// original_source/mcproc/src/daemon/log/batch_writer.rs's
// WRITE_BATCH_SIZE/WRITE_BATCH_TIMEOUT_MS/tokio::select loop; the on-disk
// text format follows spec.md §6 exactly, not the Rust original's format
// (see DESIGN.md).
const (
	flushByteThreshold = 8 * 1024
	flushInterval      = 50 * time.Millisecond
	writeChanBuffer    = 10_000
)

// BatchWriter appends LogEntry values to a single append-only file, batching
// writes so the capture path never blocks on disk I/O.
type BatchWriter struct {
	entries chan LogEntry
	done    chan struct{}
	closeMu sync.Mutex
	closed  bool
}

// OpenBatchWriter opens path for append (creating it and its parent
// directory if necessary) and starts the background flush goroutine.
func OpenBatchWriter(path string) (*BatchWriter, error) {
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := &BatchWriter{
		entries: make(chan LogEntry, writeChanBuffer),
		done:    make(chan struct{}),
	}
	go w.run(f)
	return w, nil
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}

// Write enqueues an entry for the background writer. It never blocks the
// capture path: if the channel is saturated, the entry is dropped rather
// than back-pressuring the caller (spec.md §5).
func (w *BatchWriter) Write(e LogEntry) {
	select {
	case w.entries <- e:
	default:
	}
}

func (w *BatchWriter) run(f *os.File) {
	defer func() { _ = f.Close() }()
	var buf strings.Builder
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		_, _ = f.WriteString(buf.String())
		buf.Reset()
	}

	for {
		select {
		case e, ok := <-w.entries:
			if !ok {
				flush()
				close(w.done)
				return
			}
			buf.WriteString(formatEntry(e))
			if buf.Len() >= flushByteThreshold {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close flushes any buffered bytes and closes the underlying file. Safe to
// call more than once.
func (w *BatchWriter) Close() {
	w.closeMu.Lock()
	defer w.closeMu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.entries)
	<-w.done
}

// formatEntry renders e in spec.md §6's on-disk line format:
// "<RFC-3339 UTC timestamp> <LEVEL> <content>", with any embedded newlines
// in Content (synthetic multi-line banners) written as raw continuation
// lines with no timestamp prefix, matching the historical-file read
// contract (spec.md §4.2).
func formatEntry(e LogEntry) string {
	lines := strings.Split(e.Content, "\n")
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s %s\n", common.FormatTimestamp(e.Timestamp), e.Level, lines[0]))
	for _, l := range lines[1:] {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}
