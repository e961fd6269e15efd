package loghub

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/neptaco/mcproc/internal/common"
)

// Stream owns everything the Log Hub tracks for a single process record
// key: the in-memory tail (RingBuffer), the append-only on-disk mirror
// (BatchWriter), the running line-number counter, and the set of live
// subscribers. Grounded on daemon/log/mod.rs + daemon/process/hyperlog.rs's
// per-process log actor, restructured around a Go mutex instead of an
// actor mailbox since the hub has no other state to serialize.
type Stream struct {
	key common.ProcessKey

	mu       sync.Mutex
	ring     *RingBuffer
	writer   *BatchWriter
	lines    int64
	subs     map[int]*Subscriber
	nextSubID int
	closed   bool
}

func newStream(key common.ProcessKey, writer *BatchWriter) *Stream {
	return &Stream{
		key:    key,
		ring:   NewRingBuffer(DefaultCapacity),
		writer: writer,
		subs:   make(map[int]*Subscriber),
	}
}

// append records content under level, assigning the next line number and
// the current time, then fans out to the ring buffer, the on-disk writer,
// and every live subscriber.
func (s *Stream) append(level Level, content string) LogEntry {
	s.mu.Lock()
	s.lines++
	e := LogEntry{LineNumber: s.lines, Timestamp: time.Now(), Level: level, Content: content}
	s.ring.Push(e)
	subs := make([]*Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.writer.Write(e)
	ev := Event{Log: &e}
	for _, sub := range subs {
		sub.publish(ev)
	}
	return e
}

// PublishLifecycle fans a lifecycle event out to event-subscribed readers
// only; it is not written to the log file or ring buffer (spec.md §4.4
// treats lifecycle events and log lines as separate channels that a
// streaming reader may ask to interleave).
func (s *Stream) PublishLifecycle(ev LifecycleEvent) {
	s.mu.Lock()
	subs := make([]*Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()
	e := Event{Lifecycle: &ev}
	for _, sub := range subs {
		sub.publish(e)
	}
}

// Tail returns the most recent n buffered entries (n <= 0 means all).
func (s *Stream) Tail(n int) []LogEntry {
	return s.ring.Tail(n)
}

// ResetLineCounter restarts line numbering from 1. Called by the
// Supervisor at the start of every spawn, including restarts, since
// spec.md §3 requires "line numbering restarts" on a fresh spawn even
// though the record keeps its key and log file (a generation counter
// distinguishes runs instead).
func (s *Stream) ResetLineCounter() {
	s.mu.Lock()
	s.lines = 0
	s.mu.Unlock()
}

// Subscribe registers a new live reader and returns its queue plus an
// unsubscribe function. wantEvents opts the subscriber into lifecycle
// events interleaved with log lines.
func (s *Stream) Subscribe(wantEvents bool) (*Subscriber, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	sub := newSubscriber(id, wantEvents)
	s.subs[id] = sub
	return sub, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// CaptureReader copies complete lines from r into the stream under level
// until r is exhausted or closed. It is meant to be run in its own
// goroutine against a Process's Stdout()/Stderr() pipe. A line longer than
// 1 MiB is truncated to its first 1 MiB; the rest of it is read and
// discarded, so capture goes on with the next line.
func (s *Stream) CaptureReader(r io.Reader, level Level) {
	const maxLineBytes = 1024 * 1024
	br := bufio.NewReaderSize(r, 8192)
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return
		}
		if room := maxLineBytes - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if !isPrefix {
			s.append(level, string(line))
			line = line[:0]
		}
	}
}

// System records a SYSTEM-level banner or annotation line (spec.md §4.2,
// e.g. "=== Process Started ===" / "=== Process Exited ===").
func (s *Stream) System(content string) LogEntry {
	return s.append(LevelSystem, content)
}

// close flushes and closes the on-disk writer. It does not remove the
// stream from the Hub's registry; Hub.Close or Hub.Forget do that.
func (s *Stream) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.writer.Close()
}

// Hub is the process-wide Log Hub: one Stream per known process record key,
// created on first write and retained (subject to Forget/retention sweep)
// across restarts so history survives a process's lifetime.
type Hub struct {
	mu      sync.Mutex
	streams map[common.ProcessKey]*Stream
	logDir  func(common.ProcessKey) string
}

// NewHub creates an empty Hub. logDir resolves a process key to the path
// of its append-only log file (cmd/mcprocd passes one built on
// internal/common.Paths.ProcessLogFile).
func NewHub(logDir func(common.ProcessKey) string) *Hub {
	return &Hub{streams: make(map[common.ProcessKey]*Stream), logDir: logDir}
}

// Stream returns the Stream for key, opening its on-disk file on first
// use.
func (h *Hub) Stream(key common.ProcessKey) (*Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.streams[key]; ok {
		return s, nil
	}
	path := h.logDir(key)
	w, err := OpenBatchWriter(path)
	if err != nil {
		return nil, err
	}
	s := newStream(key, w)
	h.streams[key] = s
	return s, nil
}

// Forget closes and drops the Stream for key, e.g. when a project is
// cleaned (spec.md §3 Clean operation). The on-disk file itself is left
// for the caller to remove.
func (h *Hub) Forget(key common.ProcessKey) {
	h.mu.Lock()
	s, ok := h.streams[key]
	delete(h.streams, key)
	h.mu.Unlock()
	if ok {
		s.close()
	}
}

// Close flushes and closes every tracked stream. Called during daemon
// shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	streams := make([]*Stream, 0, len(h.streams))
	for _, s := range h.streams {
		streams = append(streams, s)
	}
	h.streams = make(map[common.ProcessKey]*Stream)
	h.mu.Unlock()
	for _, s := range streams {
		s.close()
	}
}

// Keys returns every process key the Hub currently tracks a Stream for.
func (h *Hub) Keys() []common.ProcessKey {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]common.ProcessKey, 0, len(h.streams))
	for k := range h.streams {
		keys = append(keys, k)
	}
	return keys
}
