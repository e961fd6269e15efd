package client

import (
	"context"

	"github.com/neptaco/mcproc/internal/wire"
)

// StartItem is one element of Start's response stream (spec.md §4.3): a
// captured log line while Start waits on readiness, or the terminal
// process snapshot that always arrives last.
type StartItem struct {
	LogLine *LogEntry
	Record  *ProcessRecord
}

// StartStream is the in-progress response to a Start call. Read Items()
// until it closes; then check Err().
type StartStream struct {
	items chan StartItem
	err   error
}

// Items returns the channel of stream elements. It closes once the
// daemon sends KindEnd, the call errors, or ctx is done.
func (s *StartStream) Items() <-chan StartItem { return s.items }

// Err returns the error that ended the stream, or nil if it ended
// normally.
func (s *StartStream) Err() error { return s.err }

// Start implements spec.md §4.1 Start's server-streaming response.
// Grounded on stream.go's handleStart on the server side: the exact same
// StartStreamItem alternative is decoded here in reverse.
func (c *Client) Start(ctx context.Context, p StartParams) (*StartStream, error) {
	req := wire.StartRequest{
		Project:        p.Project,
		Name:           p.Name,
		ShellCommand:   p.ShellCommand,
		Argv:           p.Argv,
		Cwd:            p.Cwd,
		Env:            p.Env,
		WaitForPattern: p.WaitForPattern,
		Toolchain:      p.Toolchain,
		ForceRestart:   p.ForceRestart,
	}
	if p.WaitTimeout > 0 {
		req.WaitTimeoutMillis = p.WaitTimeout.Milliseconds()
	}
	data, err := wire.Marshal(req)
	if err != nil {
		return nil, err
	}

	seq, raw := c.register(64)
	if err := c.send(wire.RequestEnvelope{Op: wire.OpStart, Seq: seq, Payload: data}); err != nil {
		c.unregister(seq)
		return nil, err
	}

	s := &StartStream{items: make(chan StartItem, 64)}
	go func() {
		defer close(s.items)
		for {
			select {
			case resp, ok := <-raw:
				if !ok {
					return
				}
				switch resp.Kind {
				case wire.KindErr:
					s.err = resp.Err
					c.unregister(seq)
					return
				case wire.KindEnd:
					c.unregister(seq)
					return
				}
				var item wire.StartStreamItem
				if err := wire.Unmarshal(resp.Payload, &item); err != nil {
					s.err = err
					c.abandonStream(seq, raw)
					return
				}
				out := StartItem{}
				if item.LogEntry != nil {
					entry := logEntryFromWire(*item.LogEntry)
					out.LogLine = &entry
				}
				if item.ProcessInfo != nil {
					rec := recordFromWire(*item.ProcessInfo)
					out.Record = &rec
				}
				s.items <- out
			case <-ctx.Done():
				s.err = ctx.Err()
				c.abandonStream(seq, raw)
				return
			case <-c.closed:
				s.err = ErrClosed
				c.unregister(seq)
				return
			}
		}
	}()
	return s, nil
}

// LogItem is one element of GetLogs's response stream (spec.md §4.2,
// §4.3): a log line, or, when IncludeEvents is set, a lifecycle event
// interleaved in timestamp order.
type LogItem struct {
	LogLine   *LogEntry
	Lifecycle *LifecycleEvent
}

// LogStream is the in-progress response to a GetLogs call.
type LogStream struct {
	items chan LogItem
	err   error
}

// Items returns the channel of stream elements. With Follow unset it
// closes once the buffered tail has been delivered; with Follow set it
// stays open until the caller's ctx is done or the daemon shuts down.
func (s *LogStream) Items() <-chan LogItem { return s.items }

// Err returns the error that ended the stream, or nil if it ended
// normally.
func (s *LogStream) Err() error { return s.err }

// GetLogs implements spec.md §4.2 GetLogs.
//
// Closing ctx stops this stream's own delivery to the caller, but the
// wire protocol has no call-scoped cancel op (spec.md §4.3 ties
// cancellation to "client disconnects"): a Follow=true stream keeps
// running server-side, invisibly draining into the client's read loop,
// until the whole connection is closed. Callers that want a live-tail
// GetLogs to truly stop server-side should Dial a dedicated connection
// for it and Close that connection when done, rather than share a
// connection also used for other calls.
func (c *Client) GetLogs(ctx context.Context, p GetLogsParams) (*LogStream, error) {
	req := wire.GetLogsRequest{
		Project:       p.Project,
		Name:          p.Name,
		Tail:          p.Tail,
		Follow:        p.Follow,
		IncludeEvents: p.IncludeEvents,
	}
	data, err := wire.Marshal(req)
	if err != nil {
		return nil, err
	}

	seq, raw := c.register(64)
	if err := c.send(wire.RequestEnvelope{Op: wire.OpGetLogs, Seq: seq, Payload: data}); err != nil {
		c.unregister(seq)
		return nil, err
	}

	s := &LogStream{items: make(chan LogItem, 64)}
	go func() {
		defer close(s.items)
		for {
			select {
			case resp, ok := <-raw:
				if !ok {
					return
				}
				switch resp.Kind {
				case wire.KindErr:
					s.err = resp.Err
					c.unregister(seq)
					return
				case wire.KindEnd:
					c.unregister(seq)
					return
				}
				var item wire.GetLogsStreamItem
				if err := wire.Unmarshal(resp.Payload, &item); err != nil {
					s.err = err
					c.abandonStream(seq, raw)
					return
				}
				out := LogItem{}
				if item.LogEntry != nil {
					entry := logEntryFromWire(*item.LogEntry)
					out.LogLine = &entry
				}
				if item.LifecycleEvent != nil {
					ev := lifecycleFromWire(*item.LifecycleEvent)
					out.Lifecycle = &ev
				}
				s.items <- out
			case <-ctx.Done():
				s.err = ctx.Err()
				c.abandonStream(seq, raw)
				return
			case <-c.closed:
				s.err = ErrClosed
				c.unregister(seq)
				return
			}
		}
	}()
	return s, nil
}
