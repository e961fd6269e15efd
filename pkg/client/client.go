// Package client is the Go client library for mcprocd's RPC protocol
// (spec.md §6, "External client contract"). It dials the daemon's
// Unix-domain socket directly rather than going through cmd/mcproc's CLI
// presentation layer, so other Go programs (an MCP tool adapter, a test
// harness) can drive the daemon without shelling out.
//
// Grounded on loykin-provisr/pkg/client/client.go's shape (a thin Client
// wrapping one transport, one request-response helper per daemon
// operation), restructured from a pooled *http.Client issuing independent
// requests onto a single persistent connection that multiplexes unary and
// streaming calls by Seq, since spec.md §4.3 defines the wire protocol in
// those terms rather than HTTP's request-per-connection model.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/neptaco/mcproc/internal/wire"
)

// ErrClosed is returned by any call made against a Client whose
// connection has already been closed, locally or by the daemon.
var ErrClosed = fmt.Errorf("mcproc client: connection closed")

// Client speaks mcprocd's length-delimited CBOR protocol over a single
// Unix-domain connection. One Client may have any number of unary and
// streaming calls outstanding at once; each is demultiplexed by the
// RequestEnvelope/ResponseEnvelope Seq field (spec.md §4.3, §5).
type Client struct {
	conn net.Conn

	writeMu sync.Mutex
	seq     atomic.Uint64

	pendingMu sync.Mutex
	pending   map[uint64]chan wire.ResponseEnvelope

	closed   chan struct{}
	closeErr error
	once     sync.Once
}

// Dial connects to the daemon's Unix-domain socket at socketPath and
// starts the background read loop that demultiplexes responses.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("mcproc client: dial %s: %w", socketPath, err)
	}
	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan wire.ResponseEnvelope),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close closes the underlying connection. Any call still waiting on a
// response is unblocked with ErrClosed.
func (c *Client) Close() error {
	c.once.Do(func() {
		_ = c.conn.Close()
		close(c.closed)
	})
	return nil
}

// readLoop is the single reader of c.conn; it runs for the lifetime of
// the connection and fans each response out to the channel registered
// under its Seq. Grounded on spec.md §5's "one task per active RPC call"
// applied symmetrically on the client side: one reader goroutine, any
// number of caller goroutines blocked on their own Seq's channel.
func (c *Client) readLoop() {
	for {
		var resp wire.ResponseEnvelope
		if err := wire.ReadMessage(c.conn, &resp); err != nil {
			c.failAll(err)
			return
		}
		c.pendingMu.Lock()
		ch := c.pending[resp.Seq]
		c.pendingMu.Unlock()
		if ch == nil {
			continue
		}
		select {
		case ch <- resp:
		case <-c.closed:
			return
		}
	}
}

// failAll delivers a synthetic Unavailable error to every pending call
// once the connection breaks, so no caller blocks forever.
func (c *Client) failAll(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.closeErr = err
	werr := wire.Unavailable("connection lost: %s", err)
	for seq, ch := range c.pending {
		ch <- wire.ResponseEnvelope{Seq: seq, Kind: wire.KindErr, Err: werr}
	}
}

func (c *Client) register(buf int) (uint64, chan wire.ResponseEnvelope) {
	seq := c.seq.Add(1)
	ch := make(chan wire.ResponseEnvelope, buf)
	c.pendingMu.Lock()
	c.pending[seq] = ch
	c.pendingMu.Unlock()
	return seq, ch
}

func (c *Client) unregister(seq uint64) {
	c.pendingMu.Lock()
	delete(c.pending, seq)
	c.pendingMu.Unlock()
}

// abandonStream is used when a streaming call's consumer stops reading
// before the daemon sends KindEnd (the caller's ctx was cancelled, or the
// stream was abandoned). readLoop is single-threaded and shared by every
// call on this connection, so leaving seq registered with nobody
// receiving on raw would risk readLoop blocking on a full channel and
// stalling every other in-flight call. This drains and discards
// remaining frames for seq in the background until the daemon ends the
// stream or the connection closes, then unregisters.
func (c *Client) abandonStream(seq uint64, raw <-chan wire.ResponseEnvelope) {
	go func() {
		defer c.unregister(seq)
		for {
			select {
			case resp, ok := <-raw:
				if !ok || resp.Kind == wire.KindEnd || resp.Kind == wire.KindErr {
					return
				}
			case <-c.closed:
				return
			}
		}
	}()
}

func (c *Client) send(req wire.RequestEnvelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteMessage(c.conn, req)
}

// call performs one unary request/response round trip: exactly one
// ResponseEnvelope is expected back (spec.md §4.3).
func (c *Client) call(ctx context.Context, op wire.OpCode, payload any, out any) error {
	data, err := wire.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mcproc client: marshal %s request: %w", op, err)
	}
	seq, ch := c.register(1)
	defer c.unregister(seq)

	if err := c.send(wire.RequestEnvelope{Op: op, Seq: seq, Payload: data}); err != nil {
		return fmt.Errorf("mcproc client: send %s request: %w", op, err)
	}

	select {
	case resp := <-ch:
		if resp.Kind == wire.KindErr {
			return resp.Err
		}
		if out == nil {
			return nil
		}
		return wire.Unmarshal(resp.Payload, out)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrClosed
	}
}

// Stop implements spec.md §4.1 Stop.
func (c *Client) Stop(ctx context.Context, project, name string, force bool) (ProcessRecord, error) {
	var resp wire.StopResponse
	req := wire.StopRequest{Project: project, Name: name, Force: force}
	if err := c.call(ctx, wire.OpStop, req, &resp); err != nil {
		return ProcessRecord{}, err
	}
	return recordFromWire(resp.Record), nil
}

// Restart implements spec.md §4.1 Restart.
func (c *Client) Restart(ctx context.Context, p RestartParams) (ProcessRecord, error) {
	req := wire.RestartRequest{Project: p.Project, Name: p.Name}
	if p.WaitForPattern != nil {
		req.WaitForPattern = p.WaitForPattern
	}
	if p.WaitTimeout != nil {
		ms := p.WaitTimeout.Milliseconds()
		req.WaitTimeoutMillis = &ms
	}
	var resp wire.RestartResponse
	if err := c.call(ctx, wire.OpRestart, req, &resp); err != nil {
		return ProcessRecord{}, err
	}
	return recordFromWire(resp.Record), nil
}

// Get implements spec.md §4.1 Get.
func (c *Client) Get(ctx context.Context, project, name string) (ProcessRecord, error) {
	var resp wire.GetResponse
	req := wire.GetRequest{Project: project, Name: name}
	if err := c.call(ctx, wire.OpGet, req, &resp); err != nil {
		return ProcessRecord{}, err
	}
	return recordFromWire(resp.Record), nil
}

// List implements spec.md §4.1 List. An empty project/state matches
// every project/state respectively.
func (c *Client) List(ctx context.Context, project, state string) ([]ProcessRecord, error) {
	var resp wire.ListResponse
	req := wire.ListRequest{Project: project, State: state}
	if err := c.call(ctx, wire.OpList, req, &resp); err != nil {
		return nil, err
	}
	out := make([]ProcessRecord, len(resp.Records))
	for i, r := range resp.Records {
		out[i] = recordFromWire(r)
	}
	return out, nil
}

// Grep implements spec.md §4.2 Grep.
func (c *Client) Grep(ctx context.Context, p GrepParams) ([]GrepMatch, error) {
	req := wire.GrepRequest{
		Project:       p.Project,
		Name:          p.Name,
		Pattern:       p.Pattern,
		ContextBefore: p.ContextBefore,
		ContextAfter:  p.ContextAfter,
		Last:          p.Last,
		MaxMatches:    p.MaxMatches,
	}
	if !p.Since.IsZero() {
		req.SinceMillis = p.Since.UnixMilli()
	}
	if !p.Until.IsZero() {
		req.UntilMillis = p.Until.UnixMilli()
	}
	var resp wire.GrepResponse
	if err := c.call(ctx, wire.OpGrep, req, &resp); err != nil {
		return nil, err
	}
	out := make([]GrepMatch, len(resp.Matches))
	for i, m := range resp.Matches {
		out[i] = grepMatchFromWire(m)
	}
	return out, nil
}

// Clean implements spec.md §4.1 Clean.
func (c *Client) Clean(ctx context.Context, project string, all, force bool) (CleanResult, error) {
	var resp wire.CleanResponse
	req := wire.CleanRequest{Project: project, All: all, Force: force}
	if err := c.call(ctx, wire.OpClean, req, &resp); err != nil {
		return CleanResult{}, err
	}
	return CleanResult{StoppedNames: resp.StoppedNames, DeletedPaths: resp.DeletedPaths}, nil
}

// DaemonStatus implements spec.md §4.1 DaemonStatus. A caller compares
// Version against its own expectation and may refuse to proceed against
// an incompatible daemon (spec.md §4.3, "the only compatibility check").
func (c *Client) DaemonStatus(ctx context.Context) (DaemonStatus, error) {
	var resp wire.DaemonStatusResponse
	if err := c.call(ctx, wire.OpDaemonStatus, wire.DaemonStatusRequest{}, &resp); err != nil {
		return DaemonStatus{}, err
	}
	return DaemonStatus{
		Version:          resp.Version,
		PID:              resp.PID,
		StartTime:        msToTime(resp.StartTimeMillis),
		Uptime:           secondsToDuration(resp.UptimeSeconds),
		StateRoot:        resp.StateRoot,
		NonTerminalCount: resp.NonTerminalCount,
	}, nil
}
