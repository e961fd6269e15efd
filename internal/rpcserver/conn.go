package rpcserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/neptaco/mcproc/internal/wire"
)

// handleConn runs one connection's request loop. Per spec.md §5 "one task
// per active RPC call", each RequestEnvelope gets its own goroutine so a
// slow streaming call (Start, GetLogs) never blocks a later unary call on
// the same connection; a mutex serializes writes back onto the shared
// net.Conn since ResponseEnvelopes from concurrent calls interleave freely
// (they carry the originating Seq for the client to demultiplex).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeMu sync.Mutex
	send := func(resp wire.ResponseEnvelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return wire.WriteMessage(conn, resp)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var req wire.RequestEnvelope
		if err := wire.ReadMessage(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("rpcserver: read failed", "err", err)
			}
			return
		}

		wg.Add(1)
		go func(req wire.RequestEnvelope) {
			defer wg.Done()
			s.dispatch(ctx, req, send)
		}(req)
	}
}
