// Package rpcserver implements spec.md §4.3's RPC Server: a Unix-domain
// stream socket listener that dispatches length-delimited CBOR requests
// against an internal/supervisor.Registry. Grounded on
// loykin-provisr/internal/server/router.go's
// validate-then-dispatch-then-marshal handler shape, restructured from
// gin's HTTP routing onto a raw socket protocol since spec.md §4.3
// mandates a Unix-domain socket rather than HTTP.
package rpcserver

import (
	"errors"
	"log/slog"
	"net"
	"os"

	"github.com/neptaco/mcproc/internal/supervisor"
)

// Server owns the listener and the handlers that answer requests against
// registry. registry already wraps the Log Hub (Stream, LogFilePath), so
// rpcserver never needs a direct *loghub.Hub reference of its own.
type Server struct {
	registry  *supervisor.Registry
	log       *slog.Logger
	stateRoot string

	ln net.Listener
}

// NewServer removes any stale socket file at socketPath, listens on it as a
// Unix stream socket, and restricts it to mode 0600 (spec.md §4.3 "Unix
// domain stream socket, permission 0600"). stateRoot is reported verbatim
// in DaemonStatus responses.
func NewServer(socketPath string, reg *supervisor.Registry, stateRoot string, log *slog.Logger) (*Server, error) {
	if err := removeStaleSocket(socketPath); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = ln.Close()
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{registry: reg, log: log, stateRoot: stateRoot, ln: ln}, nil
}

// removeStaleSocket unlinks a leftover socket file from a daemon that
// exited without cleaning up. A fresh Listen on the same path otherwise
// fails with "address already in use".
func removeStaleSocket(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Serve accepts connections until the listener is closed, handling each on
// its own goroutine. It returns nil when the listener was closed
// deliberately (via Close).
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting new connections. In-flight connections run to
// completion on their own.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Addr returns the socket path the server is listening on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}
