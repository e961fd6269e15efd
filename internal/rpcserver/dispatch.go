package rpcserver

import (
	"context"

	"github.com/neptaco/mcproc/internal/supervisor"
	"github.com/neptaco/mcproc/internal/wire"
)

// sendFunc writes one response frame back to the requesting connection.
type sendFunc func(wire.ResponseEnvelope) error

// dispatch runs one request to completion: a unary call sends exactly one
// KindData (or KindErr) frame; a streaming call (Start, GetLogs) sends zero
// or more KindData frames followed by one KindEnd (or a terminating
// KindErr). Grounded on router.go's validate-then-dispatch-then-marshal
// shape, generalized from one-http-response-per-call to the wire
// protocol's unary/streaming distinction (spec.md §4.3).
func (s *Server) dispatch(ctx context.Context, req wire.RequestEnvelope, send sendFunc) {
	switch req.Op {
	case wire.OpStart:
		s.handleStart(ctx, req, send)
	case wire.OpGetLogs:
		s.handleGetLogs(ctx, req, send)
	default:
		s.dispatchUnary(req, send)
	}
}

func (s *Server) dispatchUnary(req wire.RequestEnvelope, send sendFunc) {
	payload, werr := s.unary(req)
	if werr != nil {
		_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindErr, Err: werr})
		return
	}
	data, err := wire.Marshal(payload)
	if err != nil {
		_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindErr, Err: wire.Internal("%s", err)})
		return
	}
	_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindData, Payload: data})
}

func (s *Server) unary(req wire.RequestEnvelope) (any, *wire.Error) {
	switch req.Op {
	case wire.OpStop:
		return s.handleStop(req.Payload)
	case wire.OpRestart:
		return s.handleRestart(req.Payload)
	case wire.OpGet:
		return s.handleGet(req.Payload)
	case wire.OpList:
		return s.handleList(req.Payload)
	case wire.OpGrep:
		return s.handleGrep(req.Payload)
	case wire.OpClean:
		return s.handleClean(req.Payload)
	case wire.OpDaemonStatus:
		return s.handleDaemonStatus()
	default:
		return nil, wire.InvalidArgument("unknown op %d", req.Op)
	}
}

func asWireErr(err error) *wire.Error {
	if err == nil {
		return nil
	}
	if we, ok := err.(*wire.Error); ok {
		return we
	}
	return wire.Internal("%s", err)
}

func (s *Server) handleStop(payload wire.RawMessage) (any, *wire.Error) {
	var req wire.StopRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, wire.InvalidArgument("decode StopRequest: %s", err)
	}
	snap, err := s.registry.Stop(supervisor.StopParams{Project: req.Project, Name: req.Name, Force: req.Force})
	if err != nil {
		return nil, asWireErr(err)
	}
	return wire.StopResponse{Record: snapshotToMsg(snap)}, nil
}

func (s *Server) handleRestart(payload wire.RawMessage) (any, *wire.Error) {
	var req wire.RestartRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, wire.InvalidArgument("decode RestartRequest: %s", err)
	}
	params := supervisor.RestartParams{Project: req.Project, Name: req.Name}
	if req.WaitForPattern != nil {
		params.WaitForPattern = req.WaitForPattern
	}
	if req.WaitTimeoutMillis != nil {
		d := millisToDuration(*req.WaitTimeoutMillis)
		params.WaitTimeout = &d
	}
	snap, err := s.registry.Restart(params)
	if err != nil {
		return nil, asWireErr(err)
	}
	return wire.RestartResponse{Record: snapshotToMsg(snap)}, nil
}

func (s *Server) handleGet(payload wire.RawMessage) (any, *wire.Error) {
	var req wire.GetRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, wire.InvalidArgument("decode GetRequest: %s", err)
	}
	snap, err := s.registry.Get(req.Project, req.Name)
	if err != nil {
		return nil, asWireErr(err)
	}
	return wire.GetResponse{Record: snapshotToMsg(snap)}, nil
}

func (s *Server) handleList(payload wire.RawMessage) (any, *wire.Error) {
	var req wire.ListRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, wire.InvalidArgument("decode ListRequest: %s", err)
	}
	snaps := s.registry.List(req.Project, req.State)
	resp := wire.ListResponse{Records: make([]wire.ProcessRecordMsg, len(snaps))}
	for i, snap := range snaps {
		resp.Records[i] = snapshotToMsg(snap)
	}
	return resp, nil
}

func (s *Server) handleClean(payload wire.RawMessage) (any, *wire.Error) {
	var req wire.CleanRequest
	if err := wire.Unmarshal(payload, &req); err != nil {
		return nil, wire.InvalidArgument("decode CleanRequest: %s", err)
	}
	stopped, removed, err := s.registry.Clean(req.Project, req.All, req.Force)
	if err != nil {
		return nil, asWireErr(err)
	}
	return wire.CleanResponse{StoppedNames: stopped, DeletedPaths: removed}, nil
}

func (s *Server) handleDaemonStatus() (any, *wire.Error) {
	info := s.registry.DaemonStatus()
	return wire.DaemonStatusResponse{
		Version:          info.Version,
		PID:              info.PID,
		StartTimeMillis:  info.StartTime.UnixMilli(),
		UptimeSeconds:    int64(info.Uptime.Seconds()),
		StateRoot:        s.stateRoot,
		NonTerminalCount: info.NonTerminalCount,
	}, nil
}
