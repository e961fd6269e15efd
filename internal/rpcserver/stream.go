package rpcserver

import (
	"context"
	"sort"
	"sync"

	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/supervisor"
	"github.com/neptaco/mcproc/internal/wire"
)

// handleStart implements spec.md §4.1/§4.3 Start's server-streaming
// response: captured log lines while waiting for readiness, terminated by
// exactly one process_info snapshot.
func (s *Server) handleStart(ctx context.Context, req wire.RequestEnvelope, send sendFunc) {
	var wreq wire.StartRequest
	if err := wire.Unmarshal(req.Payload, &wreq); err != nil {
		_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindErr, Err: wire.InvalidArgument("decode StartRequest: %s", err)})
		return
	}

	params := supervisor.StartParams{
		Project:        wreq.Project,
		Name:           wreq.Name,
		ShellCommand:   wreq.ShellCommand,
		Argv:           wreq.Argv,
		Cwd:            wreq.Cwd,
		Env:            wreq.Env,
		WaitForPattern: wreq.WaitForPattern,
		Toolchain:      wreq.Toolchain,
		ForceRestart:   wreq.ForceRestart,
	}
	if wreq.WaitTimeoutMillis > 0 {
		params.WaitTimeout = millisToDuration(wreq.WaitTimeoutMillis)
	}

	stream, err := s.registry.Start(params)
	if err != nil {
		_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindErr, Err: asWireErr(err)})
		return
	}

linesLoop:
	for {
		select {
		case line, ok := <-stream.Lines:
			if !ok {
				break linesLoop
			}
			item := wire.StartStreamItem{LogEntry: wirePtr(logEntryToMsg(line))}
			if sendErr := sendStartItem(send, req.Seq, item); sendErr != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}

	snap, ok := <-stream.Result
	if ok {
		rec := snapshotToMsg(snap)
		item := wire.StartStreamItem{ProcessInfo: &rec}
		_ = sendStartItem(send, req.Seq, item)
	}
	_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindEnd})
}

func sendStartItem(send sendFunc, seq uint64, item wire.StartStreamItem) error {
	data, err := wire.Marshal(item)
	if err != nil {
		return send(wire.ResponseEnvelope{Seq: seq, Kind: wire.KindErr, Err: wire.Internal("%s", err)})
	}
	return send(wire.ResponseEnvelope{Seq: seq, Kind: wire.KindData, Payload: data})
}

// handleGetLogs implements spec.md §4.2/§4.3 GetLogs: an optional tail of
// buffered history followed, if Follow is set, by live lines (and
// lifecycle events when IncludeEvents is set) until the client disconnects
// or the daemon shuts down (ctx.Done()). An empty Name fans out over every
// process currently known in Project, interleaving their tails and live
// subscriptions; each emitted log entry is tagged with its source process
// name in that case.
func (s *Server) handleGetLogs(ctx context.Context, req wire.RequestEnvelope, send sendFunc) {
	var wreq wire.GetLogsRequest
	if err := wire.Unmarshal(req.Payload, &wreq); err != nil {
		_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindErr, Err: wire.InvalidArgument("decode GetLogsRequest: %s", err)})
		return
	}
	if wreq.Project == "" {
		_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindErr, Err: wire.InvalidArgument("get_logs requires project")})
		return
	}

	var streams []supervisor.NamedStream
	fanOut := wreq.Name == ""
	if fanOut {
		streams = s.registry.StreamsForProject(wreq.Project)
	} else {
		strm, err := s.registry.Stream(wreq.Project, wreq.Name)
		if err != nil {
			_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindErr, Err: asWireErr(err)})
			return
		}
		streams = []supervisor.NamedStream{{Name: wreq.Name, Stream: strm}}
	}

	for _, e := range mergedTail(streams, wreq.Tail, fanOut) {
		if sendErr := sendGetLogsItem(send, req.Seq, e); sendErr != nil {
			return
		}
	}

	if !wreq.Follow {
		_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindEnd})
		return
	}

	merged, stop := mergeSubscriptions(streams, wreq.IncludeEvents, fanOut)
	defer stop()

	for {
		select {
		case item, ok := <-merged:
			if !ok {
				_ = send(wire.ResponseEnvelope{Seq: req.Seq, Kind: wire.KindEnd})
				return
			}
			if sendErr := sendGetLogsItem(send, req.Seq, item); sendErr != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// mergedTail collects the last n entries from each stream's ring buffer
// (spec.md §4.2, "emit the last N entries from the ring buffer of each
// matching record"), tags them with their process name when fanning out
// across a project, and interleaves the results by timestamp.
func mergedTail(streams []supervisor.NamedStream, n int, tag bool) []wire.GetLogsStreamItem {
	var all []wire.GetLogsStreamItem
	var timestamps []int64
	for _, ns := range streams {
		for _, e := range ns.Stream.Tail(n) {
			msg := logEntryToMsg(e)
			if tag {
				msg.ProcessName = ns.Name
			}
			all = append(all, wire.GetLogsStreamItem{LogEntry: wirePtr(msg)})
			timestamps = append(timestamps, msg.TimestampMillis)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return all
}

// mergeSubscriptions fans N live stream subscriptions into one channel,
// tagging entries with their source process name when fanning out. The
// returned stop func unsubscribes from every stream and waits for the
// forwarding goroutines to exit before returning.
func mergeSubscriptions(streams []supervisor.NamedStream, includeEvents, tag bool) (<-chan wire.GetLogsStreamItem, func()) {
	merged := make(chan wire.GetLogsStreamItem)
	done := make(chan struct{})
	var wg sync.WaitGroup
	unsubscribes := make([]func(), 0, len(streams))

	for _, ns := range streams {
		sub, unsubscribe := ns.Stream.Subscribe(includeEvents)
		unsubscribes = append(unsubscribes, unsubscribe)
		name := ns.Name
		wg.Add(1)
		go func(sub *loghub.Subscriber) {
			defer wg.Done()
			for {
				select {
				case ev, ok := <-sub.C():
					if !ok {
						return
					}
					item := namedEventToStreamItem(ev, name, tag)
					select {
					case merged <- item:
					case <-done:
						return
					}
				case <-done:
					return
				}
			}
		}(sub)
	}

	stop := func() {
		close(done)
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
		wg.Wait()
	}
	return merged, stop
}

func namedEventToStreamItem(ev loghub.Event, name string, tag bool) wire.GetLogsStreamItem {
	if ev.Log != nil {
		msg := logEntryToMsg(*ev.Log)
		if tag {
			msg.ProcessName = name
		}
		return wire.GetLogsStreamItem{LogEntry: &msg}
	}
	msg := lifecycleToMsg(*ev.Lifecycle)
	return wire.GetLogsStreamItem{LifecycleEvent: &msg}
}

func sendGetLogsItem(send sendFunc, seq uint64, item wire.GetLogsStreamItem) error {
	data, err := wire.Marshal(item)
	if err != nil {
		return send(wire.ResponseEnvelope{Seq: seq, Kind: wire.KindErr, Err: wire.Internal("%s", err)})
	}
	return send(wire.ResponseEnvelope{Seq: seq, Kind: wire.KindData, Payload: data})
}

func wirePtr[T any](v T) *T { return &v }
