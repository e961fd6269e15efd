package rpcserver

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/neptaco/mcproc/internal/common"
	"github.com/neptaco/mcproc/internal/env"
	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/supervisor"
	"github.com/neptaco/mcproc/internal/wire"
)

func newTestServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	dir := t.TempDir()
	logFile := func(key common.ProcessKey) string {
		return filepath.Join(dir, key.Project, key.SanitizedName()+".log")
	}
	hub := loghub.NewHub(logFile)
	t.Cleanup(hub.Close)
	e := env.New()
	e.FromOS()
	reg := supervisor.NewRegistry(hub, e, logFile, "test-version")

	sockPath := filepath.Join(dir, "mcprocd.sock")
	srv, err := NewServer(sockPath, reg, dir, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func call(t *testing.T, conn net.Conn, seq uint64, op wire.OpCode, payload any) wire.ResponseEnvelope {
	t.Helper()
	data, err := wire.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := wire.RequestEnvelope{Op: op, Seq: seq, Payload: data}
	if err := wire.WriteMessage(conn, req); err != nil {
		t.Fatalf("write request: %v", err)
	}
	var resp wire.ResponseEnvelope
	if err := wire.ReadMessage(conn, &resp); err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp
}

func TestDaemonStatus(t *testing.T) {
	_, conn := newTestServer(t)
	resp := call(t, conn, 1, wire.OpDaemonStatus, wire.DaemonStatusRequest{})
	if resp.Kind != wire.KindData {
		t.Fatalf("kind = %v, want KindData (err=%v)", resp.Kind, resp.Err)
	}
	var status wire.DaemonStatusResponse
	if err := wire.Unmarshal(resp.Payload, &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Version != "test-version" {
		t.Errorf("Version = %q, want test-version", status.Version)
	}
	if status.PID == 0 {
		t.Error("PID = 0")
	}
}

func TestStopUnknownReturnsNotFound(t *testing.T) {
	_, conn := newTestServer(t)
	resp := call(t, conn, 1, wire.OpStop, wire.StopRequest{Project: "demo", Name: "ghost"})
	if resp.Kind != wire.KindErr {
		t.Fatalf("kind = %v, want KindErr", resp.Kind)
	}
	if resp.Err.Kind != wire.KindNotFound {
		t.Fatalf("err kind = %v, want NotFound", resp.Err.Kind)
	}
}

func TestStartStreamsLinesThenSnapshot(t *testing.T) {
	_, conn := newTestServer(t)

	req := wire.StartRequest{
		Project:           "demo",
		Name:              "web",
		ShellCommand:      "echo listening on 4000; sleep 0.2",
		WaitForPattern:    "listening on",
		WaitTimeoutMillis: 2000,
	}
	data, err := wire.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpStart, Seq: 1, Payload: data}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var sawLine bool
	var sawSnapshot wire.ProcessRecordMsg
	for {
		var resp wire.ResponseEnvelope
		if err := wire.ReadMessage(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Kind == wire.KindErr {
			t.Fatalf("unexpected error: %v", resp.Err)
		}
		if resp.Kind == wire.KindEnd {
			break
		}
		var item wire.StartStreamItem
		if err := wire.Unmarshal(resp.Payload, &item); err != nil {
			t.Fatalf("unmarshal item: %v", err)
		}
		if item.LogEntry != nil {
			sawLine = true
		}
		if item.ProcessInfo != nil {
			sawSnapshot = *item.ProcessInfo
		}
	}

	if !sawLine {
		t.Error("expected at least one log_entry item")
	}
	if sawSnapshot.State != "Running" {
		t.Errorf("final snapshot state = %q, want Running", sawSnapshot.State)
	}

	stopResp := call(t, conn, 2, wire.OpStop, wire.StopRequest{Project: "demo", Name: "web"})
	if stopResp.Kind != wire.KindData {
		t.Fatalf("stop kind = %v, want KindData (err=%v)", stopResp.Kind, stopResp.Err)
	}
}

func TestGetLogsWithoutFollowEndsImmediately(t *testing.T) {
	_, conn := newTestServer(t)

	startReq := wire.StartRequest{Project: "demo", Name: "batch", ShellCommand: "echo one; echo two"}
	data, _ := wire.Marshal(startReq)
	_ = wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpStart, Seq: 1, Payload: data})
	for {
		var resp wire.ResponseEnvelope
		if err := wire.ReadMessage(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Kind == wire.KindEnd {
			break
		}
	}

	logsReq := wire.GetLogsRequest{Project: "demo", Name: "batch", Tail: 10, Follow: false}
	logsData, _ := wire.Marshal(logsReq)
	if err := wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpGetLogs, Seq: 2, Payload: logsData}); err != nil {
		t.Fatalf("write get_logs: %v", err)
	}

	var items int
	for {
		var resp wire.ResponseEnvelope
		if err := wire.ReadMessage(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Kind == wire.KindEnd {
			break
		}
		if resp.Kind == wire.KindErr {
			t.Fatalf("unexpected error: %v", resp.Err)
		}
		items++
	}
	if items == 0 {
		t.Error("expected at least one buffered log line")
	}
}

func TestGetLogsWithEmptyNameFansOutOverProject(t *testing.T) {
	_, conn := newTestServer(t)

	var seq uint64 = 1
	for _, name := range []string{"api", "worker"} {
		startReq := wire.StartRequest{Project: "demo", Name: name, ShellCommand: "echo hello from " + name}
		data, _ := wire.Marshal(startReq)
		seq++
		_ = wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpStart, Seq: seq, Payload: data})
		for {
			var resp wire.ResponseEnvelope
			if err := wire.ReadMessage(conn, &resp); err != nil {
				t.Fatalf("read: %v", err)
			}
			if resp.Kind == wire.KindEnd {
				break
			}
		}
	}

	logsReq := wire.GetLogsRequest{Project: "demo", Tail: 10, Follow: false}
	logsData, _ := wire.Marshal(logsReq)
	seq++
	if err := wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpGetLogs, Seq: seq, Payload: logsData}); err != nil {
		t.Fatalf("write get_logs: %v", err)
	}

	seen := map[string]bool{}
	for {
		var resp wire.ResponseEnvelope
		if err := wire.ReadMessage(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Kind == wire.KindEnd {
			break
		}
		if resp.Kind == wire.KindErr {
			t.Fatalf("unexpected error: %v", resp.Err)
		}
		var item wire.GetLogsStreamItem
		if err := wire.Unmarshal(resp.Payload, &item); err != nil {
			t.Fatalf("unmarshal item: %v", err)
		}
		if item.LogEntry != nil && item.LogEntry.ProcessName != "" {
			seen[item.LogEntry.ProcessName] = true
		}
	}
	if !seen["api"] || !seen["worker"] {
		t.Fatalf("expected lines tagged with both process names, got %v", seen)
	}
}

func TestListAfterStart(t *testing.T) {
	_, conn := newTestServer(t)

	startReq := wire.StartRequest{Project: "demo", Name: "svc", ShellCommand: "sleep 0.3"}
	data, _ := wire.Marshal(startReq)
	_ = wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpStart, Seq: 1, Payload: data})
	for {
		var resp wire.ResponseEnvelope
		if err := wire.ReadMessage(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Kind == wire.KindEnd {
			break
		}
	}

	listResp := call(t, conn, 2, wire.OpList, wire.ListRequest{Project: "demo"})
	if listResp.Kind != wire.KindData {
		t.Fatalf("kind = %v, want KindData (err=%v)", listResp.Kind, listResp.Err)
	}
	var list wire.ListResponse
	if err := wire.Unmarshal(listResp.Payload, &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(list.Records))
	}

	call(t, conn, 3, wire.OpStop, wire.StopRequest{Project: "demo", Name: "svc", Force: true})
}

func TestInvalidOpReturnsInvalidArgument(t *testing.T) {
	_, conn := newTestServer(t)
	data, _ := wire.Marshal(struct{}{})
	if err := wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpCode(200), Seq: 1, Payload: data}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp wire.ResponseEnvelope
	if err := wire.ReadMessage(conn, &resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Kind != wire.KindErr || resp.Err.Kind != wire.KindInvalidArgument {
		t.Fatalf("resp = %+v, want InvalidArgument error", resp)
	}
}

func TestConcurrentRequestsOnOneConnection(t *testing.T) {
	_, conn := newTestServer(t)

	startReq := wire.StartRequest{Project: "demo", Name: "slow", ShellCommand: "sleep 0.5"}
	data, _ := wire.Marshal(startReq)
	if err := wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpStart, Seq: 1, Payload: data}); err != nil {
		t.Fatalf("write start: %v", err)
	}

	// While Start's stream is in flight (one task per active RPC call,
	// spec.md §5), a second, independent unary call on the same connection
	// must still get answered rather than waiting behind the stream.
	time.Sleep(20 * time.Millisecond)
	statusData, _ := wire.Marshal(wire.DaemonStatusRequest{})
	if err := wire.WriteMessage(conn, wire.RequestEnvelope{Op: wire.OpDaemonStatus, Seq: 2, Payload: statusData}); err != nil {
		t.Fatalf("write status: %v", err)
	}

	seenSeq := map[uint64]bool{}
	for len(seenSeq) < 2 || !seenSeq[1] {
		var resp wire.ResponseEnvelope
		if err := wire.ReadMessage(conn, &resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Seq == 2 {
			seenSeq[2] = true
		}
		if resp.Seq == 1 && resp.Kind == wire.KindEnd {
			seenSeq[1] = true
		}
	}
	if !seenSeq[2] {
		t.Error("expected the DaemonStatus call to complete independently of Start's stream")
	}

	call(t, conn, 3, wire.OpStop, wire.StopRequest{Project: "demo", Name: "slow", Force: true})
}
