package main

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/neptaco/mcproc/pkg/client"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	_ = r.Close()
	return buf.String()
}

func TestPrintRecordTableEmpty(t *testing.T) {
	out := captureStdout(t, func() { printRecordTable(nil) })
	if !strings.Contains(out, "no processes") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrintRecordTable(t *testing.T) {
	records := []client.ProcessRecord{
		{Project: "demo", Name: "web", State: "Running", PID: 123, StartTime: time.Unix(0, 0).UTC()},
	}
	out := captureStdout(t, func() { printRecordTable(records) })
	if !strings.Contains(out, "demo") || !strings.Contains(out, "web") || !strings.Contains(out, "Running") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrintRecordIncludesExit(t *testing.T) {
	rec := client.ProcessRecord{
		Project: "demo", Name: "batch", State: "Failed",
		Exit: &client.ExitInfo{Code: 1, Reason: "exited", StderrTail: []string{"boom"}},
	}
	out := captureStdout(t, func() { printRecord(rec) })
	if !strings.Contains(out, "exit:") || !strings.Contains(out, "boom") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrintGrepMatchesEmpty(t *testing.T) {
	out := captureStdout(t, func() { printGrepMatches(nil) })
	if !strings.Contains(out, "no matches") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrintGrepMatchesWithContext(t *testing.T) {
	matches := []client.GrepMatch{
		{
			Entry:         client.LogEntry{LineNumber: 5, Content: "error: boom"},
			ContextBefore: []client.LogEntry{{LineNumber: 4, Content: "starting request"}},
		},
	}
	out := captureStdout(t, func() { printGrepMatches(matches) })
	if !strings.Contains(out, "error: boom") || !strings.Contains(out, "starting request") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrintCleanResultEmpty(t *testing.T) {
	out := captureStdout(t, func() { printCleanResult(client.CleanResult{}) })
	if !strings.Contains(out, "nothing to clean") {
		t.Fatalf("output = %q", out)
	}
}

func TestPrintDaemonStatus(t *testing.T) {
	out := captureStdout(t, func() {
		printDaemonStatus(client.DaemonStatus{Version: "1.2.3", PID: 42, Uptime: 90 * time.Second})
	})
	if !strings.Contains(out, "1.2.3") || !strings.Contains(out, "42") {
		t.Fatalf("output = %q", out)
	}
}
