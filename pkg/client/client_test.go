package client

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/neptaco/mcproc/internal/common"
	"github.com/neptaco/mcproc/internal/env"
	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/rpcserver"
	"github.com/neptaco/mcproc/internal/supervisor"
	"github.com/neptaco/mcproc/internal/wire"
)

func newTestClient(t *testing.T) *Client {
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
	srv, err := rpcserver.NewServer(sockPath, reg, dir, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { _ = srv.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDaemonStatus(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	status, err := c.DaemonStatus(ctx)
	if err != nil {
		t.Fatalf("DaemonStatus: %v", err)
	}
	if status.Version != "test-version" {
		t.Errorf("Version = %q, want test-version", status.Version)
	}
	if status.PID == 0 {
		t.Error("PID = 0")
	}
}

func TestStopUnknownReturnsNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.Stop(context.Background(), "demo", "ghost", false)
	if err == nil {
		t.Fatal("expected error")
	}
	werr, ok := err.(*wire.Error)
	if !ok || werr.Kind != wire.KindNotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestStartThenListThenStop(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	stream, err := c.Start(ctx, StartParams{
		Project:        "demo",
		Name:           "web",
		ShellCommand:   "echo listening on 4000; sleep 0.2",
		WaitForPattern: "listening on",
		WaitTimeout:    2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var sawLine bool
	var final *ProcessRecord
	for item := range stream.Items() {
		if item.LogLine != nil {
			sawLine = true
		}
		if item.Record != nil {
			final = item.Record
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream.Err(): %v", err)
	}
	if !sawLine {
		t.Error("expected at least one log line")
	}
	if final == nil || final.State != "Running" {
		t.Fatalf("final record = %+v, want state Running", final)
	}

	records, err := c.List(ctx, "demo", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	if _, err := c.Stop(ctx, "demo", "web", true); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGetLogsWithoutFollowEndsImmediately(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	startStream, err := c.Start(ctx, StartParams{Project: "demo", Name: "batch", ShellCommand: "echo one; echo two"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	for range startStream.Items() {
	}

	logStream, err := c.GetLogs(ctx, GetLogsParams{Project: "demo", Name: "batch", Tail: 10, Follow: false})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	var n int
	for range logStream.Items() {
		n++
	}
	if err := logStream.Err(); err != nil {
		t.Fatalf("stream.Err(): %v", err)
	}
	if n == 0 {
		t.Error("expected at least one buffered log line")
	}
}

func TestConcurrentCallsOnOneClient(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	stream, err := c.Start(ctx, StartParams{Project: "demo", Name: "slow", ShellCommand: "sleep 0.5"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := c.DaemonStatus(ctx); err != nil {
		t.Fatalf("DaemonStatus while Start in flight: %v", err)
	}

	for range stream.Items() {
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream.Err(): %v", err)
	}

	if _, err := c.Stop(ctx, "demo", "slow", true); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
