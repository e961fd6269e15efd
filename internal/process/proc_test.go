package process

import (
	"bufio"
	"os"
	"strings"
	"testing"
	"time"
)

func TestProcessStartCaptureExit(t *testing.T) {
	p := New(Spec{ShellCommand: "printf 'hello\\nworld\\n'"})
	if err := p.Start(os.Environ()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	scanner := bufio.NewScanner(p.Stdout())
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	info := p.Wait()
	if info.Code != 0 {
		t.Fatalf("exit code = %d, want 0", info.Code)
	}
	if strings.Join(lines, ",") != "hello,world" {
		t.Fatalf("lines = %v", lines)
	}
}

func TestProcessStopSendsGroupSignal(t *testing.T) {
	p := New(Spec{ShellCommand: "sleep 30"})
	if err := p.Start(os.Environ()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	go p.Wait()
	start := time.Now()
	if err := p.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Stop took too long: %v", elapsed)
	}
	info := p.Exit()
	if info == nil {
		t.Fatal("expected exit info to be recorded")
	}
}

func TestProcessStopIdempotentAfterExit(t *testing.T) {
	p := New(Spec{ShellCommand: "true"})
	if err := p.Start(os.Environ()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.Wait()
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("Stop on already-exited process: %v", err)
	}
}

func TestProcessCommandNotFound(t *testing.T) {
	p := New(Spec{Argv: []string{"definitely-not-a-real-command-xyz"}})
	if err := p.Start(os.Environ()); err == nil {
		t.Fatal("expected spawn error for missing executable")
	}
}

func TestSpecValidate(t *testing.T) {
	if err := (Spec{}).Validate(); err == nil {
		t.Fatal("expected error when neither form is set")
	}
	if err := (Spec{ShellCommand: "echo hi", Argv: []string{"echo", "hi"}}).Validate(); err == nil {
		t.Fatal("expected error when both forms are set")
	}
	if err := (Spec{ShellCommand: "echo hi"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
