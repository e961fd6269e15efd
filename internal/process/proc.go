// Package process spawns and terminates a single OS child process as a
// process group, capturing its piped stdout/stderr. It is the generalization
// of loykin-provisr/internal/process/process.go's termination/monitoring
// pattern (graceful-signal, bounded wait, forced-kill escalation) to
// spec.md §4.1's Process Supervisor semantics; the higher-level
// (project, name) registry and state machine live in internal/supervisor.
package process

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/neptaco/mcproc/internal/common"
)

// ExitInfo describes how a process terminated.
type ExitInfo struct {
	Code   int
	Reason string
	Err    error
}

// Process wraps a single spawn of Spec, from Start through exit observation.
type Process struct {
	mu sync.Mutex

	spec      Spec
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	pid       int
	pgid      int
	startedAt time.Time
	stoppedAt time.Time
	exit      *ExitInfo
	waitDone  chan struct{}
}

// New creates a Process bound to spec; it does not spawn anything yet.
func New(spec Spec) *Process {
	return &Process{spec: spec}
}

// Start spawns the child with both output streams piped and places it in a
// new process group. env is the fully merged environment (daemon env plus
// spec.Env overrides); the caller is responsible for merging.
func (p *Process) Start(env []string) error {
	cmd := p.spec.BuildCommand()
	cmd.Dir = p.spec.WorkDir
	cmd.Env = env
	cmd.Stdin = nil
	configureSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.stdout = stdout
	p.stderr = stderr
	p.pid = cmd.Process.Pid
	p.pgid = p.pid // Setpgid(0) makes the new group's id equal the leader's pid.
	p.startedAt = procStartTime(p.pid)
	p.waitDone = make(chan struct{})
	p.mu.Unlock()
	return nil
}

// procStartTime prefers the kernel's own record of when pid started
// (getProcStartUnix, backed by /proc/[pid]/stat and SC_CLK_TCK on Linux)
// over our own clock read, since the two can disagree by however long
// cmd.Start returned before we observed it. Falls back to our own clock
// when the platform-native lookup is unavailable.
func procStartTime(pid int) time.Time {
	if secs := getProcStartUnix(pid); secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Now().UTC()
}

// StartTimeOf exposes getProcStartUnix for callers outside this package
// that need to detect pid reuse against an on-disk record, such as
// cmd/mcprocd's daemon pid file guard: a stale pid file recording pid N
// alongside N's start time can tell a resurrected, unrelated process N
// apart from the daemon that actually wrote the file.
func StartTimeOf(pid int) (time.Time, bool) {
	secs := getProcStartUnix(pid)
	if secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// Stdout and Stderr expose the piped output streams for the caller (the Log
// Hub) to read line by line. Valid only after a successful Start.
func (p *Process) Stdout() io.Reader { return p.stdout }
func (p *Process) Stderr() io.Reader { return p.stderr }

func (p *Process) PID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *Process) PGID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pgid
}

func (p *Process) StartedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startedAt
}

// Wait blocks until the child exits and records its ExitInfo. It must be
// called exactly once per Start, from a single goroutine (the exit
// observer); Stop/Kill only send signals, they do not reap.
func (p *Process) Wait() ExitInfo {
	p.mu.Lock()
	cmd := p.cmd
	done := p.waitDone
	p.mu.Unlock()

	err := cmd.Wait()
	code, reason := common.ExitReason(err)

	p.mu.Lock()
	p.stoppedAt = time.Now().UTC()
	p.exit = &ExitInfo{Code: code, Reason: reason, Err: err}
	info := *p.exit
	p.mu.Unlock()
	close(done)
	return info
}

// Done returns a channel closed once Wait has observed the child's exit.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitDone
}

// Exit returns the recorded ExitInfo, or nil if the process has not exited.
func (p *Process) Exit() *ExitInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}

// Stop sends the graceful termination signal to the process group, waits up
// to grace for exit, then escalates to an unconditional kill signal to the
// group. It returns once Wait has observed the exit (or immediately, if the
// child already exited). Grounded on
// original_source/mcproc/src/daemon/process/manager.rs's stop_process and
// loykin-provisr/internal/process/process.go's Stop, including the
// single-pid fallback when the process group can no longer be signalled.
func (p *Process) Stop(grace time.Duration) error {
	p.mu.Lock()
	pgid := p.pgid
	done := p.waitDone
	p.mu.Unlock()

	if done == nil {
		return nil // never started
	}
	select {
	case <-done:
		return nil // already exited
	default:
	}

	if err := signalGroup(pgid, syscall.SIGTERM); err != nil {
		return err
	}

	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return p.Kill()
	}
}

// Kill sends an unconditional kill signal to the process group and waits for
// exit to be observed.
func (p *Process) Kill() error {
	p.mu.Lock()
	pgid := p.pgid
	done := p.waitDone
	p.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	default:
	}
	if err := signalGroup(pgid, syscall.SIGKILL); err != nil {
		return err
	}
	<-done
	return nil
}

// signalGroup signals the whole process group, falling back to signalling
// just the leader pid if the group signal fails (e.g. the group has already
// been reaped or getpgid returned EPERM on some platforms).
func signalGroup(pgid int, sig syscall.Signal) error {
	if pgid <= 0 {
		return nil
	}
	if err := killProcess(-pgid, sig); err != nil {
		return killProcess(pgid, sig)
	}
	return nil
}
