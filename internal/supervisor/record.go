package supervisor

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neptaco/mcproc/internal/common"
	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/process"
	"github.com/neptaco/mcproc/internal/toolchain"
)

// Record is the Supervisor's owned state for one (project, name) key,
// across every generation (spawn) it has gone through. All mutating
// operations (Start/Stop/Restart/Clean) serialize through opMu, giving the
// key a single mutating entry point as spec.md §9's "Concurrency
// re-architecture" note asks for; mu guards the fields read-side callers
// (Get/List, and the port sampler) observe concurrently with a mutation in
// flight. Grounded on loykin-provisr/internal/manager/managed_process.go's
// unified state-machine shape, trimmed of its auto-restart/backoff/history
// sinks: spec.md §1 Non-goals explicitly excludes "automatic restart on
// crash".
type Record struct {
	opMu sync.Mutex

	mu             sync.RWMutex
	id             string
	key            common.ProcessKey
	shellCommand   string
	argv           []string
	cwd            string
	env            map[string]string
	toolchain      string
	waitForPattern string
	waitTimeout    time.Duration
	state          State
	proc           *process.Process
	startTime      time.Time
	logFilePath    string
	ports          []uint32
	exit           *ExitSummary
	readiness      *ReadinessSummary
	generation     int

	stream *loghub.Stream

	portStop  chan struct{}
	finalized chan struct{} // closed by observeExit once the current generation's terminal state is written
	startResponded chan struct{} // closed once the Start response for the current generation has been sent
}

func newRecord(key common.ProcessKey, stream *loghub.Stream, logFilePath string) *Record {
	return &Record{
		id:          uuid.NewString(),
		key:         key,
		state:       StateStopped,
		stream:      stream,
		logFilePath: logFilePath,
	}
}

// Snapshot returns a point-in-time copy of the record (spec.md §9
// "registry exposes read-only snapshots").
func (r *Record) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Snapshot{
		ID:          r.id,
		Key:         r.key,
		ShellCommand: r.shellCommand,
		Cwd:         r.cwd,
		Toolchain:   r.toolchain,
		State:       r.state,
		StartTime:   r.startTime,
		LogFilePath: r.logFilePath,
		Generation:  r.generation,
	}
	if len(r.argv) > 0 {
		s.Argv = append([]string(nil), r.argv...)
	}
	if len(r.env) > 0 {
		s.Env = make(map[string]string, len(r.env))
		for k, v := range r.env {
			s.Env[k] = v
		}
	}
	if len(r.ports) > 0 {
		s.Ports = append([]uint32(nil), r.ports...)
	}
	if r.proc != nil {
		s.PID = r.proc.PID()
		s.ProcessGroupID = r.proc.PGID()
	}
	if r.exit != nil {
		exit := *r.exit
		s.Exit = &exit
	}
	if r.readiness != nil {
		readiness := *r.readiness
		s.Readiness = &readiness
	}
	return s
}

func (r *Record) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Record) getState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// resolveRunning atomically claims the Starting->Running transition for
// generation, racing against observeExit's terminal write and a concurrent
// Stop. It reports whether the claim succeeded; a caller whose readiness
// match loses the race (the record already moved on to Stopping or a
// terminal state) must not publish EventStarted for it.
func (r *Record) resolveRunning(generation int, readiness *ReadinessSummary) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation != generation || r.state != StateStarting {
		return false
	}
	r.state = StateRunning
	r.readiness = readiness
	return true
}

// buildCommandSpec resolves a StartParams' command_spec and optional
// toolchain into a process.Spec, per spec.md §3 "An optional toolchain tag
// wraps the command using the toolchain's documented exec form."
func buildCommandSpec(p StartParams, mergedEnv []string) (process.Spec, string, error) {
	spec := process.Spec{WorkDir: p.Cwd, Env: mergedEnv}

	shell := p.ShellCommand
	if shell == "" && len(p.Argv) > 0 {
		shell = joinArgv(p.Argv)
	}
	display := p.ShellCommand
	if display == "" {
		display = strings.Join(p.Argv, " ")
	}

	if p.Toolchain != "" {
		wrapped, disp, err := toolchain.WrapByName(p.Toolchain, shell)
		if err != nil {
			return process.Spec{}, "", err
		}
		spec.ShellCommand = wrapped
		return spec, disp, nil
	}

	if p.ShellCommand != "" {
		spec.ShellCommand = p.ShellCommand
		return spec, display, nil
	}
	spec.Argv = p.Argv
	return spec, display, nil
}

// joinArgv renders an argv slice as a single POSIX shell command line, used
// only when a toolchain wrapper needs a single command string to wrap
// (toolchains are shell shims; spec.md §3 doesn't restrict toolchain to
// shell-form records).
func joinArgv(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		parts[i] = shellQuote(a)
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"$`\\!*?[]{}()<>|&;~#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func mapToEnvSlice(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func startBanner(display, cwd string, t time.Time, generation int) string {
	var sb strings.Builder
	sb.WriteString("=== Process Started ===\n")
	fmt.Fprintf(&sb, "command: %s\n", display)
	fmt.Fprintf(&sb, "cwd: %s\n", cwd)
	fmt.Fprintf(&sb, "start_time: %s\n", common.FormatTimestamp(t))
	if generation > 1 {
		fmt.Fprintf(&sb, "generation: %d", generation)
	} else {
		return strings.TrimSuffix(sb.String(), "\n")
	}
	return sb.String()
}

func exitBanner(exit ExitSummary, duration time.Duration) string {
	var sb strings.Builder
	sb.WriteString("=== Process Exited ===\n")
	fmt.Fprintf(&sb, "exit_code: %d\n", exit.Code)
	fmt.Fprintf(&sb, "reason: %s\n", exit.Reason)
	fmt.Fprintf(&sb, "duration: %s", duration.Round(time.Millisecond))
	return sb.String()
}
