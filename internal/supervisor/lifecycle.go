package supervisor

import (
	"regexp"
	"time"

	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/metrics"
	"github.com/neptaco/mcproc/internal/process"
	"github.com/neptaco/mcproc/internal/wire"
)

// StartStream is Start's server-streaming response: log lines captured
// during the readiness wait, terminated by exactly one final Snapshot
// (spec.md §4.3, §4.1 step 10).
type StartStream struct {
	Lines  <-chan loghub.LogEntry
	Result <-chan Snapshot
}

// doStart implements spec.md §4.1 Start. mergedEnv is the fully merged
// "K=V" environment (daemon env + params.Env), computed by the caller
// (Registry) since Record has no dependency on internal/env.
func (r *Record) doStart(params StartParams, mergedEnv []string) (*StartStream, error) {
	r.opMu.Lock()

	current := r.getState()
	if !current.Terminal() {
		if !params.ForceRestart {
			r.opMu.Unlock()
			return nil, wire.AlreadyExists("process %q already exists in project %q", params.Name, params.Project)
		}
		r.stopInternal(StopParams{Project: params.Project, Name: params.Name}, process.DefaultStopGrace)
	}

	spec, display, err := buildCommandSpec(params, mergedEnv)
	if err != nil {
		r.opMu.Unlock()
		return nil, wire.InvalidArgument("%s", err)
	}
	if verr := spec.Validate(); verr != nil {
		r.opMu.Unlock()
		return nil, wire.InvalidArgument("%s", verr)
	}
	if params.WaitForPattern != "" {
		if _, perr := regexp.Compile(params.WaitForPattern); perr != nil {
			r.opMu.Unlock()
			return nil, wire.InvalidArgument("invalid wait_for_pattern %q: %s", params.WaitForPattern, perr)
		}
	}

	r.mu.Lock()
	r.shellCommand = params.ShellCommand
	r.argv = params.Argv
	r.cwd = params.Cwd
	r.env = params.Env
	r.toolchain = params.Toolchain
	r.waitForPattern = params.WaitForPattern
	r.waitTimeout = params.WaitTimeout
	r.generation++
	generation := r.generation
	r.mu.Unlock()

	r.stream.ResetLineCounter()
	now := time.Now().UTC()
	r.stream.System(startBanner(display, params.Cwd, now, generation))

	proc := process.New(spec)
	if startErr := proc.Start(mergedEnv); startErr != nil {
		exit := &ExitSummary{Code: -1, Reason: startErr.Error()}
		r.mu.Lock()
		r.state = StateFailed
		r.exit = exit
		r.startTime = now
		r.proc = nil
		r.mu.Unlock()
		r.stream.System(exitBanner(*exit, 0))
		r.publishEvent(loghub.EventFailed, nil, &exit.Code, &exit.Reason)
		r.opMu.Unlock()
		return r.immediateStartStream(), nil
	}

	r.mu.Lock()
	prevState := r.state
	r.proc = proc
	r.state = StateStarting
	r.startTime = proc.StartedAt()
	r.exit = nil
	r.readiness = nil
	r.mu.Unlock()
	r.publishEvent(loghub.EventStarting, nil, nil, nil)
	metrics.IncStart(params.Project, params.Name)
	metrics.RecordStateTransition(params.Project, params.Name, prevState.String(), StateStarting.String())

	// Subscribe before the capture goroutines start so a readiness line
	// published between spawn and awaitReadiness's own loop is never
	// missed (spec.md §9(c) / S1: a process that emits its readiness line
	// in a single burst right after spawn must still resolve to Running).
	readySub, readyUnsub := r.stream.Subscribe(false)

	go r.stream.CaptureReader(proc.Stdout(), loghub.LevelStdout)
	go r.stream.CaptureReader(proc.Stderr(), loghub.LevelStderr)

	r.mu.Lock()
	if r.portStop != nil {
		close(r.portStop)
	}
	r.portStop = make(chan struct{})
	portStop := r.portStop
	r.mu.Unlock()
	go r.runPortSampler(portStop)

	lines := make(chan loghub.LogEntry, 64)
	resultCh := make(chan Snapshot, 1)

	r.mu.Lock()
	r.finalized = make(chan struct{})
	finalized := r.finalized
	r.startResponded = make(chan struct{})
	startResponded := r.startResponded
	r.mu.Unlock()

	go r.observeExit(proc, finalized, startResponded)

	waitStart := time.Now()
	go func() {
		outcome := awaitReadiness(r, generation, proc, params.WaitForPattern, params.WaitTimeout, lines, readySub, readyUnsub)
		close(lines)

		if outcome.resolved {
			r.publishEvent(loghub.EventStarted, intPtr(proc.PID()), nil, nil)
			metrics.RecordStateTransition(params.Project, params.Name, StateStarting.String(), StateRunning.String())
			metrics.ObserveReadinessWait(params.Project, params.Name, time.Since(waitStart).Seconds())
		} else {
			// Either the child exited before any match, or this match lost
			// the Running claim to observeExit/a concurrent Stop; either way
			// the authoritative terminal write is observeExit's.
			<-finalized
		}

		resultCh <- r.Snapshot()
		close(resultCh)
		close(startResponded)
	}()

	r.opMu.Unlock()
	return &StartStream{Lines: lines, Result: resultCh}, nil
}

// immediateStartStream builds a StartStream for a spawn that failed
// synchronously (command not found, permission denied): spec.md §4.1
// "Failure semantics" says this must be a Failed record, not an RPC error.
func (r *Record) immediateStartStream() *StartStream {
	resultCh := make(chan Snapshot, 1)
	resultCh <- r.Snapshot()
	close(resultCh)
	emptyLines := make(chan loghub.LogEntry)
	close(emptyLines)
	return &StartStream{Lines: emptyLines, Result: resultCh}
}

// observeExit is the single goroutine per spawn that reaps the child
// (process.Process.Wait must be called exactly once) and performs the
// Supervisor-level terminal transition: Stopping->Stopped if a Stop was in
// flight, otherwise Starting/Running->Failed for an unexpected exit
// (spec.md §4.1 state machine). It is the sole writer of terminal state;
// doStop waits on finalized before reading the record's final state, so
// invariant 3 ("pid cleared and a terminal event emitted before the RPC
// response returns") holds for Stop.
//
// If a readiness match already resolved this generation to Running
// (Record.resolveRunning) before the child exited, the Failed transition
// and its lifecycle event must not reach a follower before the Start RPC
// response does (spec.md §9(c)): observeExit waits for startResponded in
// that case. No other branch waits on it, so this cannot deadlock against
// the Start goroutine, which never blocks on anything observeExit owns
// once it has resolved to Running.
func (r *Record) observeExit(proc *process.Process, finalized, startResponded chan struct{}) {
	exit := proc.Wait()
	defer close(finalized)

	r.mu.Lock()
	if r.state == StateRunning {
		r.mu.Unlock()
		<-startResponded
		r.mu.Lock()
	}
	priorState := r.state
	startTime := r.startTime
	alreadyTerminal := priorState.Terminal()
	var finalState State
	if priorState == StateStopping {
		finalState = StateStopped
	} else {
		finalState = StateFailed
	}
	summary := ExitSummary{Code: exit.Code, Reason: exit.Reason, StderrTail: stderrTail(r.stream)}
	if !alreadyTerminal {
		r.state = finalState
		r.exit = &summary
		r.proc = nil
	}
	r.mu.Unlock()

	if alreadyTerminal {
		return
	}

	r.stream.System(exitBanner(summary, time.Since(startTime)))
	if finalState == StateStopped {
		r.publishEvent(loghub.EventStopped, nil, &summary.Code, nil)
	} else {
		r.publishEvent(loghub.EventFailed, nil, &summary.Code, &summary.Reason)
	}
	metrics.RecordStateTransition(r.key.Project, r.key.Name, priorState.String(), finalState.String())
}

// doStop implements spec.md §4.1 Stop. Assumes r.opMu is NOT held by the
// caller; it acquires it for the duration of the operation.
func (r *Record) doStop(params StopParams, grace time.Duration) (Snapshot, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.stopInternal(params, grace)
	return r.Snapshot(), nil
}

// stopInternal assumes r.opMu is already held (doStart calls it directly
// when force-restarting a non-terminal record).
func (r *Record) stopInternal(params StopParams, grace time.Duration) {
	if r.getState().Terminal() {
		return // idempotent (spec.md §7 "Stop ... is idempotent")
	}

	r.mu.Lock()
	proc := r.proc
	r.state = StateStopping
	r.mu.Unlock()
	r.publishEvent(loghub.EventStopping, nil, nil, nil)
	metrics.IncStop(params.Project, params.Name)

	if proc == nil {
		return
	}
	if params.Force {
		_ = proc.Kill()
	} else {
		_ = proc.Stop(grace)
	}

	r.mu.RLock()
	finalized := r.finalized
	r.mu.RUnlock()
	if finalized != nil {
		<-finalized // wait for observeExit to write Stopped (spec.md §8 invariant 3)
	}
}

// doRestart implements spec.md §4.1 Restart: Stop (waiting for terminal
// state) followed by Start with the original command_spec, env, cwd,
// toolchain, and optional readiness overrides.
func (r *Record) doRestart(params RestartParams, mergedEnvFn func(map[string]string) []string) (Snapshot, error) {
	metrics.IncRestart(params.Project, params.Name)
	r.opMu.Lock()
	r.stopInternal(StopParams{Project: params.Project, Name: params.Name}, process.DefaultStopGrace)

	r.mu.RLock()
	startParams := StartParams{
		Project:        params.Project,
		Name:           params.Name,
		ShellCommand:   r.shellCommand,
		Argv:           append([]string(nil), r.argv...),
		Cwd:            r.cwd,
		Env:            r.env,
		Toolchain:      r.toolchain,
		WaitForPattern: r.waitForPattern,
		WaitTimeout:    r.waitTimeout,
		ForceRestart:   true,
	}
	r.mu.RUnlock()

	if params.WaitForPattern != nil {
		startParams.WaitForPattern = *params.WaitForPattern
	}
	if params.WaitTimeout != nil {
		startParams.WaitTimeout = *params.WaitTimeout
	}
	r.opMu.Unlock()

	mergedEnv := mergedEnvFn(startParams.Env)
	stream, err := r.doStart(startParams, mergedEnv)
	if err != nil {
		return Snapshot{}, err
	}
	for range stream.Lines {
	}
	return <-stream.Result, nil
}

func intPtr(v int) *int { return &v }
