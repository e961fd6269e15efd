package supervisor

import (
	"regexp"
	"time"

	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/process"
)

// readinessContextLines is how many ring-buffer lines to report around a
// matched readiness line (spec.md §3's readiness.context fields are not
// sized by the spec; this mirrors Grep's default context of 3, §4.2).
const readinessContextLines = 3

// readinessOutcome is what awaitReadiness resolves to: either Running
// (optionally with a timed-out wait) or Failed if the child exited first
// (spec.md §4.1 step 9). resolved is only meaningful for a Running outcome:
// it reports whether this call actually won the Starting->Running claim
// (Record.resolveRunning), since a match can lose that race to observeExit
// or to a concurrent Stop.
type readinessOutcome struct {
	state     State
	readiness *ReadinessSummary
	exit      *ExitSummary
	resolved  bool
}

// awaitReadiness implements spec.md §4.1 step 8-9: it resolves as soon as
// a captured line matches pattern (or, when pattern is empty, as soon as
// any line is captured, or after a short grace window if the process
// produces no output at all), unless the child exits first, in which case
// it resolves to Failed. Every log line observed while waiting is
// forwarded to lines so Start's response stream can include them.
//
// A Running resolution claims the transition itself via
// Record.resolveRunning rather than waiting on observeExit, so the Start
// RPC can return while the child keeps running indefinitely (spec.md §9(c):
// the response resolves to Running first, with Failed following only as a
// subsequent lifecycle event if the child dies later). A Failed resolution
// leaves the actual state write to observeExit, since the child has
// already exited by the time this function concedes.
//
// sub must already be subscribed to r.stream *before* the child's
// stdout/stderr capture goroutines are started, so no readiness line
// captured between spawn and this call is missed: the ring buffer/file are
// not replayed to a subscriber created after the fact, so a subscription
// created here (after CaptureReader is already running) could lose a
// pattern match published in that window (e.g. S1's single-burst
// `printf`), incorrectly falling through to a readiness timeout. unsub is
// called once this function returns.
func awaitReadiness(r *Record, generation int, proc *process.Process, pattern string, timeout time.Duration, lines chan<- loghub.LogEntry, sub *loghub.Subscriber, unsub func()) readinessOutcome {
	defer unsub()
	if timeout <= 0 {
		timeout = process.DefaultWaitTimeout
	}

	var re *regexp.Regexp
	if pattern != "" {
		// doStart rejects an invalid pattern with InvalidArgument before a
		// Record ever reaches here, so Compile cannot fail at this point.
		re = regexp.MustCompile(pattern)
	} else {
		timeout = 200 * time.Millisecond // grace window when there's nothing to wait for
	}

	stream := r.stream
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-sub.C():
			if ev.Log == nil {
				continue
			}
			select {
			case lines <- *ev.Log:
			default:
			}
			if re != nil {
				if re.MatchString(ev.Log.Content) {
					before, after := contextAround(stream, ev.Log.LineNumber)
					readiness := &ReadinessSummary{
						MatchedLine:   ev.Log.Content,
						ContextBefore: before,
						ContextAfter:  after,
					}
					return readinessOutcome{state: StateRunning, readiness: readiness, resolved: r.resolveRunning(generation, readiness)}
				}
				continue
			}
			// No pattern: the first captured line is enough to call it Running.
			return readinessOutcome{state: StateRunning, resolved: r.resolveRunning(generation, nil)}

		case <-proc.Done():
			// The readiness line may be the process's last line before it
			// exits; drain whatever is already buffered before conceding
			// failure (spec.md §9, Open Question (c): a match that beats the
			// exit takes precedence over the Failed that follows it).
			if outcome, matched := drainForMatch(r, generation, sub, re, lines, stream); matched {
				return outcome
			}
			exit := proc.Exit()
			if exit == nil {
				return readinessOutcome{state: StateFailed, exit: &ExitSummary{Code: -1, Reason: "process exited"}}
			}
			return readinessOutcome{
				state: StateFailed,
				exit:  &ExitSummary{Code: exit.Code, Reason: exit.Reason, StderrTail: stderrTail(stream)},
			}

		case <-timer.C:
			if re == nil {
				return readinessOutcome{state: StateRunning, resolved: r.resolveRunning(generation, nil)}
			}
			readiness := &ReadinessSummary{WaitTimeout: true}
			return readinessOutcome{state: StateRunning, readiness: readiness, resolved: r.resolveRunning(generation, readiness)}
		}
	}
}

// drainForMatch non-blockingly drains any log events already buffered on
// sub, looking for a readiness match (or, with no pattern, any line) before
// awaitReadiness concedes the process has failed.
func drainForMatch(r *Record, generation int, sub *loghub.Subscriber, re *regexp.Regexp, lines chan<- loghub.LogEntry, stream *loghub.Stream) (readinessOutcome, bool) {
	for {
		select {
		case ev := <-sub.C():
			if ev.Log == nil {
				continue
			}
			select {
			case lines <- *ev.Log:
			default:
			}
			if re == nil {
				return readinessOutcome{state: StateRunning, resolved: r.resolveRunning(generation, nil)}, true
			}
			if re.MatchString(ev.Log.Content) {
				before, after := contextAround(stream, ev.Log.LineNumber)
				readiness := &ReadinessSummary{
					MatchedLine:   ev.Log.Content,
					ContextBefore: before,
					ContextAfter:  after,
				}
				return readinessOutcome{state: StateRunning, readiness: readiness, resolved: r.resolveRunning(generation, readiness)}, true
			}
		default:
			return readinessOutcome{}, false
		}
	}
}

// contextAround returns up to readinessContextLines lines before and after
// lineNumber from the ring buffer's current tail.
func contextAround(stream *loghub.Stream, lineNumber int64) (before, after []string) {
	tail := stream.Tail(0)
	idx := -1
	for i, e := range tail {
		if e.LineNumber == lineNumber {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}
	start := idx - readinessContextLines
	if start < 0 {
		start = 0
	}
	for _, e := range tail[start:idx] {
		before = append(before, e.Content)
	}
	end := idx + 1 + readinessContextLines
	if end > len(tail) {
		end = len(tail)
	}
	for _, e := range tail[idx+1 : end] {
		after = append(after, e.Content)
	}
	return before, after
}

// stderrTail returns up to the last 20 stderr lines from the ring buffer
// (spec.md §3, exit.stderr_tail).
func stderrTail(stream *loghub.Stream) []string {
	tail := stream.Tail(0)
	var out []string
	for i := len(tail) - 1; i >= 0 && len(out) < 20; i-- {
		if tail[i].Level == loghub.LevelStderr {
			out = append([]string{tail[i].Content}, out...)
		}
	}
	return out
}
