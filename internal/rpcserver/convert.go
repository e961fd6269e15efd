package rpcserver

import (
	"time"

	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/supervisor"
	"github.com/neptaco/mcproc/internal/wire"
)

func millisToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// snapshotToMsg converts a supervisor.Snapshot (the Process Supervisor's
// internal read-only view, spec.md §9) to the wire form of spec.md §3's
// ProcessRecord.
func snapshotToMsg(s supervisor.Snapshot) wire.ProcessRecordMsg {
	msg := wire.ProcessRecordMsg{
		ID:              s.ID,
		Name:            s.Key.Name,
		Project:         s.Key.Project,
		ShellCommand:    s.ShellCommand,
		Argv:            s.Argv,
		Cwd:             s.Cwd,
		Env:             s.Env,
		Toolchain:       s.Toolchain,
		State:           s.State.String(),
		PID:             s.PID,
		ProcessGroupID:  s.ProcessGroupID,
		LogFilePath:     s.LogFilePath,
		Ports:           s.Ports,
		Generation:      s.Generation,
	}
	if !s.StartTime.IsZero() {
		msg.StartTimeMillis = s.StartTime.UnixMilli()
	}
	if s.Exit != nil {
		msg.Exit = &wire.ExitInfoMsg{
			Code:       s.Exit.Code,
			Reason:     s.Exit.Reason,
			StderrTail: s.Exit.StderrTail,
		}
	}
	if s.Readiness != nil {
		msg.Readiness = &wire.ReadinessMsg{
			MatchedLine:   s.Readiness.MatchedLine,
			ContextBefore: s.Readiness.ContextBefore,
			ContextAfter:  s.Readiness.ContextAfter,
			WaitTimeout:   s.Readiness.WaitTimeout,
		}
	}
	return msg
}

func logEntryToMsg(e loghub.LogEntry) wire.LogEntryMsg {
	return wire.LogEntryMsg{
		LineNumber:      e.LineNumber,
		TimestampMillis: e.Timestamp.UnixMilli(),
		Level:           string(e.Level),
		Content:         e.Content,
	}
}

func lifecycleToMsg(ev loghub.LifecycleEvent) wire.LifecycleEventMsg {
	msg := wire.LifecycleEventMsg{
		Type:            string(ev.Type),
		ProcessID:       ev.ProcessID,
		Name:            ev.Name,
		Project:         ev.Project,
		TimestampMillis: ev.Timestamp,
	}
	if ev.PID != 0 {
		pid := ev.PID
		msg.PID = &pid
	}
	// Stopped/Failed always carry an exit code, including a clean 0 exit;
	// other event types never have one (spec.md §3 LifecycleEvent).
	if ev.Type == loghub.EventStopped || ev.Type == loghub.EventFailed {
		code := ev.ExitCode
		msg.ExitCode = &code
	}
	if ev.Error != "" {
		msg.Error = &ev.Error
	}
	return msg
}

func grepMatchToMsg(m loghub.GrepMatch) wire.GrepMatchMsg {
	msg := wire.GrepMatchMsg{Entry: logEntryToMsg(m.Entry)}
	for _, e := range m.ContextBefore {
		msg.ContextBefore = append(msg.ContextBefore, logEntryToMsg(e))
	}
	for _, e := range m.ContextAfter {
		msg.ContextAfter = append(msg.ContextAfter, logEntryToMsg(e))
	}
	return msg
}
