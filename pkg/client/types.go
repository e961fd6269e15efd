package client

import (
	"time"

	"github.com/neptaco/mcproc/internal/wire"
)

// ProcessRecord is the client-facing mirror of spec.md §3's ProcessRecord,
// decoded from wire.ProcessRecordMsg. Grounded on
// loykin-provisr/pkg/client/types.go's pattern of keeping the client
// package's public types distinct from the daemon's own wire/internal
// types, so a change to the wire schema doesn't automatically break every
// caller of this package.
type ProcessRecord struct {
	ID             string
	Name           string
	Project        string
	ShellCommand   string
	Argv           []string
	Cwd            string
	Env            map[string]string
	Toolchain      string
	State          string
	PID            int
	ProcessGroupID int
	StartTime      time.Time
	LogFilePath    string
	Ports          []uint32
	Exit           *ExitInfo
	Readiness      *Readiness
	Generation     int
}

// ExitInfo mirrors wire.ExitInfoMsg.
type ExitInfo struct {
	Code       int
	Reason     string
	StderrTail []string
}

// Readiness mirrors wire.ReadinessMsg.
type Readiness struct {
	MatchedLine   string
	ContextBefore []string
	ContextAfter  []string
	WaitTimeout   bool
}

// LogEntry mirrors wire.LogEntryMsg.
type LogEntry struct {
	LineNumber  int64
	Timestamp   time.Time
	Level       string
	Content     string
	ProcessName string
}

// LifecycleEvent mirrors wire.LifecycleEventMsg.
type LifecycleEvent struct {
	Type      string
	ProcessID string
	Name      string
	Project   string
	Timestamp time.Time
	PID       *int
	ExitCode  *int
	Error     *string
}

// GrepMatch mirrors wire.GrepMatchMsg.
type GrepMatch struct {
	Entry         LogEntry
	ContextBefore []LogEntry
	ContextAfter  []LogEntry
}

// StartParams is Start's request shape (spec.md §4.1 Start). Exactly one
// of ShellCommand/Argv must be set.
type StartParams struct {
	Project        string
	Name           string
	ShellCommand   string
	Argv           []string
	Cwd            string
	Env            map[string]string
	WaitForPattern string
	WaitTimeout    time.Duration
	Toolchain      string
	ForceRestart   bool
}

// RestartParams is Restart's request shape. A nil WaitForPattern/
// WaitTimeout keeps the existing record's setting.
type RestartParams struct {
	Project        string
	Name           string
	WaitForPattern *string
	WaitTimeout    *time.Duration
}

// GetLogsParams is GetLogs's request shape (spec.md §4.2 GetLogs).
type GetLogsParams struct {
	Project       string
	Name          string
	Tail          int
	Follow        bool
	IncludeEvents bool
}

// GrepParams is Grep's request shape (spec.md §4.2 Grep). Last is a
// relative duration string ("10m", "2h", "1d"), mutually exclusive with
// Since/Until.
type GrepParams struct {
	Project       string
	Name          string
	Pattern       string
	ContextBefore int
	ContextAfter  int
	Since         time.Time
	Until         time.Time
	Last          string
	MaxMatches    int
}

// DaemonStatus mirrors wire.DaemonStatusResponse.
type DaemonStatus struct {
	Version          string
	PID              int
	StartTime        time.Time
	Uptime           time.Duration
	StateRoot        string
	NonTerminalCount int
}

// CleanResult mirrors wire.CleanResponse.
type CleanResult struct {
	StoppedNames []string
	DeletedPaths []string
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

func recordFromWire(m wire.ProcessRecordMsg) ProcessRecord {
	rec := ProcessRecord{
		ID:             m.ID,
		Name:           m.Name,
		Project:        m.Project,
		ShellCommand:   m.ShellCommand,
		Argv:           m.Argv,
		Cwd:            m.Cwd,
		Env:            m.Env,
		Toolchain:      m.Toolchain,
		State:          m.State,
		PID:            m.PID,
		ProcessGroupID: m.ProcessGroupID,
		LogFilePath:    m.LogFilePath,
		Ports:          m.Ports,
		Generation:     m.Generation,
	}
	if m.StartTimeMillis > 0 {
		rec.StartTime = time.UnixMilli(m.StartTimeMillis).UTC()
	}
	if m.Exit != nil {
		rec.Exit = &ExitInfo{Code: m.Exit.Code, Reason: m.Exit.Reason, StderrTail: m.Exit.StderrTail}
	}
	if m.Readiness != nil {
		rec.Readiness = &Readiness{
			MatchedLine:   m.Readiness.MatchedLine,
			ContextBefore: m.Readiness.ContextBefore,
			ContextAfter:  m.Readiness.ContextAfter,
			WaitTimeout:   m.Readiness.WaitTimeout,
		}
	}
	return rec
}

func logEntryFromWire(m wire.LogEntryMsg) LogEntry {
	return LogEntry{
		LineNumber:  m.LineNumber,
		Timestamp:   time.UnixMilli(m.TimestampMillis).UTC(),
		Level:       m.Level,
		Content:     m.Content,
		ProcessName: m.ProcessName,
	}
}

func lifecycleFromWire(m wire.LifecycleEventMsg) LifecycleEvent {
	return LifecycleEvent{
		Type:      m.Type,
		ProcessID: m.ProcessID,
		Name:      m.Name,
		Project:   m.Project,
		Timestamp: time.UnixMilli(m.TimestampMillis).UTC(),
		PID:       m.PID,
		ExitCode:  m.ExitCode,
		Error:     m.Error,
	}
}

func grepMatchFromWire(m wire.GrepMatchMsg) GrepMatch {
	gm := GrepMatch{Entry: logEntryFromWire(m.Entry)}
	for _, e := range m.ContextBefore {
		gm.ContextBefore = append(gm.ContextBefore, logEntryFromWire(e))
	}
	for _, e := range m.ContextAfter {
		gm.ContextAfter = append(gm.ContextAfter, logEntryFromWire(e))
	}
	return gm
}
