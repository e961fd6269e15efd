package supervisor

import (
	"time"

	"github.com/neptaco/mcproc/internal/common"
)

// StartParams describes a Start request (spec.md §3 ProcessRecord, §4.1
// Start). Exactly one of ShellCommand/Argv must be set.
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

// StopParams describes a Stop request (spec.md §4.1 Stop).
type StopParams struct {
	Project string
	Name    string
	Force   bool
}

// RestartParams describes a Restart request (spec.md §4.1 Restart).
// Overrides of zero value mean "keep the existing record's setting".
type RestartParams struct {
	Project        string
	Name           string
	WaitForPattern *string
	WaitTimeout    *time.Duration
}

// ExitSummary is populated once a record reaches Stopped or Failed
// (spec.md §3).
type ExitSummary struct {
	Code       int
	Reason     string
	StderrTail []string
}

// ReadinessSummary is populated when a Start used WaitForPattern
// (spec.md §3).
type ReadinessSummary struct {
	MatchedLine   string
	ContextBefore []string
	ContextAfter  []string
	WaitTimeout   bool
}

// Snapshot is a read-only, point-in-time view of a Record (spec.md §3
// ProcessRecord). Supervisor never hands out the live *Record to callers;
// every read-side operation (Get, List, the terminal element of Start's
// stream) returns a Snapshot instead, matching spec.md §9's "registry
// exposes read-only snapshots" guidance.
type Snapshot struct {
	ID             string
	Key            common.ProcessKey
	ShellCommand   string
	Argv           []string
	Cwd            string
	Env            map[string]string
	Toolchain      string
	State          State
	PID            int
	ProcessGroupID int
	StartTime      time.Time
	LogFilePath    string
	Ports          []uint32
	Exit           *ExitSummary
	Readiness      *ReadinessSummary
	Generation     int
}
