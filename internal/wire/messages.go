package wire

// OpCode identifies which operation a RequestEnvelope carries
// (spec.md §6, "Wire schema").
type OpCode uint8

const (
	OpStart OpCode = iota + 1
	OpStop
	OpRestart
	OpGet
	OpList
	OpGetLogs
	OpGrep
	OpClean
	OpDaemonStatus
)

func (op OpCode) String() string {
	switch op {
	case OpStart:
		return "Start"
	case OpStop:
		return "Stop"
	case OpRestart:
		return "Restart"
	case OpGet:
		return "Get"
	case OpList:
		return "List"
	case OpGetLogs:
		return "GetLogs"
	case OpGrep:
		return "Grep"
	case OpClean:
		return "Clean"
	case OpDaemonStatus:
		return "DaemonStatus"
	default:
		return "Unknown"
	}
}

// RequestEnvelope wraps every request frame a client sends. Seq lets a
// client correlate responses (including stream items) with the request
// that produced them over a single shared connection.
type RequestEnvelope struct {
	Op      OpCode     `cbor:"op"`
	Seq     uint64     `cbor:"seq"`
	Payload RawMessage `cbor:"payload"`
}

// ResponseKind distinguishes a data item from a terminal end-of-stream
// marker or an error, for both unary and server-streaming operations.
type ResponseKind uint8

const (
	KindData ResponseKind = iota + 1
	KindEnd
	KindErr
)

// ResponseEnvelope wraps every response frame the daemon sends. A unary
// call produces exactly one envelope with Kind == KindData (or KindErr). A
// streaming call (Start, GetLogs) produces zero or more KindData envelopes
// followed by exactly one KindEnd (or a KindErr that terminates the
// stream early).
type ResponseEnvelope struct {
	Seq     uint64       `cbor:"seq"`
	Kind    ResponseKind `cbor:"kind"`
	Payload RawMessage   `cbor:"payload,omitempty"`
	Err     *Error       `cbor:"err,omitempty"`
}

// StartRequest is OpStart's payload (spec.md §3 ProcessRecord, §4.1 Start).
// Exactly one of ShellCommand/Argv must be set.
type StartRequest struct {
	Project           string            `cbor:"project"`
	Name              string            `cbor:"name"`
	ShellCommand      string            `cbor:"shell_command,omitempty"`
	Argv              []string          `cbor:"argv,omitempty"`
	Cwd               string            `cbor:"cwd,omitempty"`
	Env               map[string]string `cbor:"env,omitempty"`
	WaitForPattern    string            `cbor:"wait_for_pattern,omitempty"`
	WaitTimeoutMillis int64             `cbor:"wait_timeout_ms,omitempty"`
	Toolchain         string            `cbor:"toolchain,omitempty"`
	ForceRestart      bool              `cbor:"force_restart,omitempty"`
}

// StartStreamItem is one element of Start's server-streaming response: an
// alternative of a captured log line or the terminal process snapshot
// (spec.md §4.3).
type StartStreamItem struct {
	LogEntry    *LogEntryMsg     `cbor:"log_entry,omitempty"`
	ProcessInfo *ProcessRecordMsg `cbor:"process_info,omitempty"`
}

// StopRequest is OpStop's payload (spec.md §4.1 Stop).
type StopRequest struct {
	Project string `cbor:"project"`
	Name    string `cbor:"name"`
	Force   bool   `cbor:"force,omitempty"`
}

// StopResponse is OpStop's unary response.
type StopResponse struct {
	Record ProcessRecordMsg `cbor:"record"`
}

// RestartRequest is OpRestart's payload (spec.md §4.1 Restart). Restart is
// unary on the wire even though it internally performs Stop then Start.
type RestartRequest struct {
	Project           string  `cbor:"project"`
	Name              string  `cbor:"name"`
	WaitForPattern    *string `cbor:"wait_for_pattern,omitempty"`
	WaitTimeoutMillis *int64  `cbor:"wait_timeout_ms,omitempty"`
}

// RestartResponse is OpRestart's unary response.
type RestartResponse struct {
	Record ProcessRecordMsg `cbor:"record"`
}

// GetRequest is OpGet's payload.
type GetRequest struct {
	Project string `cbor:"project"`
	Name    string `cbor:"name"`
}

// GetResponse is OpGet's unary response.
type GetResponse struct {
	Record ProcessRecordMsg `cbor:"record"`
}

// ListRequest is OpList's payload. Project and State are optional filters;
// an empty State matches every state.
type ListRequest struct {
	Project string `cbor:"project,omitempty"`
	State   string `cbor:"state,omitempty"`
}

// ListResponse is OpList's unary response.
type ListResponse struct {
	Records []ProcessRecordMsg `cbor:"records"`
}

// GetLogsRequest is OpGetLogs's payload (spec.md §4.2 GetLogs). An empty
// Name fans out over every process known in Project, interleaving their
// tails and live subscriptions; GetLogsStreamItem.LogEntry.ProcessName
// disambiguates which process a line came from in that case.
type GetLogsRequest struct {
	Project       string `cbor:"project"`
	Name          string `cbor:"name,omitempty"`
	Tail          int    `cbor:"tail,omitempty"`
	Follow        bool   `cbor:"follow,omitempty"`
	IncludeEvents bool   `cbor:"include_events,omitempty"`
}

// GetLogsStreamItem is one element of GetLogs's server-streaming response:
// an alternative of a log line or a lifecycle event (spec.md §4.3).
type GetLogsStreamItem struct {
	LogEntry       *LogEntryMsg       `cbor:"log_entry,omitempty"`
	LifecycleEvent *LifecycleEventMsg `cbor:"lifecycle_event,omitempty"`
}

// GrepRequest is OpGrep's payload (spec.md §4.2 Grep). SinceMillis/
// UntilMillis are absolute unix-millis bounds; Last is a relative duration
// string with a single suffix of s/m/h/d, mutually exclusive with
// Since/Until.
type GrepRequest struct {
	Project       string `cbor:"project"`
	Name          string `cbor:"name"`
	Pattern       string `cbor:"pattern"`
	ContextBefore int    `cbor:"context_before,omitempty"`
	ContextAfter  int    `cbor:"context_after,omitempty"`
	SinceMillis   int64  `cbor:"since_ms,omitempty"`
	UntilMillis   int64  `cbor:"until_ms,omitempty"`
	Last          string `cbor:"last,omitempty"`
	MaxMatches    int    `cbor:"max_matches,omitempty"`
}

// GrepResponse is OpGrep's unary response.
type GrepResponse struct {
	Matches []GrepMatchMsg `cbor:"matches"`
}

// CleanRequest is OpClean's payload (spec.md §4.1 Clean).
type CleanRequest struct {
	Project string `cbor:"project,omitempty"`
	All     bool   `cbor:"all,omitempty"`
	Force   bool   `cbor:"force,omitempty"`
}

// CleanResponse is OpClean's unary response.
type CleanResponse struct {
	StoppedNames []string `cbor:"stopped_names"`
	DeletedPaths []string `cbor:"deleted_paths"`
}

// DaemonStatusRequest is OpDaemonStatus's (empty) payload.
type DaemonStatusRequest struct{}

// DaemonStatusResponse is OpDaemonStatus's unary response (spec.md §4.1
// DaemonStatus).
type DaemonStatusResponse struct {
	Version          string `cbor:"version"`
	PID              int    `cbor:"pid"`
	StartTimeMillis  int64  `cbor:"start_time_ms"`
	UptimeSeconds    int64  `cbor:"uptime_seconds"`
	StateRoot        string `cbor:"state_root"`
	NonTerminalCount int    `cbor:"non_terminal_count"`
}

// LogEntryMsg is the wire form of spec.md §3's LogEntry.
type LogEntryMsg struct {
	LineNumber      int64  `cbor:"line_number"`
	TimestampMillis int64  `cbor:"timestamp_ms"`
	Level           string `cbor:"level"`
	Content         string `cbor:"content"`
	ProcessName     string `cbor:"process_name,omitempty"`
}

// LifecycleEventMsg is the wire form of spec.md §3's LifecycleEvent.
type LifecycleEventMsg struct {
	Type            string `cbor:"type"`
	ProcessID       string `cbor:"process_id"`
	Name            string `cbor:"name"`
	Project         string `cbor:"project"`
	TimestampMillis int64  `cbor:"timestamp_ms"`
	PID             *int   `cbor:"pid,omitempty"`
	ExitCode        *int   `cbor:"exit_code,omitempty"`
	Error           *string `cbor:"error,omitempty"`
}

// ProcessRecordMsg is the wire form of spec.md §3's ProcessRecord.
type ProcessRecordMsg struct {
	ID             string            `cbor:"id"`
	Name           string            `cbor:"name"`
	Project        string            `cbor:"project"`
	ShellCommand   string            `cbor:"shell_command,omitempty"`
	Argv           []string          `cbor:"argv,omitempty"`
	Cwd            string            `cbor:"cwd,omitempty"`
	Env            map[string]string `cbor:"env,omitempty"`
	Toolchain      string            `cbor:"toolchain,omitempty"`
	State          string            `cbor:"state"`
	PID            int               `cbor:"pid,omitempty"`
	ProcessGroupID int               `cbor:"process_group_id,omitempty"`
	StartTimeMillis int64            `cbor:"start_time_ms,omitempty"`
	LogFilePath    string            `cbor:"log_file_path"`
	Ports          []uint32          `cbor:"ports,omitempty"`
	Exit           *ExitInfoMsg      `cbor:"exit,omitempty"`
	Readiness      *ReadinessMsg     `cbor:"readiness,omitempty"`
	Generation     int               `cbor:"generation,omitempty"`
}

// ExitInfoMsg is the wire form of spec.md §3's exit summary.
type ExitInfoMsg struct {
	Code       int      `cbor:"code"`
	Reason     string   `cbor:"reason"`
	StderrTail []string `cbor:"stderr_tail,omitempty"`
}

// ReadinessMsg is the wire form of spec.md §3's readiness summary.
type ReadinessMsg struct {
	MatchedLine   string   `cbor:"matched_line,omitempty"`
	ContextBefore []string `cbor:"context_before,omitempty"`
	ContextAfter  []string `cbor:"context_after,omitempty"`
	WaitTimeout   bool     `cbor:"wait_timeout,omitempty"`
}

// GrepMatchMsg is the wire form of one Grep match plus its context window.
type GrepMatchMsg struct {
	Entry         LogEntryMsg   `cbor:"entry"`
	ContextBefore []LogEntryMsg `cbor:"context_before,omitempty"`
	ContextAfter  []LogEntryMsg `cbor:"context_after,omitempty"`
}
