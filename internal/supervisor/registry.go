// Package supervisor implements spec.md §4.1's Process Supervisor: the
// registry of (project, name)-keyed process records, their state machine,
// and the operations (Start, Stop, Restart, Get, List, Clean,
// DaemonStatus) the RPC server exposes. Grounded on
// loykin-provisr/internal/manager/manager.go's registry shape, rebuilt
// around spec.md's simpler lifecycle (no auto-restart, no cron, no
// resource-limit groups).
package supervisor

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/neptaco/mcproc/internal/common"
	"github.com/neptaco/mcproc/internal/env"
	"github.com/neptaco/mcproc/internal/loghub"
	"github.com/neptaco/mcproc/internal/metrics"
	"github.com/neptaco/mcproc/internal/process"
	"github.com/neptaco/mcproc/internal/wire"
)

// Registry owns every Record known to the daemon for its lifetime. It has
// no persistence across daemon restarts (spec.md §1 Non-goals: "persistent
// state across daemon restarts").
type Registry struct {
	mu      sync.RWMutex
	records map[common.ProcessKey]*Record

	hub     *loghub.Hub
	env     *env.Env
	logFile func(common.ProcessKey) string

	version   string
	startedAt time.Time
}

// NewRegistry creates an empty Registry. logFile resolves a process key to
// the log file path reported in Snapshot.LogFilePath; hub is the same
// resolver's target (the two are expected to agree, since the Log Hub and
// the Supervisor are speaking about the same on-disk file).
func NewRegistry(hub *loghub.Hub, e *env.Env, logFile func(common.ProcessKey) string, version string) *Registry {
	return &Registry{
		records:   make(map[common.ProcessKey]*Record),
		hub:       hub,
		env:       e,
		logFile:   logFile,
		version:   version,
		startedAt: time.Now().UTC(),
	}
}

func (reg *Registry) recordFor(key common.ProcessKey) (*Record, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.records[key]; ok {
		return r, nil
	}
	stream, err := reg.hub.Stream(key)
	if err != nil {
		return nil, err
	}
	r := newRecord(key, stream, reg.logFile(key))
	reg.records[key] = r
	return r, nil
}

func (reg *Registry) mergeEnv(perProc map[string]string) []string {
	return reg.env.Merge(mapToEnvSlice(perProc))
}

// Start implements spec.md §4.1 Start. The returned StartStream carries
// log lines captured while waiting for readiness, terminated by exactly
// one Snapshot.
func (reg *Registry) Start(params StartParams) (*StartStream, error) {
	if err := common.ValidateProject(params.Project); err != nil {
		return nil, wire.InvalidArgument("%s", err)
	}
	if err := common.ValidateName(params.Name); err != nil {
		return nil, wire.InvalidArgument("%s", err)
	}
	key := common.NewProcessKey(params.Project, params.Name)
	r, err := reg.recordFor(key)
	if err != nil {
		return nil, wire.Internal("%s", err)
	}
	return r.doStart(params, reg.mergeEnv(params.Env))
}

// Stop implements spec.md §4.1 Stop: idempotent, returns NotFound only if
// the (project, name) key has never been started in this daemon's
// lifetime.
func (reg *Registry) Stop(params StopParams) (Snapshot, error) {
	key := common.NewProcessKey(params.Project, params.Name)
	reg.mu.RLock()
	r, ok := reg.records[key]
	reg.mu.RUnlock()
	if !ok {
		return Snapshot{}, wire.NotFound("process %q not found in project %q", params.Name, params.Project)
	}
	grace := process.DefaultStopGrace
	return r.doStop(params, grace)
}

// Restart implements spec.md §4.1 Restart (Stop then Start, same
// command_spec).
func (reg *Registry) Restart(params RestartParams) (Snapshot, error) {
	key := common.NewProcessKey(params.Project, params.Name)
	reg.mu.RLock()
	r, ok := reg.records[key]
	reg.mu.RUnlock()
	if !ok {
		return Snapshot{}, wire.NotFound("process %q not found in project %q", params.Name, params.Project)
	}
	return r.doRestart(params, reg.mergeEnv)
}

// Get implements spec.md §4.1 Get.
func (reg *Registry) Get(project, name string) (Snapshot, error) {
	key := common.NewProcessKey(project, name)
	reg.mu.RLock()
	r, ok := reg.records[key]
	reg.mu.RUnlock()
	if !ok {
		return Snapshot{}, wire.NotFound("process %q not found in project %q", name, project)
	}
	return r.Snapshot(), nil
}

// List implements spec.md §4.1 List, optionally filtered by project and/or
// state (both empty strings mean "no filter").
func (reg *Registry) List(project, state string) []Snapshot {
	reg.mu.RLock()
	records := make([]*Record, 0, len(reg.records))
	for _, r := range reg.records {
		records = append(records, r)
	}
	reg.mu.RUnlock()

	out := make([]Snapshot, 0, len(records))
	for _, r := range records {
		s := r.Snapshot()
		if project != "" && s.Key.Project != project {
			continue
		}
		if state != "" && s.State.String() != state {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Project != out[j].Key.Project {
			return out[i].Key.Project < out[j].Key.Project
		}
		return out[i].Key.Name < out[j].Key.Name
	})
	return out
}

// Clean implements spec.md §4.1 Clean: stops every non-terminal record in
// scope (project, or every project when project == "" and all == true),
// then forgets them and removes their on-disk log files. force selects an
// immediate kill over the graceful stop for records still running.
func (reg *Registry) Clean(project string, all, force bool) (stopped, removed []string, err error) {
	if project == "" && !all {
		return nil, nil, wire.InvalidArgument("clean requires a project or all=true")
	}

	reg.mu.RLock()
	var targets []*Record
	for key, r := range reg.records {
		if all || key.Project == project {
			targets = append(targets, r)
		}
	}
	reg.mu.RUnlock()

	for _, r := range targets {
		snap := r.Snapshot()
		if !snap.State.Terminal() {
			if _, stopErr := r.doStop(StopParams{Project: snap.Key.Project, Name: snap.Key.Name, Force: force}, process.DefaultStopGrace); stopErr != nil {
				continue
			}
		}
		reg.mu.Lock()
		delete(reg.records, snap.Key)
		reg.mu.Unlock()
		reg.hub.Forget(snap.Key)
		if snap.LogFilePath != "" {
			if rmErr := os.Remove(snap.LogFilePath); rmErr == nil {
				removed = append(removed, snap.LogFilePath)
			}
		}
		stopped = append(stopped, snap.Key.String())
	}
	return stopped, removed, nil
}

// DaemonStatusInfo implements spec.md §4.1 DaemonStatus.
type DaemonStatusInfo struct {
	Version          string
	PID              int
	StartTime        time.Time
	Uptime           time.Duration
	NonTerminalCount int
}

func (reg *Registry) DaemonStatus() DaemonStatusInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	nonTerminal := 0
	for _, r := range reg.records {
		if !r.getState().Terminal() {
			nonTerminal++
		}
	}
	metrics.SetRunningCount(nonTerminal)
	return DaemonStatusInfo{
		Version:          reg.version,
		PID:              os.Getpid(),
		StartTime:        reg.startedAt,
		Uptime:           time.Since(reg.startedAt),
		NonTerminalCount: nonTerminal,
	}
}

// Stream resolves the Log Hub stream for a key so RPC handlers can
// subscribe for GetLogs without reaching into the Hub directly.
func (reg *Registry) Stream(project, name string) (*loghub.Stream, error) {
	key := common.NewProcessKey(project, name)
	reg.mu.RLock()
	r, ok := reg.records[key]
	reg.mu.RUnlock()
	if ok {
		return r.stream, nil
	}
	return reg.hub.Stream(key)
}

// NamedStream pairs a Log Hub stream with the process name it belongs to,
// for GetLogs's project-wide fan-out (spec.md §4.2, empty name filter).
type NamedStream struct {
	Name   string
	Stream *loghub.Stream
}

// StreamsForProject resolves every record's stream in a project, sorted by
// name so the fan-out has a deterministic tail order.
func (reg *Registry) StreamsForProject(project string) []NamedStream {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	var out []NamedStream
	for key, r := range reg.records {
		if key.Project == project {
			out = append(out, NamedStream{Name: key.Name, Stream: r.stream})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LogFilePath resolves the on-disk log file a key would use, even if no
// Record for it exists yet (Grep can target a key that was never started
// in this daemon's lifetime but has a log file on disk from a prior run).
func (reg *Registry) LogFilePath(project, name string) string {
	return reg.logFile(common.NewProcessKey(project, name))
}
