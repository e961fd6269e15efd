package supervisor

import (
	"time"

	"github.com/neptaco/mcproc/internal/loghub"
)

// publishEvent fans a lifecycle transition out to every GetLogs subscriber
// on r's stream that opted into include_events (spec.md §4.4). The Log Hub
// has no reference back to the Supervisor; Record reaches into its own
// Stream instead, matching spec.md §9's "Cyclic ownership" guidance (no
// back-references stored).
func (r *Record) publishEvent(typ loghub.LifecycleEventType, pid, exitCode *int, errMsg *string) {
	r.mu.RLock()
	processID := r.id
	r.mu.RUnlock()
	r.stream.PublishLifecycle(loghub.LifecycleEvent{
		Type:      typ,
		ProcessID: processID,
		Project:   r.key.Project,
		Name:      r.key.Name,
		Timestamp: time.Now().UnixMilli(),
		PID:       derefOrZero(pid),
		ExitCode:  derefOrZero(exitCode),
		Error:     derefOrEmpty(errMsg),
	})
}

func derefOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
