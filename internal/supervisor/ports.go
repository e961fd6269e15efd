package supervisor

import (
	"time"

	"github.com/neptaco/mcproc/internal/portscan"
)

// portSampleInterval is how often a running record's listening ports are
// refreshed (spec.md §4.1, "Port detection... a background sampler").
const portSampleInterval = 2 * time.Second

// runPortSampler periodically refreshes r.ports until stop is closed.
// Absence of a port is never an error (spec.md §4.1): a sample that finds
// nothing simply clears the set.
func (r *Record) runPortSampler(stop <-chan struct{}) {
	ticker := time.NewTicker(portSampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.mu.RLock()
			proc := r.proc
			r.mu.RUnlock()
			if proc == nil {
				continue
			}
			ports := portscan.Detect(int32(proc.PID()))
			r.mu.Lock()
			r.ports = ports
			r.mu.Unlock()
		}
	}
}
