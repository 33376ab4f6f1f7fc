package monitor

import (
	"sync"
	"time"
)

// maxConsecutiveErrors is how many failed dumps in a row are tolerated
const maxConsecutiveErrors = 3

// DumpMonitor tracks archive dump health and failures.
type DumpMonitor struct {
	mu                sync.RWMutex
	staleAfter        time.Duration
	now               func() time.Time
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
	lastSamples       int
}

// NewDumpMonitor creates a monitor that reports unhealthy once no dump has
// succeeded for staleAfter.
func NewDumpMonitor(staleAfter time.Duration) *DumpMonitor {
	return &DumpMonitor{staleAfter: staleAfter, now: time.Now}
}

// RecordSuccess records a successful dump of n samples.
func (dm *DumpMonitor) RecordSuccess(n int) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	now := dm.now()
	dm.lastSuccess = now
	dm.lastAttempt = now
	dm.consecutiveErrors = 0
	dm.lastError = ""
	dm.lastSamples = n
}

// RecordFailure records a failed dump.
func (dm *DumpMonitor) RecordFailure(err error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.lastAttempt = dm.now()
	dm.consecutiveErrors++
	if err != nil {
		dm.lastError = err.Error()
	}
}

// IsHealthy returns true if dumps are working properly.
// Unhealthy conditions:
//   - Never succeeded
//   - No success within the stale window
//   - More than 3 consecutive failures
func (dm *DumpMonitor) IsHealthy() bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.healthy()
}

func (dm *DumpMonitor) healthy() bool {
	if dm.lastSuccess.IsZero() {
		return false
	}
	if dm.now().Sub(dm.lastSuccess) > dm.staleAfter {
		return false
	}
	return dm.consecutiveErrors <= maxConsecutiveErrors
}

// DumpStatus is the dump section of the health response.
type DumpStatus struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	LastSamples       int    `json:"last_samples"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current dump status for health checks.
func (dm *DumpMonitor) Status() DumpStatus {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	status := DumpStatus{
		Healthy:     dm.healthy(),
		LastSamples: dm.lastSamples,
	}

	if !dm.lastSuccess.IsZero() {
		status.LastSuccess = dm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = dm.now().Sub(dm.lastSuccess).String()
	}

	if !dm.lastAttempt.IsZero() {
		status.LastAttempt = dm.lastAttempt.Format(time.RFC3339)
	}

	if dm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = dm.consecutiveErrors
		status.LastError = dm.lastError
	}

	return status
}
