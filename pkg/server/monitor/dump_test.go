package monitor

import (
	"errors"
	"testing"
	"time"
)

func TestDumpMonitor_RecordSuccess(t *testing.T) {
	dm := NewDumpMonitor(time.Hour)
	dm.RecordSuccess(42)

	status := dm.Status()
	if !status.Healthy {
		t.Error("Status should be healthy after success")
	}
	if status.LastSamples != 42 {
		t.Errorf("LastSamples = %d, want 42", status.LastSamples)
	}
	if status.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", status.ConsecutiveErrors)
	}
	if status.LastError != "" {
		t.Errorf("LastError = %q, want empty", status.LastError)
	}
}

func TestDumpMonitor_RecordFailure(t *testing.T) {
	dm := NewDumpMonitor(time.Hour)
	dm.RecordFailure(errors.New("disk full"))

	status := dm.Status()
	if status.Healthy {
		t.Error("Status should not be healthy before any success")
	}
	if status.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", status.ConsecutiveErrors)
	}
	if status.LastError != "disk full" {
		t.Errorf("LastError = %q, want %q", status.LastError, "disk full")
	}
	if status.LastAttempt == "" {
		t.Error("LastAttempt should be set")
	}
}

func TestDumpMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*DumpMonitor)
		expected bool
	}{
		{
			name:     "never succeeded",
			setup:    func(*DumpMonitor) {},
			expected: false,
		},
		{
			name: "recent success",
			setup: func(dm *DumpMonitor) {
				dm.RecordSuccess(1)
			},
			expected: true,
		},
		{
			name: "stale success",
			setup: func(dm *DumpMonitor) {
				dm.mu.Lock()
				dm.lastSuccess = time.Now().Add(-2 * time.Hour)
				dm.mu.Unlock()
			},
			expected: false,
		},
		{
			name: "failures within tolerance",
			setup: func(dm *DumpMonitor) {
				dm.RecordSuccess(1)
				for i := 0; i < maxConsecutiveErrors; i++ {
					dm.RecordFailure(errors.New("transient"))
				}
			},
			expected: true,
		},
		{
			name: "too many consecutive errors",
			setup: func(dm *DumpMonitor) {
				dm.RecordSuccess(1)
				dm.RecordFailure(errors.New("error 1"))
				dm.RecordFailure(errors.New("error 2"))
				dm.RecordFailure(errors.New("error 3"))
				dm.RecordFailure(errors.New("error 4"))
			},
			expected: false,
		},
		{
			name: "recovered",
			setup: func(dm *DumpMonitor) {
				for i := 0; i < 5; i++ {
					dm.RecordFailure(errors.New("down"))
				}
				dm.RecordSuccess(1)
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dm := NewDumpMonitor(time.Hour)
			tt.setup(dm)
			if got := dm.IsHealthy(); got != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDumpMonitor_StaleWindow(t *testing.T) {
	now := time.Unix(1700000000, 0)
	dm := NewDumpMonitor(time.Minute)
	dm.now = func() time.Time { return now }

	dm.RecordSuccess(3)
	if !dm.IsHealthy() {
		t.Fatal("IsHealthy() = false right after success")
	}

	now = now.Add(61 * time.Second)
	status := dm.Status()
	if status.Healthy {
		t.Error("Status should be unhealthy after the stale window")
	}
	if status.TimeSinceSuccess != "1m1s" {
		t.Errorf("TimeSinceSuccess = %q, want %q", status.TimeSinceSuccess, "1m1s")
	}
}
