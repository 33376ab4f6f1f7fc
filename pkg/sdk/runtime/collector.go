// Package runtime samples Go runtime statistics into a store.
package runtime

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Recorder is the subset of *store.Store the collector writes through.
type Recorder interface {
	RecordInt64(name string, v int64) error
	RecordFloat64(name string, v float64) error
}

// Channel names written by the collector
const (
	Goroutines     = "go_goroutines"
	CPUCount       = "go_cpu_count"
	HeapBytes      = "go_memory_heap_bytes"
	StackBytes     = "go_memory_stack_bytes"
	SysBytes       = "go_memory_sys_bytes"
	GCCount        = "go_gc_count"
	GCPauseSeconds = "go_gc_pause_seconds"
)

const defaultInterval = 15 * time.Second

// Collector automatically collects Go runtime metrics.
type Collector struct {
	rec      Recorder
	interval time.Duration
	logger   *zap.Logger
}

// NewCollector creates a new runtime metrics collector. A zero interval
// means every 15 seconds.
func NewCollector(rec Recorder, interval time.Duration, logger *zap.Logger) *Collector {
	if interval == 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		rec:      rec,
		interval: interval,
		logger:   logger,
	}
}

// Start collects immediately and then every interval until ctx is done.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collectAndLog()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collectAndLog()
		}
	}
}

func (c *Collector) collectAndLog() {
	if err := c.Collect(); err != nil {
		c.logger.Warn("runtime collection incomplete", zap.Error(err))
	}
}

// Collect records one sample per runtime statistic. Every statistic is
// attempted; failures are joined.
func (c *Collector) Collect() error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	errs := []error{
		c.rec.RecordInt64(Goroutines, int64(runtime.NumGoroutine())),
		c.rec.RecordInt64(CPUCount, int64(runtime.NumCPU())),
		c.rec.RecordInt64(HeapBytes, int64(m.HeapAlloc)),
		c.rec.RecordInt64(StackBytes, int64(m.StackInuse)),
		c.rec.RecordInt64(SysBytes, int64(m.Sys)),
		c.rec.RecordInt64(GCCount, int64(m.NumGC)),
		// cumulative pause time
		c.rec.RecordFloat64(GCPauseSeconds, float64(m.PauseTotalNs)/1e9),
	}
	return errors.Join(errs...)
}
