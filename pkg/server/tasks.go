package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/server/monitor"
	"github.com/nicktill/metricring/pkg/store"
)

// gcDiscardRatio reclaims a value log file once half of it is garbage
const gcDiscardRatio = 0.5

// HistorySink receives dumped history windows.
type HistorySink interface {
	WriteHistory(ctx context.Context, hist []store.ChannelHistory) (int, error)
}

// GarbageCollector is implemented by archives that need periodic cleanup.
type GarbageCollector interface {
	RunGC(discardRatio float64) error
}

// Dumper copies the history of every channel into a sink on a schedule.
type Dumper struct {
	sink       HistorySink
	store      *store.Store
	monitor    *monitor.DumpMonitor
	logger     *zap.Logger
	interval   time.Duration
	maxRetries int
	baseDelay  time.Duration
}

// NewDumper creates a dumper with three retries starting at a 30s delay.
func NewDumper(sink HistorySink, s *store.Store, mon *monitor.DumpMonitor, interval time.Duration, logger *zap.Logger) *Dumper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dumper{
		sink:       sink,
		store:      s,
		monitor:    mon,
		logger:     logger,
		interval:   interval,
		maxRetries: 3,
		baseDelay:  30 * time.Second,
	}
}

// DumpOnce writes the current window of every channel to the sink.
func (d *Dumper) DumpOnce(ctx context.Context) (int, error) {
	return d.sink.WriteHistory(ctx, d.store.AllHistory())
}

// dumpWithRetry retries a failed dump with exponential backoff (30s, 60s,
// 120s by default). It gives up early when ctx is done.
func (d *Dumper) dumpWithRetry(ctx context.Context) {
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			delay := d.baseDelay * time.Duration(1<<(attempt-1))
			d.logger.Info("retrying dump",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", d.maxRetries+1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		start := time.Now()
		n, err := d.DumpOnce(ctx)
		if err == nil {
			d.monitor.RecordSuccess(n)
			d.logger.Info("dump completed",
				zap.Int("samples", n),
				zap.Duration("took", time.Since(start).Round(time.Millisecond)))
			return
		}
		if ctx.Err() != nil {
			return
		}

		d.monitor.RecordFailure(err)
		d.logger.Warn("dump failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", d.maxRetries+1),
			zap.Error(err))

		if status := d.monitor.Status(); status.ConsecutiveErrors > 3 {
			d.logger.Error("dump keeps failing", zap.Int("consecutive_errors", status.ConsecutiveErrors))
		}
	}

	d.logger.Warn("dump failed after all attempts, will retry on next schedule",
		zap.Int("attempts", d.maxRetries+1))
}

// RunDumper dumps once at startup and then every interval until ctx is done.
func RunDumper(ctx context.Context, d *Dumper, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dump scheduler started", zap.Duration("interval", d.interval))
	d.dumpWithRetry(ctx)

	for {
		select {
		case <-ticker.C:
			d.dumpWithRetry(ctx)
		case <-ctx.Done():
			d.logger.Info("stopping dump scheduler")
			return
		}
	}
}

// RunArchiveGC runs value log garbage collection every interval to reclaim
// disk space from overwritten samples.
func RunArchiveGC(ctx context.Context, gc GarbageCollector, interval time.Duration, logger *zap.Logger, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("archive GC scheduler started", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := gc.RunGC(gcDiscardRatio); err != nil {
				logger.Warn("archive GC failed", zap.Error(err))
				continue
			}
			logger.Debug("archive GC completed", zap.Duration("took", time.Since(start).Round(time.Millisecond)))
		case <-ctx.Done():
			logger.Info("stopping archive GC scheduler")
			return
		}
	}
}
