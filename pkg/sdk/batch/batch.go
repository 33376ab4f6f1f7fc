package batch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicktill/metricring/pkg/ingest"
	"github.com/nicktill/metricring/pkg/sdk/transport"
)

const sendTimeout = 5 * time.Second

// Config holds configuration for the batcher
type Config struct {
	MaxBatchSize int
	FlushEvery   time.Duration

	// OnError is called with every failed send (optional)
	OnError func(err error, dropped int)
}

// Batcher batches records and sends them periodically
type Batcher struct {
	config    Config
	transport transport.Transport

	records []ingest.Record
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	sends  sync.WaitGroup

	flushing atomic.Bool // only one background flush at a time
}

// New creates a new batcher
func New(transport transport.Transport, config Config) *Batcher {
	return &Batcher{
		config:    config,
		transport: transport,
		records:   make([]ingest.Record, 0, config.MaxBatchSize),
		done:      make(chan struct{}),
	}
}

// Start starts the batcher
func (b *Batcher) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	go b.flushLoop()
	return nil
}

// Add adds a record to the batch and starts a background flush when the
// batch is full and no flush is already running.
func (b *Batcher) Add(record ingest.Record) {
	b.mu.Lock()
	b.records = append(b.records, record)
	shouldFlush := len(b.records) >= b.config.MaxBatchSize
	b.mu.Unlock()

	if shouldFlush && b.flushing.CompareAndSwap(false, true) {
		go func() {
			b.flush()
			b.flushing.Store(false)
		}()
	}
}

// Pending returns the number of buffered records
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// take empties the buffer
func (b *Batcher) take() []ingest.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) == 0 {
		return nil
	}
	records := make([]ingest.Record, len(b.records))
	copy(records, b.records)
	b.records = b.records[:0]
	return records
}

// Flush synchronously sends all pending records
func (b *Batcher) Flush() error {
	records := b.take()
	if records == nil {
		return nil
	}
	return b.send(records)
}

// Stop stops the flush loop, waits for in-flight sends and flushes what
// is left. The final flush is not bound to the cancelled start context.
func (b *Batcher) Stop() error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	// a flush started by Add registers its send before clearing the flag
	for b.flushing.Load() {
		time.Sleep(time.Millisecond)
	}
	b.sends.Wait()
	return b.Flush()
}

// flushLoop periodically flushes records
func (b *Batcher) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.config.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if b.flushing.CompareAndSwap(false, true) {
				b.flush()
				b.flushing.Store(false)
			}
		}
	}
}

// flush hands the buffer to a background send
func (b *Batcher) flush() {
	records := b.take()
	if records == nil {
		return
	}
	b.sends.Add(1)
	go func() {
		defer b.sends.Done()
		b.send(records)
	}()
}

func (b *Batcher) send(records []ingest.Record) error {
	parent := context.Background()
	if b.ctx != nil {
		parent = context.WithoutCancel(b.ctx)
	}
	ctx, cancel := context.WithTimeout(parent, sendTimeout)
	defer cancel()

	err := b.transport.Send(ctx, records)
	if err != nil && b.config.OnError != nil {
		b.config.OnError(err, len(records))
	}
	return err
}
