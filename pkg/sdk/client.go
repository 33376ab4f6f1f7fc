package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/ingest"
	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/sdk/batch"
	"github.com/nicktill/metricring/pkg/sdk/transport"
)

// ErrNotStarted is returned by Record before Start or after Stop
var ErrNotStarted = errors.New("client not started")

// ClientConfig holds configuration for the remote client
type ClientConfig struct {
	Endpoint     string        `json:"endpoint"`
	APIKey       string        `json:"api_key"`
	FlushEvery   time.Duration `json:"flush_every"`
	MaxBatchSize int           `json:"max_batch_size"`

	Logger    *zap.Logger         `json:"-"`
	Transport transport.Transport `json:"-"`
}

// Client records samples into a remote metricring daemon. Records are
// batched and posted to /v1/record; it satisfies the Recorder interfaces of
// the runtime and httpx producers.
type Client struct {
	config  ClientConfig
	batcher *batch.Batcher
	logger  *zap.Logger

	mu      sync.RWMutex
	started bool
}

// New creates a new client
func New(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" && cfg.Transport == nil {
		cfg.Endpoint = "http://localhost:8080/v1/record"
	}
	if cfg.FlushEvery == 0 {
		cfg.FlushEvery = 5 * time.Second
	}
	if cfg.FlushEvery < 0 {
		return nil, fmt.Errorf("flush interval must be positive, got %v", cfg.FlushEvery)
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	trans := cfg.Transport
	if trans == nil {
		trans = transport.NewHTTP(cfg.Endpoint, cfg.APIKey)
	}

	c := &Client{config: cfg, logger: cfg.Logger}
	c.batcher = batch.New(trans, batch.Config{
		MaxBatchSize: cfg.MaxBatchSize,
		FlushEvery:   cfg.FlushEvery,
		OnError: func(err error, dropped int) {
			c.logger.Warn("failed to send records", zap.Int("dropped", dropped), zap.Error(err))
		},
	})
	return c, nil
}

// Start starts the client and begins flushing batches
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("client already started")
	}

	if err := c.batcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start batcher: %w", err)
	}
	c.started = true
	return nil
}

// Stop stops the client and flushes remaining records
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	if err := c.batcher.Stop(); err != nil {
		return fmt.Errorf("failed to flush records: %w", err)
	}
	return nil
}

// Record queues one sample. Names are checked locally; type lock-in is
// enforced by the daemon when the batch arrives.
func (c *Client) Record(name string, v metrics.Value) error {
	if err := ingest.ValidateName(name); err != nil {
		return err
	}
	rec, err := NewRecord(name, v)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started {
		return ErrNotStarted
	}
	c.batcher.Add(rec)
	return nil
}

// RecordInt64 queues an Int64 sample
func (c *Client) RecordInt64(name string, v int64) error {
	return c.Record(name, metrics.Int64(v))
}

// RecordFloat32 queues a Float32 sample
func (c *Client) RecordFloat32(name string, v float32) error {
	return c.Record(name, metrics.Float32(v))
}

// RecordFloat64 queues a Float64 sample
func (c *Client) RecordFloat64(name string, v float64) error {
	return c.Record(name, metrics.Float64(v))
}

// RecordBytes queues a Bytes sample
func (c *Client) RecordBytes(name string, b []byte) error {
	return c.Record(name, metrics.Bytes(b))
}

// RecordString queues a Bytes sample holding s
func (c *Client) RecordString(name string, s string) error {
	return c.Record(name, metrics.String(s))
}

// Pending returns the number of queued records
func (c *Client) Pending() int {
	return c.batcher.Pending()
}

// NewRecord converts a value into its /v1/record form. Bytes travel as
// base64.
func NewRecord(name string, v metrics.Value) (ingest.Record, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return ingest.Record{}, err
	}
	rec := ingest.Record{Name: name, Type: v.Type(), Value: raw}
	if v.Type() == metrics.BytesType {
		rec.Encoding = "base64"
	}
	return rec, nil
}
