// Package channel holds a single named, typed metric series backed by a ring.
package channel

import (
	"fmt"
	"sync"
	"time"

	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/ring"
)

// Order selects the direction of a Snapshot
type Order int

const (
	NewestFirst Order = iota
	OldestFirst
)

// Channel is a bounded series of samples sharing one value type.
// Writes take the lock exclusively; every read takes it shared.
type Channel struct {
	name string
	typ  metrics.ValueType
	now  func() time.Time

	mu        sync.RWMutex
	ring      *ring.Ring[metrics.Sample]
	next      uint64 // sequence assigned to the next write
	evictions uint64
}

// Option configures a Channel
type Option func(*Channel)

// WithClock replaces time.Now as the timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Channel) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty channel
func New(name string, typ metrics.ValueType, capacity uint32, opts ...Option) (*Channel, error) {
	if err := metrics.CheckName(name); err != nil {
		return nil, err
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("channel %q: %w: unknown type %d", name, metrics.ErrTypeMismatch, int64(typ))
	}
	r, err := ring.New[metrics.Sample](int(capacity))
	if err != nil {
		return nil, fmt.Errorf("channel %q: %w", name, err)
	}

	c := &Channel{
		name: name,
		typ:  typ,
		now:  time.Now,
		ring: r,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the channel name
func (c *Channel) Name() string { return c.name }

// Type returns the element type fixed at creation
func (c *Channel) Type() metrics.ValueType { return c.typ }

// Capacity returns the maximum number of retained samples
func (c *Channel) Capacity() uint32 { return uint32(c.ring.Cap()) }

// Info returns the channel's listing entry
func (c *Channel) Info() metrics.ChannelInfo {
	return metrics.ChannelInfo{Name: c.name, Capacity: c.Capacity(), Type: c.typ}
}

// Write stamps v with the current time and the next sequence number and
// appends it, evicting the oldest sample if the channel is full.
// A value of the wrong type is rejected without touching the channel.
func (c *Channel) Write(v metrics.Value) (metrics.Sample, error) {
	if v.Type() != c.typ {
		return metrics.Sample{}, fmt.Errorf("channel %q holds %s, got %s: %w",
			c.name, c.typ, v.Type(), metrics.ErrTypeMismatch)
	}

	c.mu.Lock()
	// stamped under the lock so time order follows sequence order
	s := metrics.NewSample(v, c.next, c.now())
	if _, evicted := c.ring.Push(s); evicted {
		c.evictions++
	}
	c.next++
	c.mu.Unlock()

	return s, nil
}

// clip bounds a requested count by what the channel holds. Callers hold c.mu.
func (c *Channel) clip(n int) int {
	if n < 0 {
		return 0
	}
	if held := c.ring.Len(); n > held {
		return held
	}
	return n
}

// Snapshot copies out up to n of the most recent samples in the given order.
func (c *Channel) Snapshot(n int, order Order) []metrics.Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tail := c.ring.Tail(c.clip(n))
	for i := range tail {
		tail[i] = tail[i].Clone()
	}
	if order == NewestFirst {
		for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
			tail[i], tail[j] = tail[j], tail[i]
		}
	}
	return tail
}

// History copies out up to n of the most recent samples oldest first, along
// with the sequence number of the first one. firstSeq is the next sequence
// to be assigned when nothing is returned.
func (c *Channel) History(n int) (firstSeq uint64, samples []metrics.Sample) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tail := c.ring.Tail(c.clip(n))
	for i := range tail {
		tail[i] = tail[i].Clone()
	}
	if len(tail) == 0 {
		return c.next, tail
	}
	return tail[0].Sequence, tail
}

// Latest returns a copy of the newest sample
func (c *Channel) Latest() (metrics.Sample, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.ring.Newest()
	if !ok {
		return metrics.Sample{}, false
	}
	return s.Clone(), true
}

// Len returns the number of retained samples
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ring.Len()
}

// Sequence returns the sequence number the next write will receive,
// which is also the total number of writes since creation or Reset.
func (c *Channel) Sequence() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.next
}

// Evictions returns how many samples were dropped to make room
func (c *Channel) Evictions() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.evictions
}

// Reset drops every sample and restarts numbering at zero
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ring.Reset()
	c.next = 0
	c.evictions = 0
}
