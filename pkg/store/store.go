// Package store keeps named metric channels in memory and answers
// listing, last-value and history queries over them.
//
// Channels are created lazily on first write with the store's default
// capacity and the type of that first value. A channel's type never
// changes afterwards; writes of another type fail with
// metrics.ErrTypeMismatch.
//
// Nothing here survives a restart.
package store

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/channel"
	"github.com/nicktill/metricring/pkg/metrics"
)

// Store maps channel names to channels.
// The map lock is held only to find or insert a channel; sample I/O happens
// under the channel's own lock.
type Store struct {
	mu              sync.RWMutex
	channels        map[string]*channel.Channel
	order           []*channel.Channel // creation order
	defaultCapacity uint32

	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for channel lifecycle events
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the timestamp source handed to every new channel
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store. defaultCapacity must be at least 1.
func New(defaultCapacity uint32, opts ...Option) (*Store, error) {
	if defaultCapacity == 0 {
		return nil, fmt.Errorf("store default capacity: %w", metrics.ErrInvalidCapacity)
	}
	s := &Store{
		channels:        make(map[string]*channel.Channel),
		defaultCapacity: defaultCapacity,
		logger:          zap.NewNop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record appends v to the named channel, creating it on first use.
func (s *Store) Record(name string, v metrics.Value) error {
	if err := metrics.CheckName(name); err != nil {
		return err
	}
	ch, err := s.getOrCreate(name, v.Type())
	if err != nil {
		return err
	}
	_, err = ch.Write(v)
	return err
}

func (s *Store) RecordInt64(name string, v int64) error {
	return s.Record(name, metrics.Int64(v))
}

func (s *Store) RecordFloat32(name string, v float32) error {
	return s.Record(name, metrics.Float32(v))
}

func (s *Store) RecordFloat64(name string, v float64) error {
	return s.Record(name, metrics.Float64(v))
}

// RecordBytes copies b into the named channel
func (s *Store) RecordBytes(name string, b []byte) error {
	return s.Record(name, metrics.Bytes(b))
}

func (s *Store) RecordString(name string, v string) error {
	return s.Record(name, metrics.String(v))
}

func (s *Store) getOrCreate(name string, typ metrics.ValueType) (*channel.Channel, error) {
	s.mu.RLock()
	ch, ok := s.channels[name]
	s.mu.RUnlock()
	if ok {
		return ch, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// another writer may have won the race
	if ch, ok := s.channels[name]; ok {
		return ch, nil
	}

	ch, err := channel.New(name, typ, s.defaultCapacity, channel.WithClock(s.now))
	if err != nil {
		return nil, err
	}
	s.channels[name] = ch
	s.order = append(s.order, ch)

	s.logger.Debug("channel created",
		zap.String("name", name),
		zap.Stringer("type", typ),
		zap.Uint32("capacity", s.defaultCapacity))
	return ch, nil
}

// Channel returns the named channel, if it exists
func (s *Store) Channel(name string) (*channel.Channel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[name]
	return ch, ok
}

// ChannelCount returns the number of channels
func (s *Store) ChannelCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// ListChannels describes every channel in creation order
func (s *Store) ListChannels() []metrics.ChannelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]metrics.ChannelInfo, 0, len(s.order))
	for _, ch := range s.order {
		infos = append(infos, ch.Info())
	}
	return infos
}

// channelsSnapshot copies the creation-order list so callers can read
// channels without holding the map lock.
func (s *Store) channelsSnapshot() []*channel.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*channel.Channel, len(s.order))
	copy(out, s.order)
	return out
}

// DefaultCapacity returns the capacity given to newly created channels
func (s *Store) DefaultCapacity() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultCapacity
}

// SetDefaultCapacity changes the capacity used for channels created from
// now on. Existing channels keep their capacity.
func (s *Store) SetDefaultCapacity(capacity uint32) error {
	if capacity == 0 {
		return fmt.Errorf("store default capacity: %w", metrics.ErrInvalidCapacity)
	}
	s.mu.Lock()
	s.defaultCapacity = capacity
	s.mu.Unlock()
	return nil
}

// Reset drops every channel. The default capacity is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	n := len(s.order)
	s.channels = make(map[string]*channel.Channel)
	s.order = nil
	s.mu.Unlock()

	s.logger.Debug("store reset", zap.Int("channels_dropped", n))
}

// Stats summarizes the store
type Stats struct {
	Channels        int    `json:"channels"`
	RetainedSamples uint64 `json:"retained_samples"`
	TotalWrites     uint64 `json:"total_writes"`
	TotalEvictions  uint64 `json:"total_evictions"`
	DefaultCapacity uint32 `json:"default_capacity"`
}

// Stats walks every channel. Counts from different channels are not read
// atomically with respect to each other.
func (s *Store) Stats() Stats {
	chans := s.channelsSnapshot()
	stats := Stats{
		Channels:        len(chans),
		DefaultCapacity: s.DefaultCapacity(),
	}
	for _, ch := range chans {
		stats.RetainedSamples += uint64(ch.Len())
		stats.TotalWrites += ch.Sequence()
		stats.TotalEvictions += ch.Evictions()
	}
	return stats
}

// Dump writes one "name: latest" line per channel in creation order.
// Channels without samples print "<empty>".
func (s *Store) Dump(w io.Writer) error {
	for _, ch := range s.channelsSnapshot() {
		latest, ok := ch.Latest()
		val := "<empty>"
		if ok {
			val = latest.Value.String()
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", ch.Name(), val); err != nil {
			return err
		}
	}
	return nil
}
