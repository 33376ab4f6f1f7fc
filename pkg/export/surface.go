package export

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/store"
	"github.com/nicktill/metricring/pkg/wire"
)

// errEmptyChannel marks a requested channel that exists but holds nothing
var errEmptyChannel = errors.New("channel holds no samples")

// Surface produces wire-encoded query results for callers that cannot
// receive typed errors. Every failure collapses to a nil Buffer and is
// logged at debug level.
type Surface struct {
	store  *store.Store
	logger *zap.Logger
}

// NewSurface wraps s. A nil logger disables logging.
func NewSurface(s *store.Store, logger *zap.Logger) *Surface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Surface{store: s, logger: logger}
}

// ListChannels encodes every channel in creation order, or returns nil when
// the store has none.
func (x *Surface) ListChannels() *Buffer {
	infos := x.store.ListChannels()
	if len(infos) == 0 {
		return nil
	}
	w := wire.NewWriter(8 + len(infos)*32)
	if err := wire.EncodeChannelList(w, infos); err != nil {
		x.logger.Debug("list channels export failed", zap.Error(err))
		return nil
	}
	return newBuffer(w.Bytes())
}

// Snapshot encodes the newest sample of each named channel in request order.
// It returns nil when names is empty, or when any channel is unknown or empty.
func (x *Surface) Snapshot(names []string) *Buffer {
	entries, err := x.snapshotEntries(names)
	if err != nil {
		x.logger.Debug("snapshot export failed", zap.Strings("names", names), zap.Error(err))
		return nil
	}
	w := wire.NewWriter(len(entries) * 48)
	if err := wire.EncodeSnapshot(w, entries); err != nil {
		x.logger.Debug("snapshot export failed", zap.Strings("names", names), zap.Error(err))
		return nil
	}
	return newBuffer(w.Bytes())
}

// snapshotEntries is Snapshot before encoding, with the typed error kept
func (x *Surface) snapshotEntries(names []string) ([]wire.Entry, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("snapshot: %w", metrics.ErrInvalidName)
	}
	reqs := make([]store.Request, len(names))
	for i, name := range names {
		reqs[i] = store.Request{Name: name, Count: 1}
	}
	vals, err := x.store.LastValues(reqs)
	if err != nil {
		return nil, err
	}

	entries := make([]wire.Entry, 0, len(vals))
	for _, v := range vals {
		if len(v.Samples) == 0 {
			return nil, fmt.Errorf("channel %q: %w", v.Name, errEmptyChannel)
		}
		entries = append(entries, wire.Entry{Type: v.Type, Sample: v.Samples[0]})
	}
	return entries, nil
}

// History encodes up to counts[i] of the most recent samples of names[i],
// oldest first. Non-positive counts read a single sample.
// It returns nil when names is empty, counts is shorter than names, or any
// channel is unknown or empty.
func (x *Surface) History(names []string, counts []int64) *Buffer {
	blocks, err := x.historyBlocks(names, counts)
	if err != nil {
		x.logger.Debug("history export failed", zap.Strings("names", names), zap.Error(err))
		return nil
	}
	size := 0
	for _, b := range blocks {
		size += 24 + len(b.Samples)*24
	}
	w := wire.NewWriter(size)
	if err := wire.EncodeHistory(w, blocks); err != nil {
		x.logger.Debug("history export failed", zap.Strings("names", names), zap.Error(err))
		return nil
	}
	return newBuffer(w.Bytes())
}

// historyBlocks is History before encoding, with the typed error kept
func (x *Surface) historyBlocks(names []string, counts []int64) ([]wire.Block, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("history: %w", metrics.ErrInvalidName)
	}
	if len(counts) < len(names) {
		return nil, fmt.Errorf("history: %d counts for %d names: %w", len(counts), len(names), metrics.ErrOutOfRange)
	}
	reqs := make([]store.Request, len(names))
	for i, name := range names {
		n := counts[i]
		if n <= 0 {
			n = 1
		}
		reqs[i] = store.Request{Name: name, Count: int(n)}
	}
	hist, err := x.store.History(reqs)
	if err != nil {
		return nil, err
	}

	blocks := make([]wire.Block, 0, len(hist))
	for _, h := range hist {
		if h.Count() == 0 {
			return nil, fmt.Errorf("channel %q: %w", h.Name, errEmptyChannel)
		}
		blocks = append(blocks, wire.Block{Type: h.Type, FirstSequence: h.FirstSequence, Samples: h.Samples})
	}
	return blocks, nil
}

// ListChannels is NewSurface(s, nil).ListChannels()
func ListChannels(s *store.Store) *Buffer {
	return NewSurface(s, nil).ListChannels()
}

// Snapshot is NewSurface(s, nil).Snapshot(names)
func Snapshot(s *store.Store, names []string) *Buffer {
	return NewSurface(s, nil).Snapshot(names)
}

// History is NewSurface(s, nil).History(names, counts)
func History(s *store.Store, names []string, counts []int64) *Buffer {
	return NewSurface(s, nil).History(names, counts)
}
