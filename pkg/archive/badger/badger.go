// Package badger archives exported history windows in BadgerDB.
//
// The archive is a sink, not a second store: the dumper periodically writes
// the window of every channel here so samples evicted from memory can still
// be read back. Rewriting a window that is already archived is a no-op in
// effect since keys are derived from the channel name and sequence.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/store"
	"github.com/nicktill/metricring/pkg/wire"
)

const keySize = 16

// Archive stores samples keyed by channel hash and sequence
type Archive struct {
	db     *badger.DB
	logger *zap.Logger
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = 48 MB default)
	MaxMemoryMB int64

	Logger *zap.Logger
}

// Stats summarizes archive contents
type Stats struct {
	Samples   uint64 `json:"samples"`
	Channels  uint64 `json:"channels"`
	SizeBytes uint64 `json:"size_bytes"`
}

// New opens (or creates) an archive
func New(cfg Config) (*Archive, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		// badger refuses a directory in memory mode
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	// 16 MB memtable unless the caller asks for more; badger defaults
	// would reserve several hundred MB.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithLogger(nil).
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2). // badger's minimum; one is rejected at open
		WithValueLogMaxEntries(5000).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{db: db, logger: logger}, nil
}

// channelPrefix is the 8-byte hash shared by every key of a channel
func channelPrefix(name string) []byte {
	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, xxhash.Sum64String(name))
	return prefix
}

// makeKey creates a sortable key: [name hash (8 bytes)][sequence (8 bytes)]
func makeKey(name string, seq uint64) []byte {
	key := make([]byte, keySize)
	binary.BigEndian.PutUint64(key[0:8], xxhash.Sum64String(name))
	binary.BigEndian.PutUint64(key[8:16], seq)
	return key
}

// encodeRecord stores the channel name ahead of a one-entry snapshot so that
// hash collisions can be told apart on read.
func encodeRecord(name string, typ metrics.ValueType, s metrics.Sample) ([]byte, error) {
	w := wire.NewWriter(len(name) + 64)
	if err := w.WriteString(name); err != nil {
		return nil, err
	}
	if err := wire.EncodeSnapshot(w, []wire.Entry{{Type: typ, Sample: s}}); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeRecord(b []byte) (string, wire.Entry, error) {
	r := wire.NewReader(b)
	name, err := r.ReadString()
	if err != nil {
		return "", wire.Entry{}, err
	}
	entries, err := wire.DecodeSnapshot(b[r.Offset():])
	if err != nil {
		return "", wire.Entry{}, err
	}
	if len(entries) != 1 {
		return "", wire.Entry{}, fmt.Errorf("%w: archived record holds %d entries", wire.ErrProtocol, len(entries))
	}
	return name, entries[0], nil
}

// WriteHistory archives every sample of the given windows and returns how
// many were written.
func (a *Archive) WriteHistory(ctx context.Context, hist []store.ChannelHistory) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	type writeResult struct {
		n   int
		err error
	}
	done := make(chan writeResult, 1)

	go func() {
		// WriteBatch splits large dumps across transactions
		wb := a.db.NewWriteBatch()
		defer wb.Cancel()

		var n int
		for _, h := range hist {
			if err := ctx.Err(); err != nil {
				done <- writeResult{err: err}
				return
			}
			for _, s := range h.Samples {
				value, err := encodeRecord(h.Name, h.Type, s)
				if err != nil {
					done <- writeResult{err: fmt.Errorf("failed to encode sample of %q: %w", h.Name, err)}
					return
				}
				if err := wb.Set(makeKey(h.Name, s.Sequence), value); err != nil {
					done <- writeResult{err: fmt.Errorf("failed to write sample of %q: %w", h.Name, err)}
					return
				}
				n++
			}
		}
		if err := wb.Flush(); err != nil {
			done <- writeResult{err: fmt.Errorf("failed to flush archive batch: %w", err)}
			return
		}
		done <- writeResult{n: n}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			a.logger.Debug("archived history", zap.Int("channels", len(hist)), zap.Int("samples", res.n))
		}
		return res.n, res.err
	case <-ctx.Done():
		return 0, fmt.Errorf("archive write cancelled: %w", ctx.Err())
	}
}

// Read returns the archived samples of a channel ordered by sequence.
// A channel that was never archived yields an empty slice. A channel
// recreated with another type after a store reset can leave samples of both
// types behind; Read then fails with metrics.ErrTypeMismatch.
func (a *Archive) Read(ctx context.Context, name string) (metrics.ValueType, []metrics.Sample, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	var (
		typ     metrics.ValueType
		samples []metrics.Sample
	)
	prefix := channelPrefix(name)

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			err := it.Item().Value(func(val []byte) error {
				stored, entry, err := decodeRecord(val)
				if err != nil {
					return err
				}
				if stored != name {
					return nil
				}
				if len(samples) > 0 && entry.Type != typ {
					return fmt.Errorf("channel %q archived as both %s and %s: %w",
						name, typ, entry.Type, metrics.ErrTypeMismatch)
				}
				typ = entry.Type
				samples = append(samples, entry.Sample)
				return nil
			})
			if errors.Is(err, metrics.ErrTypeMismatch) {
				return err
			}
			if err != nil {
				return fmt.Errorf("failed to decode archived sample: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	if samples == nil {
		samples = []metrics.Sample{}
	}
	return typ, samples, nil
}

// Stats counts archived samples and distinct channels
func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	var stats Stats
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var last []byte
		for it.Rewind(); it.Valid(); it.Next() {
			stats.Samples++
			if stats.Samples%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			key := it.Item().Key()
			if len(key) != keySize {
				continue
			}
			// keys are sorted, so a new prefix means a new channel
			if last == nil || string(last) != string(key[:8]) {
				stats.Channels++
				last = append(last[:0], key[:8]...)
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	lsm, vlog := a.db.Size()
	stats.SizeBytes = uint64(lsm + vlog)
	return stats, nil
}

// RunGC runs BadgerDB's value log garbage collection. Having nothing to
// collect, or no value log at all in memory mode, is not an error.
func (a *Archive) RunGC(discardRatio float64) error {
	err := a.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close shuts down BadgerDB cleanly
func (a *Archive) Close() error {
	return a.db.Close()
}
