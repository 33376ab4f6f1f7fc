package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/metricring/pkg/metrics"
	"github.com/nicktill/metricring/pkg/store"
)

func newArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func fixedClock() func() time.Time {
	ts := time.Unix(1700000000, 0)
	return func() time.Time {
		ts = ts.Add(time.Second)
		return ts
	}
}

func TestArchive_WriteAndRead(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	s, err := store.New(5, store.WithClock(fixedClock()))
	require.NoError(t, err)
	for i := int64(0); i < 10; i++ {
		require.NoError(t, s.RecordInt64("jobs", i))
	}
	require.NoError(t, s.RecordBytes("blob", []byte{0, 1, 2}))

	n, err := a.WriteHistory(ctx, s.AllHistory())
	require.NoError(t, err)
	require.Equal(t, 6, n)

	typ, samples, err := a.Read(ctx, "jobs")
	require.NoError(t, err)
	require.Equal(t, metrics.Int64Type, typ)
	require.Len(t, samples, 5)
	for i, sample := range samples {
		require.Equal(t, uint64(5+i), sample.Sequence)
		require.True(t, sample.Value.Equal(metrics.Int64(int64(5+i))))
	}
	require.Equal(t, int64(1700000006), samples[0].Seconds)

	typ, samples, err = a.Read(ctx, "blob")
	require.NoError(t, err)
	require.Equal(t, metrics.BytesType, typ)
	require.Len(t, samples, 1)
	b, ok := samples[0].Value.Bytes()
	require.True(t, ok)
	require.Equal(t, []byte{0, 1, 2}, b)
}

func TestArchive_ReadUnknown(t *testing.T) {
	a := newArchive(t)

	_, samples, err := a.Read(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, samples)
}

func TestArchive_KeepsEvictedSamples(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	s, err := store.New(3)
	require.NoError(t, err)

	for round := 0; round < 3; round++ {
		for i := 0; i < 3; i++ {
			require.NoError(t, s.RecordFloat64("load", float64(round*3+i)))
		}
		_, err := a.WriteHistory(ctx, s.AllHistory())
		require.NoError(t, err)
	}

	// rewriting an archived window must not duplicate samples
	_, err = a.WriteHistory(ctx, s.AllHistory())
	require.NoError(t, err)

	_, samples, err := a.Read(ctx, "load")
	require.NoError(t, err)
	require.Len(t, samples, 9)
	for i, sample := range samples {
		require.Equal(t, uint64(i), sample.Sequence)
	}

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(9), stats.Samples)
	require.Equal(t, uint64(1), stats.Channels)
}

func TestArchive_Stats(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	stats, err := a.Stats(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Samples)
	require.Zero(t, stats.Channels)

	s, err := store.New(4)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, s.RecordInt64(name, 1))
		require.NoError(t, s.RecordInt64(name, 2))
	}
	_, err = a.WriteHistory(ctx, s.AllHistory())
	require.NoError(t, err)

	stats, err = a.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(6), stats.Samples)
	require.Equal(t, uint64(3), stats.Channels)
}

func TestArchive_CancelledContext(t *testing.T) {
	a := newArchive(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.WriteHistory(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)

	_, _, err = a.Read(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)

	_, err = a.Stats(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestArchive_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := store.New(4)
	require.NoError(t, err)
	require.NoError(t, s.RecordString("state", "running"))

	a, err := New(Config{Path: dir})
	require.NoError(t, err)
	_, err = a.WriteHistory(ctx, s.AllHistory())
	require.NoError(t, err)
	require.NoError(t, a.RunGC(0.5))
	require.NoError(t, a.Close())

	a, err = New(Config{Path: dir})
	require.NoError(t, err)
	defer a.Close()

	_, samples, err := a.Read(ctx, "state")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, "running", samples[0].Value.String())
}

func TestArchive_ConcurrentWrites(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	s, err := store.New(100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				assert.NoError(t, s.RecordInt64("count", int64(i)))
				_, err := a.WriteHistory(ctx, s.AllHistory())
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// every writer dumps right after recording, so nothing is evicted
	// before it reaches the archive
	_, samples, err := a.Read(ctx, "count")
	require.NoError(t, err)
	require.Len(t, samples, 200)
	for i, sample := range samples {
		require.Equal(t, uint64(i), sample.Sequence)
	}
}

func TestArchive_RunGCInMemory(t *testing.T) {
	require.NoError(t, newArchive(t).RunGC(0.5))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"in memory", Config{InMemory: true}},
		{"in memory ignores path", Config{InMemory: true, Path: t.TempDir()}},
		{"on disk", Config{Path: t.TempDir()}},
		{"on disk with memory limit", Config{Path: t.TempDir(), MaxMemoryMB: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.cfg)
			require.NoError(t, err)
			defer a.Close()

			s, err := store.New(2)
			require.NoError(t, err)
			require.NoError(t, s.RecordInt64("jobs", 1))
			n, err := a.WriteHistory(context.Background(), s.AllHistory())
			require.NoError(t, err)
			require.Equal(t, 1, n)
		})
	}
}

func TestArchive_ReadTypeChangedAfterReset(t *testing.T) {
	a := newArchive(t)
	ctx := context.Background()

	s, err := store.New(5)
	require.NoError(t, err)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, s.RecordInt64("m", i))
	}
	_, err = a.WriteHistory(ctx, s.AllHistory())
	require.NoError(t, err)

	// the recreated channel restarts at sequence 0 and only overwrites 0 and 1
	s.Reset()
	require.NoError(t, s.RecordFloat64("m", 0.5))
	require.NoError(t, s.RecordFloat64("m", 1.5))
	_, err = a.WriteHistory(ctx, s.AllHistory())
	require.NoError(t, err)

	_, samples, err := a.Read(ctx, "m")
	require.ErrorIs(t, err, metrics.ErrTypeMismatch)
	require.Nil(t, samples)

	// a full overwrite leaves one type again
	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordFloat64("m", 2.5))
	}
	_, err = a.WriteHistory(ctx, s.AllHistory())
	require.NoError(t, err)

	typ, samples, err := a.Read(ctx, "m")
	require.NoError(t, err)
	require.Equal(t, metrics.Float64Type, typ)
	require.Len(t, samples, 5)
}
