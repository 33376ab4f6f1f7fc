package main

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// allocations tracks buffers handed to C so a double or foreign free is
// caught instead of corrupting the heap.
type allocations struct {
	mu   sync.Mutex
	size map[uintptr]int
}

func newAllocations() *allocations {
	return &allocations{size: make(map[uintptr]int)}
}

func (a *allocations) add(p uintptr, n int) {
	a.mu.Lock()
	a.size[p] = n
	a.mu.Unlock()
}

// release forgets p and reports whether it was outstanding
func (a *allocations) release(p uintptr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.size[p]; !ok {
		return false
	}
	delete(a.size, p)
	return true
}

// sizeOf reports the length of an outstanding buffer
func (a *allocations) sizeOf(p uintptr) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n, ok := a.size[p]
	return n, ok
}

// outstanding returns the number of buffers and bytes not yet freed
func (a *allocations) outstanding() (buffers, bytes int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, n := range a.size {
		buffers++
		bytes += n
	}
	return buffers, bytes
}

// newLogger writes to stderr at METRICRING_LOG_LEVEL, or discards everything
// when the variable is unset or invalid.
func newLogger() *zap.Logger {
	raw := os.Getenv("METRICRING_LOG_LEVEL")
	if raw == "" {
		return zap.NewNop()
	}
	level, err := zapcore.ParseLevel(raw)
	if err != nil {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("libmetrics")
}
