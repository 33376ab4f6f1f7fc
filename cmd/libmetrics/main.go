// Command libmetrics builds the store as a C shared library:
//
//	go build -buildmode=c-shared -o libmetrics.so ./cmd/libmetrics
//
// Stores are addressed by opaque handles returned from metrics_create.
// Query functions return malloc'd buffers in the pkg/wire layout which the
// caller releases with metrics_free_buffer. Errors are not reported across
// the boundary: writes that fail are dropped and queries that fail return
// NULL. Set METRICRING_LOG_LEVEL=debug to log them to stderr.
package main

/*
#include <stdint.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"go.uber.org/zap"

	"github.com/nicktill/metricring/pkg/export"
	"github.com/nicktill/metricring/pkg/store"
)

var (
	logger = newLogger()
	live   = newAllocations()
)

func main() {}

func lookup(h C.uintptr_t) *store.Store {
	if h == 0 {
		return nil
	}
	s, ok := cgo.Handle(h).Value().(*store.Store)
	if !ok {
		return nil
	}
	return s
}

// goStrings copies a NULL-terminated array of C strings
func goStrings(names **C.char) []string {
	if names == nil {
		return nil
	}
	var out []string
	for p := names; *p != nil; p = (**C.char)(unsafe.Add(unsafe.Pointer(p), unsafe.Sizeof(*p))) {
		out = append(out, C.GoString(*p))
	}
	return out
}

// toC moves an export buffer into C memory and releases the Go copy
func toC(buf *export.Buffer) unsafe.Pointer {
	if buf == nil {
		return nil
	}
	defer buf.Free()

	n := buf.Len()
	p := C.malloc(C.size_t(n))
	if p == nil {
		logger.Error("malloc failed", zap.Int("size", n))
		return nil
	}
	C.memcpy(p, unsafe.Pointer(&buf.Bytes()[0]), C.size_t(n))
	live.add(uintptr(p), n)
	return p
}

func record(h C.uintptr_t, name *C.char, rec func(*store.Store, string) error) {
	s := lookup(h)
	if s == nil || name == nil {
		return
	}
	n := C.GoString(name)
	if err := rec(s, n); err != nil {
		logger.Debug("record dropped", zap.String("name", n), zap.Error(err))
	}
}

//export metrics_create
func metrics_create(defaultCapacity C.uint32_t) C.uintptr_t {
	s, err := store.New(uint32(defaultCapacity), store.WithLogger(logger))
	if err != nil {
		logger.Debug("create failed", zap.Error(err))
		return 0
	}
	return C.uintptr_t(cgo.NewHandle(s))
}

//export metrics_record_int
func metrics_record_int(h C.uintptr_t, name *C.char, v C.int64_t) {
	record(h, name, func(s *store.Store, n string) error { return s.RecordInt64(n, int64(v)) })
}

//export metrics_record_float
func metrics_record_float(h C.uintptr_t, name *C.char, v C.float) {
	record(h, name, func(s *store.Store, n string) error { return s.RecordFloat32(n, float32(v)) })
}

//export metrics_record_double
func metrics_record_double(h C.uintptr_t, name *C.char, v C.double) {
	record(h, name, func(s *store.Store, n string) error { return s.RecordFloat64(n, float64(v)) })
}

//export metrics_record_bytes
func metrics_record_bytes(h C.uintptr_t, name *C.char, data unsafe.Pointer, size C.uint32_t) {
	if data == nil && size > 0 {
		return
	}
	payload := C.GoBytes(data, C.int(size))
	record(h, name, func(s *store.Store, n string) error { return s.RecordBytes(n, payload) })
}

//export metrics_record_string
func metrics_record_string(h C.uintptr_t, name *C.char, v *C.char) {
	if v == nil {
		return
	}
	str := C.GoString(v)
	record(h, name, func(s *store.Store, n string) error { return s.RecordString(n, str) })
}

//export metrics_channel_count
func metrics_channel_count(h C.uintptr_t) C.uint32_t {
	s := lookup(h)
	if s == nil {
		return 0
	}
	return C.uint32_t(s.ChannelCount())
}

//export metrics_list_channels
func metrics_list_channels(h C.uintptr_t) unsafe.Pointer {
	s := lookup(h)
	if s == nil {
		return nil
	}
	return toC(export.NewSurface(s, logger).ListChannels())
}

//export metrics_snapshot
func metrics_snapshot(h C.uintptr_t, names **C.char) unsafe.Pointer {
	s := lookup(h)
	if s == nil || names == nil {
		return nil
	}
	return toC(export.NewSurface(s, logger).Snapshot(goStrings(names)))
}

//export metrics_history
func metrics_history(h C.uintptr_t, names **C.char, counts *C.int) unsafe.Pointer {
	s := lookup(h)
	if s == nil || names == nil || counts == nil {
		return nil
	}
	goNames := goStrings(names)
	if len(goNames) == 0 {
		return nil
	}
	goCounts := make([]int64, len(goNames))
	for i, c := range unsafe.Slice(counts, len(goNames)) {
		goCounts[i] = int64(c)
	}
	return toC(export.NewSurface(s, logger).History(goNames, goCounts))
}

//export metrics_free_buffer
func metrics_free_buffer(p unsafe.Pointer) {
	if p == nil {
		return
	}
	if !live.release(uintptr(p)) {
		logger.Warn("ignoring free of unknown or already freed buffer", zap.Uintptr("ptr", uintptr(p)))
		return
	}
	C.free(p)
}

//export metrics_reset
func metrics_reset(h C.uintptr_t) {
	if s := lookup(h); s != nil {
		s.Reset()
	}
}

//export metrics_destroy
func metrics_destroy(h C.uintptr_t) {
	s := lookup(h)
	if s == nil {
		return
	}
	s.Reset()
	cgo.Handle(h).Delete()

	buffers, bytes := live.outstanding()
	logger.Debug("store destroyed", zap.Int("unfreed_buffers", buffers), zap.Int("unfreed_bytes", bytes))
}
