// Package wire implements the flat binary format used to hand channel
// listings, snapshots and history windows across a process or language
// boundary.
//
// Layout rules:
//   - integers, sequences and timestamps are 8-byte little-endian
//   - float32 values are 4 bytes, float64 values 8 bytes (IEEE-754, little-endian)
//   - channel names are raw bytes followed by a single NUL
//   - byte payloads are a size:i64 prefix followed by exactly size bytes
//   - type tags are the integer value of metrics.ValueType
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrProtocol is returned when a buffer does not follow the wire layout
var ErrProtocol = errors.New("wire protocol violation")

// Writer appends wire primitives to a growable buffer
type Writer struct {
	buf []byte
}

// NewWriter returns a writer with room for sizeHint bytes
func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Len returns the current write position
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Reset empties the writer, keeping its allocation
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) WriteInt64(v int64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) WriteFloat32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) WriteFloat64(v float64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteString appends s and a NUL terminator. s itself must not contain NUL.
func (w *Writer) WriteString(s string) error {
	if i := bytes.IndexByte([]byte(s), 0); i >= 0 {
		return fmt.Errorf("%w: string %q has NUL at offset %d", ErrProtocol, s, i)
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return nil
}

// WriteBytes appends a size-prefixed byte payload
func (w *Writer) WriteBytes(b []byte) {
	w.WriteInt64(int64(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader consumes wire primitives from a byte slice, never reading past its end.
type Reader struct {
	buf []byte
	off int
}

// NewReader reads from b without copying it
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Offset returns the read position
func (r *Reader) Offset() int { return r.off }

func (r *Reader) take(n int, what string) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d, %d left",
			ErrProtocol, what, n, r.off, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.take(8, "int64")
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	b, err := r.take(4, "float32")
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.take(8, "float64")
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadString reads up to and including the next NUL
func (r *Reader) ReadString() (string, error) {
	i := bytes.IndexByte(r.buf[r.off:], 0)
	if i < 0 {
		return "", fmt.Errorf("%w: unterminated string at offset %d", ErrProtocol, r.off)
	}
	s := string(r.buf[r.off : r.off+i])
	r.off += i + 1
	return s, nil
}

// ReadBytes reads a size-prefixed payload. The result aliases the reader's
// input; callers copy it if the input may change.
func (r *Reader) ReadBytes() ([]byte, error) {
	size, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	if size < 0 || size > int64(r.Remaining()) {
		return nil, fmt.Errorf("%w: byte payload size %d at offset %d, %d left",
			ErrProtocol, size, r.off-8, r.Remaining())
	}
	return r.take(int(size), "bytes")
}
