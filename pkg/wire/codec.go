package wire

import (
	"fmt"
	"math"

	"github.com/nicktill/metricring/pkg/metrics"
)

// Entry is one snapshot record: a sample tagged with its channel type
type Entry struct {
	Type   metrics.ValueType
	Sample metrics.Sample
}

// Block is one history window. Samples[i] has sequence FirstSequence+i.
type Block struct {
	Type          metrics.ValueType
	FirstSequence uint64
	Samples       []metrics.Sample
}

// minimum encoded sizes, used to reject counts the buffer cannot hold
const (
	minChannelSize = 1 + 8 + 8 // "\0", capacity, type
	timestampSize  = 8 + 8
)

func valueSize(t metrics.ValueType) int {
	switch t {
	case metrics.Float32Type:
		return 4
	default:
		// int64, float64, and the size prefix of bytes
		return 8
	}
}

func writeValue(w *Writer, v metrics.Value) error {
	switch v.Type() {
	case metrics.Int64Type:
		n, _ := v.Int64()
		w.WriteInt64(n)
	case metrics.Float32Type:
		f, _ := v.Float32()
		w.WriteFloat32(f)
	case metrics.Float64Type:
		f, _ := v.Float64()
		w.WriteFloat64(f)
	case metrics.BytesType:
		b, _ := v.Bytes()
		w.WriteBytes(b)
	default:
		return fmt.Errorf("%w: cannot encode value type %d", ErrProtocol, int64(v.Type()))
	}
	return nil
}

func readValue(r *Reader, t metrics.ValueType) (metrics.Value, error) {
	switch t {
	case metrics.Int64Type:
		n, err := r.ReadInt64()
		return metrics.Int64(n), err
	case metrics.Float32Type:
		f, err := r.ReadFloat32()
		return metrics.Float32(f), err
	case metrics.Float64Type:
		f, err := r.ReadFloat64()
		return metrics.Float64(f), err
	case metrics.BytesType:
		b, err := r.ReadBytes()
		if err != nil {
			return metrics.Value{}, err
		}
		return metrics.Bytes(b), nil
	}
	return metrics.Value{}, fmt.Errorf("%w: unknown type tag %d", ErrProtocol, int64(t))
}

func readTypeTag(r *Reader) (metrics.ValueType, error) {
	tag, err := r.ReadInt64()
	if err != nil {
		return 0, err
	}
	t := metrics.ValueType(tag)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: unknown type tag %d at offset %d", ErrProtocol, tag, r.Offset()-8)
	}
	return t, nil
}

// EncodeChannelList appends count:i64 followed by name\0, capacity:i64,
// type:i64 for each channel.
func EncodeChannelList(w *Writer, infos []metrics.ChannelInfo) error {
	w.WriteInt64(int64(len(infos)))
	for _, info := range infos {
		if err := w.WriteString(info.Name); err != nil {
			return err
		}
		w.WriteInt64(int64(info.Capacity))
		w.WriteInt64(int64(info.Type))
	}
	return nil
}

// DecodeChannelList is the inverse of EncodeChannelList
func DecodeChannelList(b []byte) ([]metrics.ChannelInfo, error) {
	r := NewReader(b)
	count, err := r.ReadInt64()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > int64(r.Remaining()/minChannelSize) {
		return nil, fmt.Errorf("%w: channel count %d with %d bytes left", ErrProtocol, count, r.Remaining())
	}

	infos := make([]metrics.ChannelInfo, 0, count)
	for i := int64(0); i < count; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		capacity, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		if capacity < 0 || capacity > math.MaxUint32 {
			return nil, fmt.Errorf("%w: channel %q capacity %d", ErrProtocol, name, capacity)
		}
		typ, err := readTypeTag(r)
		if err != nil {
			return nil, err
		}
		infos = append(infos, metrics.ChannelInfo{Name: name, Capacity: uint32(capacity), Type: typ})
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after channel list", ErrProtocol, r.Remaining())
	}
	return infos, nil
}

// EncodeSnapshot appends type:i64, value, seconds:i64, nanoseconds:i64,
// sequence:i64 for each entry. There is no count prefix.
func EncodeSnapshot(w *Writer, entries []Entry) error {
	for _, e := range entries {
		if e.Sample.Value.Type() != e.Type {
			return fmt.Errorf("%w: entry tagged %s holds %s", ErrProtocol, e.Type, e.Sample.Value.Type())
		}
		w.WriteInt64(int64(e.Type))
		if err := writeValue(w, e.Sample.Value); err != nil {
			return err
		}
		w.WriteInt64(e.Sample.Seconds)
		w.WriteInt64(e.Sample.Nanoseconds)
		w.WriteInt64(int64(e.Sample.Sequence))
	}
	return nil
}

// DecodeSnapshot reads entries until the buffer is exhausted
func DecodeSnapshot(b []byte) ([]Entry, error) {
	r := NewReader(b)
	var entries []Entry
	for r.Remaining() > 0 {
		typ, err := readTypeTag(r)
		if err != nil {
			return nil, err
		}
		s, err := readSample(r, typ)
		if err != nil {
			return nil, err
		}
		seq, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		s.Sequence = uint64(seq)
		entries = append(entries, Entry{Type: typ, Sample: s})
	}
	return entries, nil
}

// readSample reads value, seconds and nanoseconds; the sequence is left zero
func readSample(r *Reader, typ metrics.ValueType) (metrics.Sample, error) {
	v, err := readValue(r, typ)
	if err != nil {
		return metrics.Sample{}, err
	}
	sec, err := r.ReadInt64()
	if err != nil {
		return metrics.Sample{}, err
	}
	nsec, err := r.ReadInt64()
	if err != nil {
		return metrics.Sample{}, err
	}
	return metrics.Sample{Value: v, Seconds: sec, Nanoseconds: nsec}, nil
}

// EncodeHistory appends, per block, type:i64, first_sequence:i64, count:i64
// and then count entries of value, seconds:i64, nanoseconds:i64.
// Sample sequences are implied by position and are not written.
func EncodeHistory(w *Writer, blocks []Block) error {
	for _, blk := range blocks {
		w.WriteInt64(int64(blk.Type))
		w.WriteInt64(int64(blk.FirstSequence))
		w.WriteInt64(int64(len(blk.Samples)))
		for _, s := range blk.Samples {
			if s.Value.Type() != blk.Type {
				return fmt.Errorf("%w: block tagged %s holds %s", ErrProtocol, blk.Type, s.Value.Type())
			}
			if err := writeValue(w, s.Value); err != nil {
				return err
			}
			w.WriteInt64(s.Seconds)
			w.WriteInt64(s.Nanoseconds)
		}
	}
	return nil
}

// DecodeHistory reads blocks until the buffer is exhausted and restores each
// sample's sequence number from its block position.
func DecodeHistory(b []byte) ([]Block, error) {
	r := NewReader(b)
	var blocks []Block
	for r.Remaining() > 0 {
		typ, err := readTypeTag(r)
		if err != nil {
			return nil, err
		}
		first, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		count, err := r.ReadInt64()
		if err != nil {
			return nil, err
		}
		perEntry := valueSize(typ) + timestampSize
		if count < 0 || count > int64(r.Remaining()/perEntry) {
			return nil, fmt.Errorf("%w: history count %d with %d bytes left", ErrProtocol, count, r.Remaining())
		}

		blk := Block{Type: typ, FirstSequence: uint64(first), Samples: make([]metrics.Sample, 0, count)}
		for i := int64(0); i < count; i++ {
			s, err := readSample(r, typ)
			if err != nil {
				return nil, err
			}
			s.Sequence = blk.FirstSequence + uint64(i)
			blk.Samples = append(blk.Samples, s)
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}
