package metrics

import (
	"fmt"
	"time"
)

// ValueType identifies the element type of a channel.
// The numeric value doubles as the wire type tag.
type ValueType int64

const (
	Int64Type ValueType = iota
	Float32Type
	Float64Type
	BytesType
)

var valueTypeNames = [...]string{"int64", "float32", "float64", "bytes"}

// String returns the lowercase name used in JSON payloads and logs
func (t ValueType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("ValueType(%d)", int64(t))
	}
	return valueTypeNames[t]
}

// Valid reports whether t is one of the four known types
func (t ValueType) Valid() bool {
	return t >= Int64Type && t <= BytesType
}

// ParseValueType maps a type name back to its ValueType.
// "int", "float", "double" and "string" are accepted as aliases.
func ParseValueType(s string) (ValueType, error) {
	switch s {
	case "int64", "int":
		return Int64Type, nil
	case "float32", "float":
		return Float32Type, nil
	case "float64", "double":
		return Float64Type, nil
	case "bytes", "string":
		return BytesType, nil
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (t ValueType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid value type %d", int64(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *ValueType) UnmarshalText(b []byte) error {
	parsed, err := ParseValueType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Sample is one recorded value stamped with its channel sequence number
// and the wall-clock time of the write.
type Sample struct {
	Value       Value  `json:"value"`
	Sequence    uint64 `json:"sequence"`
	Seconds     int64  `json:"seconds"`
	Nanoseconds int64  `json:"nanoseconds"`
}

// NewSample stamps v with seq and ts.
func NewSample(v Value, seq uint64, ts time.Time) Sample {
	return Sample{
		Value:       v,
		Sequence:    seq,
		Seconds:     ts.Unix(),
		Nanoseconds: int64(ts.Nanosecond()),
	}
}

// Time rebuilds the capture timestamp
func (s Sample) Time() time.Time {
	return time.Unix(s.Seconds, s.Nanoseconds)
}

// Clone returns a deep copy; the Bytes payload is not shared.
func (s Sample) Clone() Sample {
	s.Value = s.Value.Clone()
	return s
}

// ChannelInfo describes a channel as returned by listing
type ChannelInfo struct {
	Name     string    `json:"name"`
	Capacity uint32    `json:"capacity"`
	Type     ValueType `json:"type"`
}
