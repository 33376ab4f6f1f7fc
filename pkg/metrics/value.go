package metrics

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a closed tagged variant holding exactly one of the supported
// element types. The zero Value is Int64(0).
type Value struct {
	typ ValueType
	num uint64 // int64 or IEEE-754 bits, depending on typ
	buf []byte
}

// Int64 wraps an integer sample value
func Int64(v int64) Value {
	return Value{typ: Int64Type, num: uint64(v)}
}

// Float32 wraps a single precision sample value
func Float32(v float32) Value {
	return Value{typ: Float32Type, num: uint64(math.Float32bits(v))}
}

// Float64 wraps a double precision sample value
func Float64(v float64) Value {
	return Value{typ: Float64Type, num: math.Float64bits(v)}
}

// Bytes wraps a byte payload. The slice is copied so later changes by the
// caller are not visible to the store.
func Bytes(b []byte) Value {
	owned := make([]byte, len(b))
	copy(owned, b)
	return Value{typ: BytesType, buf: owned}
}

// String wraps s as a Bytes value.
func String(s string) Value {
	return Value{typ: BytesType, buf: []byte(s)}
}

// Type returns the variant tag
func (v Value) Type() ValueType { return v.typ }

// Int64 returns the integer payload; ok is false for other types.
func (v Value) Int64() (int64, bool) {
	if v.typ != Int64Type {
		return 0, false
	}
	return int64(v.num), true
}

// Float32 returns the float32 payload; ok is false for other types.
func (v Value) Float32() (float32, bool) {
	if v.typ != Float32Type {
		return 0, false
	}
	return math.Float32frombits(uint32(v.num)), true
}

// Float64 returns the float64 payload; ok is false for other types.
func (v Value) Float64() (float64, bool) {
	if v.typ != Float64Type {
		return 0, false
	}
	return math.Float64frombits(v.num), true
}

// Bytes returns the byte payload without copying. Callers must not modify it.
func (v Value) Bytes() ([]byte, bool) {
	if v.typ != BytesType {
		return nil, false
	}
	return v.buf, true
}

// Number returns numeric payloads as float64, for gauges and CSV output.
func (v Value) Number() (float64, bool) {
	switch v.typ {
	case Int64Type:
		return float64(int64(v.num)), true
	case Float32Type:
		return float64(math.Float32frombits(uint32(v.num))), true
	case Float64Type:
		return math.Float64frombits(v.num), true
	}
	return 0, false
}

// Clone returns a deep copy of v
func (v Value) Clone() Value {
	if v.typ == BytesType && v.buf != nil {
		owned := make([]byte, len(v.buf))
		copy(owned, v.buf)
		v.buf = owned
	}
	return v
}

// Equal compares type and payload. Floats compare by bit pattern so NaN
// payloads written and read back are still equal.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	if v.typ == BytesType {
		return bytes.Equal(v.buf, o.buf)
	}
	return v.num == o.num
}

// String formats the payload for debug output
func (v Value) String() string {
	switch v.typ {
	case Int64Type:
		return strconv.FormatInt(int64(v.num), 10)
	case Float32Type:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(v.num))), 'g', -1, 32)
	case Float64Type:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case BytesType:
		return string(v.buf)
	}
	return fmt.Sprintf("Value(%d)", int64(v.typ))
}

// MarshalJSON writes numbers as JSON numbers and bytes as base64 strings.
// Non-finite floats are written as strings since JSON has no literal for them.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case Int64Type:
		return []byte(strconv.FormatInt(int64(v.num), 10)), nil
	case Float32Type, Float64Type:
		f, _ := v.Number()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return json.Marshal(v.String())
		}
		return []byte(v.String()), nil
	case BytesType:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.buf))
	}
	return nil, fmt.Errorf("marshal value: invalid type %d", int64(v.typ))
}
