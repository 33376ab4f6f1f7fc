package ingest

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicktill/metricring/pkg/config"
	"github.com/nicktill/metricring/pkg/metrics"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"ok", "http_requests", nil},
		{"empty", "", metrics.ErrInvalidName},
		{"max length", strings.Repeat("a", MaxChannelNameLength), nil},
		{"too long", strings.Repeat("a", MaxChannelNameLength+1), ErrChannelNameTooLong},
		{"nul", "a\x00b", ErrChannelNameNUL},
		{"unicode", "latência_µs", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.in)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name     string
		typ      metrics.ValueType
		value    string
		encoding string
		want     metrics.Value
	}{
		{"int64", metrics.Int64Type, "-42", "", metrics.Int64(-42)},
		{"int64 max", metrics.Int64Type, "9223372036854775807", "", metrics.Int64(math.MaxInt64)},
		{"float32", metrics.Float32Type, "0.5", "", metrics.Float32(0.5)},
		{"float64", metrics.Float64Type, "1e-3", "", metrics.Float64(0.001)},
		{"float64 inf", metrics.Float64Type, `"+Inf"`, "", metrics.Float64(math.Inf(1))},
		{"float32 negative inf", metrics.Float32Type, `"-Inf"`, "", metrics.Float32(float32(math.Inf(-1)))},
		{"bytes text", metrics.BytesType, `"hello"`, "", metrics.String("hello")},
		{"bytes base64", metrics.BytesType, `"AAEC/w=="`, "base64", metrics.Bytes([]byte{0, 1, 2, 255})},
		{"bytes empty", metrics.BytesType, `""`, "", metrics.Bytes([]byte{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord(Record{Name: "m", Type: tt.typ, Value: json.RawMessage(tt.value), Encoding: tt.encoding})
			require.NoError(t, err)
			require.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestParseRecord_NaN(t *testing.T) {
	got, err := ParseRecord(Record{Name: "m", Type: metrics.Float64Type, Value: json.RawMessage(`"NaN"`)})
	require.NoError(t, err)
	f, ok := got.Float64()
	require.True(t, ok)
	require.True(t, math.IsNaN(f))
}

func TestParseRecord_Errors(t *testing.T) {
	tests := []struct {
		name     string
		record   Record
		want     error
		contains string
	}{
		{"missing value", Record{Name: "m", Type: metrics.Int64Type}, ErrMissingValue, ""},
		{"null value", Record{Name: "m", Type: metrics.Int64Type, Value: json.RawMessage("null")}, ErrMissingValue, ""},
		{"bad name", Record{Name: "", Type: metrics.Int64Type, Value: json.RawMessage("1")}, metrics.ErrInvalidName, ""},
		{"float for int64", Record{Name: "m", Type: metrics.Int64Type, Value: json.RawMessage("1.5")}, metrics.ErrTypeMismatch, "int64"},
		{"text for float64", Record{Name: "m", Type: metrics.Float64Type, Value: json.RawMessage(`"fast"`)}, metrics.ErrTypeMismatch, "float64"},
		{"number for bytes", Record{Name: "m", Type: metrics.BytesType, Value: json.RawMessage("5")}, metrics.ErrTypeMismatch, "must be a string"},
		{"unknown type", Record{Name: "m", Type: metrics.ValueType(9), Value: json.RawMessage("1")}, metrics.ErrTypeMismatch, "unknown type"},
		{"bad base64", Record{Name: "m", Type: metrics.BytesType, Value: json.RawMessage(`"!!"`), Encoding: "base64"}, nil, "invalid base64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRecord(tt.record)
			require.Error(t, err)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
			if tt.contains != "" {
				require.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestParseRecord_PayloadLimit(t *testing.T) {
	fits, err := json.Marshal(strings.Repeat("x", config.MaxBytesPayload))
	require.NoError(t, err)
	_, err = ParseRecord(Record{Name: "m", Type: metrics.BytesType, Value: fits})
	require.NoError(t, err)

	over, err := json.Marshal(strings.Repeat("x", config.MaxBytesPayload+1))
	require.NoError(t, err)
	_, err = ParseRecord(Record{Name: "m", Type: metrics.BytesType, Value: over})
	require.True(t, errors.Is(err, ErrPayloadTooLarge))
}
