package ingest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nicktill/metricring/pkg/config"
	"github.com/nicktill/metricring/pkg/metrics"
)

// Validation limits
const (
	MaxChannelNameLength = 256 // Maximum channel name length
)

var (
	// ErrChannelNameTooLong is returned when a channel name is too long
	ErrChannelNameTooLong = fmt.Errorf("channel name too long (max %d chars)", MaxChannelNameLength)

	// ErrChannelNameNUL is returned for names that cannot be NUL-terminated on the wire
	ErrChannelNameNUL = fmt.Errorf("channel name contains NUL")

	// ErrMissingValue is returned when a record has no value
	ErrMissingValue = fmt.Errorf("record value is missing")

	// ErrPayloadTooLarge is returned for byte payloads over config.MaxBytesPayload
	ErrPayloadTooLarge = fmt.Errorf("bytes payload too large (max %d bytes)", config.MaxBytesPayload)

	// ErrTooManyRecords is returned when a request carries more records than allowed
	ErrTooManyRecords = fmt.Errorf("too many records in request")

	// ErrChannelLimit is returned when a record would create a channel past the limit
	ErrChannelLimit = fmt.Errorf("channel limit exceeded")
)

// Record is one sample in a record request.
// Bytes values are JSON strings, taken as text unless Encoding is "base64".
type Record struct {
	Name     string            `json:"name"`
	Type     metrics.ValueType `json:"type"`
	Value    json.RawMessage   `json:"value"`
	Encoding string            `json:"encoding,omitempty"`
}

// ValidateName checks a channel name against the ingest limits
func ValidateName(name string) error {
	if name == "" {
		return metrics.ErrInvalidName
	}
	if len(name) > MaxChannelNameLength {
		return fmt.Errorf("%w: %q has %d chars", ErrChannelNameTooLong, name[:32]+"...", len(name))
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q", ErrChannelNameNUL, name)
	}
	return nil
}

// ParseRecord validates r and converts its JSON value into a typed Value
func ParseRecord(r Record) (metrics.Value, error) {
	if err := ValidateName(r.Name); err != nil {
		return metrics.Value{}, err
	}
	if len(r.Value) == 0 || string(r.Value) == "null" {
		return metrics.Value{}, fmt.Errorf("%w: channel %q", ErrMissingValue, r.Name)
	}

	raw := string(r.Value)
	switch r.Type {
	case metrics.Int64Type:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return metrics.Value{}, fmt.Errorf("channel %q: int64 value %s: %w", r.Name, raw, metrics.ErrTypeMismatch)
		}
		return metrics.Int64(n), nil
	case metrics.Float32Type:
		f, err := strconv.ParseFloat(floatText(raw), 32)
		if err != nil {
			return metrics.Value{}, fmt.Errorf("channel %q: float32 value %s: %w", r.Name, raw, metrics.ErrTypeMismatch)
		}
		return metrics.Float32(float32(f)), nil
	case metrics.Float64Type:
		f, err := strconv.ParseFloat(floatText(raw), 64)
		if err != nil {
			return metrics.Value{}, fmt.Errorf("channel %q: float64 value %s: %w", r.Name, raw, metrics.ErrTypeMismatch)
		}
		return metrics.Float64(f), nil
	case metrics.BytesType:
		var s string
		if err := json.Unmarshal(r.Value, &s); err != nil {
			return metrics.Value{}, fmt.Errorf("channel %q: bytes value must be a string: %w", r.Name, metrics.ErrTypeMismatch)
		}
		b := []byte(s)
		if r.Encoding == "base64" {
			decoded, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return metrics.Value{}, fmt.Errorf("channel %q: invalid base64: %w", r.Name, err)
			}
			b = decoded
		}
		if len(b) > config.MaxBytesPayload {
			return metrics.Value{}, fmt.Errorf("%w: channel %q has %d bytes", ErrPayloadTooLarge, r.Name, len(b))
		}
		return metrics.Bytes(b), nil
	}
	return metrics.Value{}, fmt.Errorf("channel %q: unknown type %s: %w", r.Name, r.Type, metrics.ErrTypeMismatch)
}

// floatText unquotes "NaN", "+Inf" and "-Inf", which JSON can only carry
// as strings.
func floatText(raw string) string {
	if unquoted, err := strconv.Unquote(raw); err == nil {
		return unquoted
	}
	return raw
}
