package metrics

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidCapacity is returned when a ring, channel or store is created with capacity 0
	ErrInvalidCapacity = errors.New("capacity must be at least 1")

	// ErrInvalidName is returned for an empty channel name or one containing NUL
	ErrInvalidName = errors.New("invalid channel name")

	// ErrTypeMismatch is returned when a value's type differs from the channel type
	ErrTypeMismatch = errors.New("value type does not match channel type")

	// ErrUnknownChannel is returned when a query names a channel that was never created
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrOutOfRange is returned for indexed ring access past the retained length
	ErrOutOfRange = errors.New("index out of range")
)

// CheckName rejects names that cannot be written NUL-terminated on the wire
func CheckName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidName, name)
	}
	return nil
}
