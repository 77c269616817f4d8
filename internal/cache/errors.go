package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors for cache construction and resizing.
// Use errors.Is() to check for these conditions.
var (
	// ErrInvalidCapacity is returned when a capacity is zero or negative.
	ErrInvalidCapacity = errors.New("cache: capacity must be greater than 0")

	// ErrInvalidArgumentType is returned when a capacity cannot be represented
	// as an unsigned quantity at all. It is reported alongside
	// ErrInvalidCapacity for negative values.
	ErrInvalidArgumentType = errors.New("cache: capacity must be a non-negative integer")
)

// CapacityError describes a rejected capacity value.
type CapacityError struct {
	Op       string // "create" or "resize"
	Capacity int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	if e.Capacity < 0 {
		return fmt.Sprintf("cache %s: capacity must be a non-negative integer, got %d", e.Op, e.Capacity)
	}
	return fmt.Sprintf("cache %s: capacity must be greater than 0, got %d", e.Op, e.Capacity)
}

// Is reports whether the error matches target. Every CapacityError matches
// ErrInvalidCapacity; negative capacities also match ErrInvalidArgumentType.
func (e *CapacityError) Is(target error) bool {
	switch target {
	case ErrInvalidCapacity:
		return true
	case ErrInvalidArgumentType:
		return e.Capacity < 0
	}
	return false
}

func validateCapacity(op string, capacity int) error {
	if capacity <= 0 {
		return &CapacityError{Op: op, Capacity: capacity}
	}
	return nil
}
