package deform

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is matched by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMeshNotReady is returned when an operation needs a base mesh and
	// SetMesh has not been called. Buffers are left untouched.
	ErrMeshNotReady = errors.New("base mesh not initialized")
)

// ConfigError reports a rejected parameter. Nothing is mutated when one is
// returned.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErr(field string, value any, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
