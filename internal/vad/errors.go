package vad

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every ConfigError via errors.Is.
var ErrConfiguration = errors.New("invalid vad configuration")

// ConfigError reports an invalid frame/padding/sample-rate combination.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// ClassificationError wraps a classifier failure on a well-formed frame.
type ClassificationError struct {
	FrameIndex int
	Err        error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify frame %d: %v", e.FrameIndex, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
