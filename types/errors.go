package types

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an invalid or contradictory option combination.
// The message names the options in conflict so callers can fix the request
// without reading planner internals.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// SchemaMismatchError reports that producer output cannot be reshaped into
// the table layout. Expected and Actual carry column names for the mismatch
// message when the shapes are enumerable.
type SchemaMismatchError struct {
	Reason   string
	Expected []string
	Actual   []string
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("schema mismatch: %s", e.Reason)
	if len(e.Expected) > 0 || len(e.Actual) > 0 {
		msg = fmt.Sprintf("%s (expected columns: [%s], got: [%s])", msg,
			strings.Join(e.Expected, ", "), strings.Join(e.Actual, ", "))
	}
	return msg
}

func NewSchemaMismatchError(format string, args ...any) *SchemaMismatchError {
	return &SchemaMismatchError{Reason: fmt.Sprintf(format, args...)}
}

// DuplicateKeyError is raised by the strict duplicate payload when an
// incoming record collides with a stored record on its key.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key found during insert: %s", e.Key)
}

func NewDuplicateKeyError(key string) *DuplicateKeyError {
	return &DuplicateKeyError{Key: key}
}
