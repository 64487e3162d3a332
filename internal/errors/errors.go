// Package errors defines the typed failures surfaced by the ranking engine, plus the retry and
// circuit-breaker helpers used by upstream adapters.
//
// Taxonomy:
//   - ConfigError: invalid weights, thresholds or candidate counts (rejected, never clamped)
//   - NormalizationError: an upstream score outside its contractual range
//   - UpstreamError: a candidate source failed after its own retries
//   - TimeoutError: the overall query deadline was exceeded
//   - ValidationError: malformed request input
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError reports an invalid search configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid search config: " + e.Reason
	}
	return fmt.Sprintf("invalid search config: %s: %s", e.Field, e.Reason)
}

// NewConfigError returns a ConfigError for field.
func NewConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NormalizationError reports a raw score that breaks the source's range contract.
type NormalizationError struct {
	Source string
	ID     string
	Raw    float64
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("%s score for %q out of contract (raw=%g): %s", e.Source, e.ID, e.Raw, e.Reason)
}

// UpstreamError reports a candidate source that failed after exhausting its retries.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("upstream failure: %v", e.Err)
	}
	return fmt.Sprintf("%s source failed: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// TimeoutError reports that a query stage ran past its deadline.
type TimeoutError struct {
	Stage   string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded deadline of %s", e.Stage, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ValidationError reports invalid request input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsConfig reports whether err wraps a ConfigError.
func IsConfig(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsNormalization reports whether err wraps a NormalizationError.
func IsNormalization(err error) bool {
	var target *NormalizationError
	return errors.As(err, &target)
}

// IsUpstream reports whether err wraps an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsTimeout reports whether err wraps a TimeoutError.
func IsTimeout(err error) bool {
	var target *TimeoutError
	return errors.As(err, &target)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
