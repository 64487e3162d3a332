package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_MatchThroughWrapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"config", NewConfigError("vector_weight", "must be in [0,1], got %g", 1.5), IsConfig},
		{"normalization", &NormalizationError{Source: "vector", ID: "a", Raw: 1.2}, IsNormalization},
		{"upstream", &UpstreamError{Source: "keyword", Err: errors.New("boom")}, IsUpstream},
		{"timeout", &TimeoutError{Stage: "query", Timeout: time.Second}, IsTimeout},
		{"validation", &ValidationError{Field: "query", Reason: "must not be empty"}, IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("search: %w", tt.err)
			assert.True(t, tt.check(wrapped))
			assert.NotEmpty(t, wrapped.Error())
		})
	}
}

func TestTypedErrors_DoNotCrossMatch(t *testing.T) {
	err := &UpstreamError{Source: "vector", Err: errors.New("down")}
	assert.False(t, IsTimeout(err))
	assert.False(t, IsConfig(err))
	assert.False(t, IsValidation(err))
}

func TestUpstreamError_UnwrapsCause(t *testing.T) {
	err := &UpstreamError{Source: "vector", Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "vector source failed")
}

func TestConfigError_Message(t *testing.T) {
	assert.Equal(t, "invalid search config: min_vector_score: out of range",
		(&ConfigError{Field: "min_vector_score", Reason: "out of range"}).Error())
	assert.Equal(t, "invalid search config: weights do not sum to 1",
		(&ConfigError{Reason: "weights do not sum to 1"}).Error())
}
