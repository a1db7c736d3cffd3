package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureResult(t *testing.T) {
	res := Failure("primary", FailureTimeout, errors.New("deadline exceeded"))

	assert.False(t, res.OK())
	assert.Equal(t, "primary", res.EngineID)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, FailureTimeout, res.Err.Kind)
	assert.Contains(t, res.Err.Error(), "primary")
	assert.Contains(t, res.Err.Error(), "timeout")
}

func TestFailureKindString(t *testing.T) {
	assert.Equal(t, "provider_error", FailureProvider.String())
	assert.Equal(t, "timeout", FailureTimeout.String())
	assert.Equal(t, "canceled", FailureCanceled.String())
	assert.Equal(t, "unavailable", FailureUnavailable.String())
	assert.Equal(t, "unknown", FailureKind(99).String())
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	res := Failure("structural", FailureProvider, inner)
	assert.ErrorIs(t, res.Err, inner)
}

func TestCanonicalizeHints(t *testing.T) {
	hints := CanonicalizeHints([]string{"ja-JP", "en_US", "en", "??", "DE"})
	assert.Equal(t, []string{"ja", "en", "de"}, hints)
}

func TestCanonicalizeHintsEmpty(t *testing.T) {
	assert.Empty(t, CanonicalizeHints(nil))
	assert.Empty(t, CanonicalizeHints([]string{"!!!"}))
}

func TestTesseractLanguages(t *testing.T) {
	assert.Equal(t, []string{"jpn", "eng"}, TesseractLanguages([]string{"ja", "en"}))
	// Unmapped bases pass through.
	assert.Equal(t, []string{"fi"}, TesseractLanguages([]string{"fi"}))
}
