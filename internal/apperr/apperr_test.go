package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	cause := errors.New("disk full")

	v := apperr.Validation("image", "empty upload")
	p := apperr.Provider("ollama", cause)
	s := apperr.Storage("insert spotting", cause)

	assert.True(t, apperr.IsValidation(v))
	assert.False(t, apperr.IsProvider(v))
	assert.True(t, apperr.IsProvider(p))
	assert.True(t, apperr.IsStorage(s))
	assert.ErrorIs(t, p, cause)
	assert.ErrorIs(t, s, cause)
	assert.Equal(t, "validation: image: empty upload", v.Error())

	// classification survives further wrapping
	wrapped := fmt.Errorf("record: %w", s)
	assert.True(t, apperr.IsStorage(wrapped))
}

func TestStorageDoesNotDoubleWrap(t *testing.T) {
	assert.Nil(t, apperr.Storage("noop", nil))

	inner := apperr.Storage("count", errors.New("boom"))
	outer := apperr.Storage("evaluate", inner)
	assert.Same(t, inner, outer)
}

func TestProviderNilCause(t *testing.T) {
	err := apperr.Provider("demo", nil)
	assert.Contains(t, err.Error(), "unavailable")
}
