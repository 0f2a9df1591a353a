package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrConflict, "lab already in cart"))

	got := FromError(wrapped)
	assert.Equal(t, ErrConflict.Code, got.Code)
	assert.Equal(t, "lab already in cart", got.Message)
	assert.Equal(t, http.StatusConflict, got.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.EqualError(t, got, "internal server error: boom")
}

func TestCloneDoesNotMutateSentinel(t *testing.T) {
	clone := Clone(ErrValidation, "name is required")
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Equal(t, "name is required", clone.Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, ErrUpstream.Code, ErrUpstream.Status, ErrUpstream.Message)
	assert.ErrorIs(t, err, cause)
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(Clone(ErrNotFound, "session not found"), ErrNotFound))
	assert.True(t, HasCode(fmt.Errorf("store: %w", ErrCacheMiss), ErrCacheMiss))
	assert.False(t, HasCode(errors.New("boom"), ErrNotFound))
	assert.False(t, HasCode(nil, ErrNotFound))
}
