package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKind(t *testing.T) {
	err := NotFound("session.Get", "session not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "session.Get: session not found", err.Error())
}

func TestWrappedErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("outer: %w", Wrap("roster.Create", ErrConflict, "phone already registered", cause))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrConflict, KindOf(err))
	assert.Equal(t, "phone already registered", Message(err, "fallback"))
}

func TestKindOfUntyped(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("boom")))
	assert.Equal(t, "fallback", Message(errors.New("boom"), "fallback"))
}
