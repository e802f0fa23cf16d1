package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := InsufficientFunds("free balance %d below %d", 50, 100)

	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.False(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "free balance 50 below 100", err.Error())
}

func TestError_IsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("failed to invest: %w", NotFound("contest %s not found", "abc"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestTransientAndServiceUnavailable(t *testing.T) {
	cause := errors.New("could not serialize access")
	err := Transient(cause)

	assert.True(t, IsTransient(err))
	assert.True(t, errors.Is(err, cause))

	surfaced := ServiceUnavailable("invest", err)
	assert.True(t, errors.Is(surfaced, ErrServiceUnavailable))
	assert.Equal(t, KindServiceUnavailable, KindOf(surfaced))
	assert.False(t, IsTransient(surfaced))
	assert.Contains(t, surfaced.Error(), "invest unavailable")
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
