package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, NotFound, KindOf(New(NotFound, "customer %s not found", "CUST-1")))
	assert.Equal(t, Internal, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("approve: %w", New(AlreadyFinal, "done"))
	assert.Equal(t, AlreadyFinal, KindOf(wrapped))
	assert.True(t, Is(wrapped, AlreadyFinal))
	assert.False(t, Is(wrapped, NotFound))
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", New(PermissionDenied, "only admin can delete"))
	assert.ErrorIs(t, err, &Error{Kind: PermissionDenied})
	assert.NotErrorIs(t, err, &Error{Kind: NotFound})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(StoreUnavailable, cause, "save snapshot")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save snapshot: disk full", err.Error())
}

func TestRecoverable(t *testing.T) {
	assert.True(t, Recoverable(New(InvalidPhone, "x")))
	assert.True(t, Recoverable(New(StoreUnavailable, "x")))
	assert.False(t, Recoverable(errors.New("x")))
	assert.False(t, Recoverable(nil))
}
