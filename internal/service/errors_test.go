package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrEventNotFound, KindValidation},
		{ErrRegistrationNotFound, KindValidation},
		{ErrUserNotFound, KindValidation},
		{fmt.Errorf("%w: name", ErrInvalidInput), KindValidation},
		{ErrAlreadyRegistered, KindConflict},
		{ErrEventCompleted, KindConflict},
		{fmt.Errorf("%w: 3 requested", ErrInsufficientCapacity), KindConflict},
		{fmt.Errorf("register: %w", ErrContention), KindContention},
		{store.ErrLockTimeout, KindContention},
		{errors.New("connection refused"), KindInternal},
		{nil, KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}

	assert.True(t, IsRetryable(fmt.Errorf("x: %w", ErrContention)))
	assert.False(t, IsRetryable(ErrInsufficientCapacity))
	assert.Equal(t, "conflict", KindConflict.String())
}
