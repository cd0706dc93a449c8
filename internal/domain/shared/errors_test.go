package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"concurrent", ConcurrentModification("students", 1, 2), KindConcurrent},
		{"partner", ErrPartnerNotFound, KindNotFound},
		{"read only", ErrReadOnlyRole, KindForbidden},
		{"role", ErrInvalidRole, KindValidation},
		{"claim amount", ErrInvalidClaimAmount, KindValidation},
		{"provider", ErrNotificationFailed, KindUnavailable},
		{"wrapped timeout", WrapError("student", "Save", ErrTimeout, "slow", context.DeadlineExceeded), KindUnavailable},
		{"unknown", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestDomainError_MatchesKindAndCause(t *testing.T) {
	cause := context.DeadlineExceeded
	err := WrapError("storage", "Fetch", ErrStorage, "storage operation failed", cause)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage.Fetch: storage operation failed: context deadline exceeded", err.Error())
}

func TestStorageFailure(t *testing.T) {
	assert.NoError(t, StorageFailure("op", nil))

	conflict := ConcurrentModification("tasks", 3, 4)
	assert.Same(t, conflict, StorageFailure("op", conflict))

	wrapped := StorageFailure("pg.Save", errors.New("conn reset"))
	assert.ErrorIs(t, wrapped, ErrStorage)
	assert.False(t, IsRetryable(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ConcurrentModification("students", 0, 1)))
	assert.True(t, IsRetryable(ErrServiceUnavailable))
	assert.False(t, IsRetryable(ErrNotificationFailed))
	assert.False(t, IsRetryable(ErrInvalidRole))
}
