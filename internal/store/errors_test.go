package store_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/logan676/booklibrio-engine/internal/errors"
	"github.com/logan676/booklibrio-engine/internal/store"
)

func TestSentinels_MatchDomainCodes(t *testing.T) {
	wrapped := fmt.Errorf("get snapshot: %w", store.ErrNotFound)

	assert.ErrorIs(t, wrapped, store.ErrNotFound)
	assert.ErrorIs(t, wrapped, errors.ErrNotFound)
	assert.ErrorIs(t, store.ErrAlreadyExists, errors.ErrConflict)
	assert.ErrorIs(t, store.ErrInvalidInput, errors.ErrValidation)
	assert.NotErrorIs(t, store.ErrNotFound, errors.ErrValidation)
}

func TestSentinels_NotRetryable(t *testing.T) {
	assert.False(t, errors.CodeOf(store.ErrNotFound).Retryable())
	assert.False(t, errors.CodeOf(store.ErrInvalidInput).Retryable())
}
