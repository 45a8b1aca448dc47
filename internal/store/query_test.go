package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/logan676/booklibrio-engine/internal/errors"
)

// TestRecommendationQuery_Normalize tests clamping of recommendation page parameters.
func TestRecommendationQuery_Normalize(t *testing.T) {
	tests := []struct {
		name           string
		input          RecommendationQuery
		expectedLimit  int
		expectedOffset int
	}{
		{
			name:           "valid parameters",
			input:          RecommendationQuery{Limit: 30, Offset: 10},
			expectedLimit:  30,
			expectedOffset: 10,
		},
		{
			name:           "zero limit should default to 20",
			input:          RecommendationQuery{Limit: 0},
			expectedLimit:  20,
			expectedOffset: 0,
		},
		{
			name:           "limit over 100 should cap at 100",
			input:          RecommendationQuery{Limit: 500},
			expectedLimit:  100,
			expectedOffset: 0,
		},
		{
			name:           "negative offset should reset to 0",
			input:          RecommendationQuery{Limit: 10, Offset: -5},
			expectedLimit:  10,
			expectedOffset: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.input
			q.Normalize()
			assert.Equal(t, tt.expectedLimit, q.Limit)
			assert.Equal(t, tt.expectedOffset, q.Offset)
			assert.False(t, q.Now.IsZero())
		})
	}
}

func TestRecommendationQuery_NormalizeKeepsNow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	q := RecommendationQuery{Now: now}
	q.Normalize()
	assert.Equal(t, now, q.Now)
}

func TestSentinelsCarryDomainCodes(t *testing.T) {
	assert.ErrorIs(t, ErrNotFound, errors.ErrNotFound)
	assert.ErrorIs(t, ErrAlreadyExists, errors.ErrConflict)
	assert.ErrorIs(t, ErrInvalidInput, errors.ErrValidation)
	assert.NotErrorIs(t, ErrNotFound, errors.ErrConflict)
}
