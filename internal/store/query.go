package store

import (
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

// Default and maximum page sizes for recommendation reads.
const (
	DefaultRecommendationLimit = 20
	MaxRecommendationLimit     = 100
)

// RecommendationQuery selects live recommendations for a user.
type RecommendationQuery struct {
	UserID string
	// Type filters by recommendation family; empty matches all.
	Type   domain.RecommendationType
	Limit  int
	Offset int
	// Now is the reference time for expiry. Zero means time.Now().
	Now time.Time
}

// Normalize clamps limit and offset into valid ranges.
func (q *RecommendationQuery) Normalize() {
	if q.Limit <= 0 {
		q.Limit = DefaultRecommendationLimit
	}
	if q.Limit > MaxRecommendationLimit {
		q.Limit = MaxRecommendationLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
}
