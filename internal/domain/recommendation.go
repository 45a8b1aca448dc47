package domain

import (
	"slices"
	"time"
)

// ReasonType explains why an item was recommended.
type ReasonType string

// ReasonType constants.
const (
	ReasonSimilarToRead     ReasonType = "similar_to_read"
	ReasonSameAuthor        ReasonType = "same_author"
	ReasonPopularInCategory ReasonType = "popular_in_category"
	ReasonFriendActivity    ReasonType = "friend_activity"
	ReasonTrending          ReasonType = "trending"
	ReasonNewInCategory     ReasonType = "new_in_category"
	ReasonHighRating        ReasonType = "high_rating"
)

// Valid returns true if the reason type is a recognized value.
func (r ReasonType) Valid() bool {
	switch r {
	case ReasonSimilarToRead, ReasonSameAuthor, ReasonPopularInCategory,
		ReasonFriendActivity, ReasonTrending, ReasonNewInCategory, ReasonHighRating:
		return true
	default:
		return false
	}
}

// Priority orders reasons for tie-breaking during deduplication.
// Lower is stronger: similarity > author > category > social > trending > rating.
func (r ReasonType) Priority() int {
	switch r {
	case ReasonSimilarToRead:
		return 0
	case ReasonSameAuthor:
		return 1
	case ReasonPopularInCategory:
		return 2
	case ReasonFriendActivity:
		return 3
	case ReasonTrending, ReasonNewInCategory:
		return 4
	case ReasonHighRating:
		return 5
	default:
		return 6
	}
}

// RecommendationType returns the coarse recommendation family for a reason.
func (r ReasonType) RecommendationType() RecommendationType {
	switch r {
	case ReasonSimilarToRead:
		return RecommendationSimilar
	case ReasonSameAuthor:
		return RecommendationAuthor
	case ReasonPopularInCategory:
		return RecommendationCategory
	case ReasonFriendActivity:
		return RecommendationSocial
	case ReasonTrending, ReasonNewInCategory:
		return RecommendationTrending
	case ReasonHighRating:
		return RecommendationQuality
	default:
		return RecommendationTrending
	}
}

// RecommendationType groups recommendations for filtered reads.
type RecommendationType string

// RecommendationType constants.
const (
	RecommendationSimilar  RecommendationType = "similar"
	RecommendationAuthor   RecommendationType = "author"
	RecommendationCategory RecommendationType = "category"
	RecommendationSocial   RecommendationType = "social"
	RecommendationTrending RecommendationType = "trending"
	RecommendationQuality  RecommendationType = "quality"
)

// Valid returns true if the recommendation type is a recognized value.
func (t RecommendationType) Valid() bool {
	switch t {
	case RecommendationSimilar, RecommendationAuthor, RecommendationCategory,
		RecommendationSocial, RecommendationTrending, RecommendationQuality:
		return true
	default:
		return false
	}
}

// UserRecommendation is one persisted, positioned recommendation.
// The viewed, clicked and dismissed flags are independent.
type UserRecommendation struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"user_id"`
	ItemID             string             `json:"item_id"`
	ItemType           ItemType           `json:"item_type"`
	RecommendationType RecommendationType `json:"recommendation_type"`
	ReasonType         ReasonType         `json:"reason_type"`
	Reason             string             `json:"reason"`
	SourceItemID       *string            `json:"source_item_id,omitempty"`
	Score              float64            `json:"score"`
	Position           int                `json:"position"`
	IsViewed           bool               `json:"is_viewed"`
	IsClicked          bool               `json:"is_clicked"`
	IsDismissed        bool               `json:"is_dismissed"`
	CreatedAt          time.Time          `json:"created_at"`
	ExpiresAt          time.Time          `json:"expires_at"`
}

// IsLive reports whether the row is neither expired nor dismissed.
func (r *UserRecommendation) IsLive(now time.Time) bool {
	return !r.IsDismissed && now.Before(r.ExpiresAt)
}

// Candidate is an (item, score, reason) proposed by one source before deduplication.
type Candidate struct {
	ItemID       string
	ItemType     ItemType
	Score        float64
	ReasonType   ReasonType
	Reason       string
	SourceItemID string
}

// Beats reports whether c should replace other when both propose the same item.
// Higher score wins; equal scores fall back to reason priority.
func (c *Candidate) Beats(other *Candidate) bool {
	if c.Score != other.Score {
		return c.Score > other.Score
	}
	return c.ReasonType.Priority() < other.ReasonType.Priority()
}

// UserContext is the ephemeral per-run view of a user's tastes.
// It is rebuilt on every generation and never cached.
type UserContext struct {
	UserID                string
	ReadItems             []string
	CurrentlyReadingItems []string
	PreferredCategories   []string // top 5 by frequency
	FavoriteAuthors       []string // top 10 by frequency
	FollowingUserIDs      []string
}

// HasEngaged reports whether the user has read or is reading the item.
func (c *UserContext) HasEngaged(itemID string) bool {
	return slices.Contains(c.ReadItems, itemID) || slices.Contains(c.CurrentlyReadingItems, itemID)
}

// PrefersCategory reports whether categoryID is among the preferred categories.
func (c *UserContext) PrefersCategory(categoryID string) bool {
	return categoryID != "" && slices.Contains(c.PreferredCategories, categoryID)
}

// GenerateOptions controls a recommendation generation run.
// MinRating overrides the high-rating source floor when positive.
type GenerateOptions struct {
	Limit       int     `json:"limit" validate:"min=1,max=100"`
	ExcludeRead bool    `json:"exclude_read"`
	MinRating   float64 `json:"min_rating" validate:"min=0,max=10"`
}

// DefaultGenerateOptions returns the options used by scheduled generation.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Limit: 50, ExcludeRead: true}
}

// RecommendationPage is a read of a user's live recommendations.
// Computed is false when the user has never had recommendations generated.
type RecommendationPage struct {
	Items     []UserRecommendation `json:"items"`
	Computed  bool                 `json:"computed"`
	RetryHint string               `json:"retry_hint,omitempty"`
}
