package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCandidate_Beats(t *testing.T) {
	friend := Candidate{ItemID: "b1", Score: 80, ReasonType: ReasonFriendActivity}
	rated := Candidate{ItemID: "b1", Score: 95, ReasonType: ReasonHighRating}

	assert.True(t, rated.Beats(&friend))
	assert.False(t, friend.Beats(&rated))

	// Ties go to the stronger reason.
	similar := Candidate{ItemID: "b1", Score: 80, ReasonType: ReasonSimilarToRead}
	assert.True(t, similar.Beats(&friend))
	assert.False(t, friend.Beats(&similar))
	assert.False(t, friend.Beats(&friend))
}

func TestReasonType_RecommendationType(t *testing.T) {
	tests := map[ReasonType]RecommendationType{
		ReasonSimilarToRead:     RecommendationSimilar,
		ReasonSameAuthor:        RecommendationAuthor,
		ReasonPopularInCategory: RecommendationCategory,
		ReasonFriendActivity:    RecommendationSocial,
		ReasonTrending:          RecommendationTrending,
		ReasonNewInCategory:     RecommendationTrending,
		ReasonHighRating:        RecommendationQuality,
	}
	for reason, want := range tests {
		assert.True(t, reason.Valid(), reason)
		assert.Equal(t, want, reason.RecommendationType(), reason)
		assert.True(t, want.Valid(), want)
	}
	assert.False(t, ReasonType("editor_pick").Valid())
}

func TestUserRecommendation_IsLive(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	rec := UserRecommendation{ExpiresAt: now.Add(time.Hour)}

	assert.True(t, rec.IsLive(now))
	assert.False(t, rec.IsLive(now.Add(time.Hour)))

	rec.IsDismissed = true
	assert.False(t, rec.IsLive(now))

	// Viewed and clicked rows stay live.
	rec = UserRecommendation{ExpiresAt: now.Add(time.Hour), IsViewed: true, IsClicked: true}
	assert.True(t, rec.IsLive(now))
}

func TestUserContext(t *testing.T) {
	uc := UserContext{
		ReadItems:             []string{"b1"},
		CurrentlyReadingItems: []string{"b2"},
		PreferredCategories:   []string{"fiction"},
	}

	assert.True(t, uc.HasEngaged("b1"))
	assert.True(t, uc.HasEngaged("b2"))
	assert.False(t, uc.HasEngaged("b3"))
	assert.True(t, uc.PrefersCategory("fiction"))
	assert.False(t, uc.PrefersCategory(""))
	assert.False(t, uc.PrefersCategory("poetry"))
}
