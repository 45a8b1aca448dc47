package scoring

import (
	"math"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

// Scorer applies Weights to signals. The zero value is not useful; use New.
type Scorer struct {
	w Weights
}

// New creates a scorer with the given weights.
func New(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.w
}

// finite returns v, or 0 when v is NaN, infinite or negative.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// logDampen returns log10(v+1) for non-negative v.
func logDampen(v float64) float64 {
	return math.Log10(finite(v) + 1)
}

// Freshness is 1 for a brand-new item and falls linearly to 0 at horizon.
func Freshness(age, horizon time.Duration) float64 {
	if horizon <= 0 || age >= horizon {
		return 0
	}
	if age <= 0 {
		return 1
	}
	return 1 - float64(age)/float64(horizon)
}

// RatingEligible is the credibility gate: an item qualifies only when its
// rating reaches floor and it has at least minCount ratings.
func RatingEligible(stats domain.ItemStats, floor float64, minCount int64) bool {
	return stats.RatingCount >= minCount && finite(stats.AverageRating) >= floor
}

// Trending scores reading activity: sessions × log10(duration+1) × k1.
func (s *Scorer) Trending(a domain.ReadingActivity) float64 {
	sessions := finite(float64(a.SessionCount))
	return finite(sessions * logDampen(float64(a.TotalDurationSeconds)) * s.w.Ranking.TrendingFactor)
}

// HotSearch scores windowed searches, with all-time views as a light tiebreaker.
func (s *Scorer) HotSearch(a domain.SearchActivity, viewCount int64) float64 {
	return finite(float64(a.SearchCount)*s.w.Ranking.HotSearchFactor + logDampen(float64(viewCount)))
}

// Composite blends popularity, readers and rating (scaled to 0-100) linearly.
func (s *Scorer) Composite(stats domain.ItemStats) float64 {
	r := s.w.Ranking
	return finite(r.PopularityWeight*finite(stats.PopularityScore) +
		r.ReaderWeight*finite(float64(stats.TotalReaders)) +
		r.RatingWeight*finite(stats.AverageRating)*10)
}

// NewRelease favors young items, with popularity as a dampened secondary term.
func (s *Scorer) NewRelease(age time.Duration, stats domain.ItemStats) float64 {
	r := s.w.Ranking
	return finite(Freshness(age, r.NewReleaseHorizon)*r.NewReleaseWeight + logDampen(stats.PopularityScore))
}

// Masterpiece scores gated, highly rated items. The second return is false
// when the item fails the credibility gate and must be dropped.
func (s *Scorer) Masterpiece(stats domain.ItemStats) (float64, bool) {
	r := s.w.Ranking
	if !RatingEligible(stats, r.MasterpieceMinRating, r.MasterpieceMinRatingCount) {
		return 0, false
	}
	return finite(stats.AverageRating*10 + logDampen(float64(stats.RatingCount))), true
}

// Similar scores a relatedness edge: similarity × 100.
func (s *Scorer) Similar(similarity float64) float64 {
	return finite(similarity * s.w.Recommendation.SimilarityScale)
}

// PopularInCategory scores a category's trending item: trendingScore × 0.8.
func (s *Scorer) PopularInCategory(trendingScore float64) float64 {
	return finite(trendingScore * s.w.Recommendation.CategoryScale)
}

// SameAuthor scores another book by a favorite author: 80 + log10(pop+1) × 5.
func (s *Scorer) SameAuthor(popularity float64) float64 {
	r := s.w.Recommendation
	return finite(r.AuthorBase + logDampen(popularity)*r.AuthorPopularityLog)
}

// FriendsReading scores an item by distinct followers reading it: 70 + n × 10.
func (s *Scorer) FriendsReading(followerCount int64) float64 {
	if followerCount <= 0 {
		return 0
	}
	r := s.w.Recommendation
	return finite(r.FriendBase + float64(followerCount)*r.FriendPerReader)
}

// TrendingCandidate scales the global trending score down and adds a new-release
// bonus; items in a preferred category get the affinity boost.
func (s *Scorer) TrendingCandidate(trendingScore float64, age time.Duration, preferred bool) float64 {
	r := s.w.Recommendation
	score := finite(trendingScore)*r.TrendingScale + Freshness(age, r.FreshnessHorizon)*r.NewReleaseBonus
	if preferred {
		score *= r.AffinityBoost
	}
	return finite(score)
}

// HighRating scores an item by rating alone once it passes the credibility gate.
func (s *Scorer) HighRating(stats domain.ItemStats, floor float64) (float64, bool) {
	if !RatingEligible(stats, floor, s.w.Recommendation.HighRatingMinCount) {
		return 0, false
	}
	return finite(stats.AverageRating * s.w.Recommendation.RatingScale), true
}
