// Package scoring turns raw reading, rating and popularity signals into scores.
//
// Every function here is pure and total: missing, negative or non-finite inputs
// map to defined defaults so a single bad stat never aborts a batch. The shapes
// are fixed (log-dampened counts, linear blends of sub-scores, threshold gates)
// while the constants live in Weights and can be tuned without code changes.
package scoring

import "time"

// Weights holds every tunable constant used by the scorers.
type Weights struct {
	Ranking        RankingWeights        `koanf:"ranking"`
	Recommendation RecommendationWeights `koanf:"recommendation"`
	Related        RelatedWeights        `koanf:"related"`
}

// RankingWeights tunes leaderboard scoring.
type RankingWeights struct {
	// TrendingFactor is k1 in sessions × log10(duration+1) × k1.
	TrendingFactor float64 `koanf:"trending_factor"`
	// HotSearchFactor scales windowed search counts.
	HotSearchFactor float64 `koanf:"hot_search_factor"`

	PopularityWeight float64 `koanf:"popularity_weight"`
	ReaderWeight     float64 `koanf:"reader_weight"`
	RatingWeight     float64 `koanf:"rating_weight"`

	NewReleaseHorizon time.Duration `koanf:"new_release_horizon"`
	NewReleaseWeight  float64       `koanf:"new_release_weight"`

	MasterpieceMinRating      float64 `koanf:"masterpiece_min_rating"`
	MasterpieceMinRatingCount int64   `koanf:"masterpiece_min_rating_count"`
}

// RecommendationWeights tunes per-source candidate scoring.
type RecommendationWeights struct {
	SimilarityScale     float64 `koanf:"similarity_scale"`
	CategoryScale       float64 `koanf:"category_scale"`
	AuthorBase          float64 `koanf:"author_base"`
	AuthorPopularityLog float64 `koanf:"author_popularity_log"`
	FriendBase          float64 `koanf:"friend_base"`
	FriendPerReader     float64 `koanf:"friend_per_reader"`
	TrendingScale       float64 `koanf:"trending_scale"`
	NewReleaseBonus     float64 `koanf:"new_release_bonus"`
	AffinityBoost       float64 `koanf:"affinity_boost"`
	RatingScale         float64 `koanf:"rating_scale"`

	HighRatingFloor    float64       `koanf:"high_rating_floor"`
	HighRatingMinCount int64         `koanf:"high_rating_min_count"`
	FreshnessHorizon   time.Duration `koanf:"freshness_horizon"`
	TTL                time.Duration `koanf:"ttl"`

	// Per-source fan-out limits.
	SimilarSources     int `koanf:"similar_sources"`
	SimilarPerSource   int `koanf:"similar_per_source"`
	CategoryCount      int `koanf:"category_count"`
	CategoryPerSource  int `koanf:"category_per_source"`
	AuthorCount        int `koanf:"author_count"`
	AuthorPerSource    int `koanf:"author_per_source"`
	TrendingCandidates int `koanf:"trending_candidates"`
	RatingCandidates   int `koanf:"rating_candidates"`
}

// RelatedWeights tunes relatedness graph construction.
type RelatedWeights struct {
	SameAuthorSimilarity   float64 `koanf:"same_author_similarity"`
	SameAuthorConfidence   float64 `koanf:"same_author_confidence"`
	SameCategoryScale      float64 `koanf:"same_category_scale"`
	SameCategoryCap        float64 `koanf:"same_category_cap"`
	SameCategoryConfidence float64 `koanf:"same_category_confidence"`
	CoReadCap              float64 `koanf:"co_read_cap"`
	MinSampleSize          int64   `koanf:"min_sample_size"`
	MinCoReaders           int64   `koanf:"min_co_readers"`
	MaxPerRelation         int     `koanf:"max_per_relation"`
}

// DefaultWeights returns the stock tuning.
func DefaultWeights() Weights {
	return Weights{
		Ranking: RankingWeights{
			TrendingFactor:            1.0,
			HotSearchFactor:           1.0,
			PopularityWeight:          0.4,
			ReaderWeight:              0.3,
			RatingWeight:              0.3,
			NewReleaseHorizon:         90 * 24 * time.Hour,
			NewReleaseWeight:          100,
			MasterpieceMinRating:      9.0,
			MasterpieceMinRatingCount: 100,
		},
		Recommendation: RecommendationWeights{
			SimilarityScale:     100,
			CategoryScale:       0.8,
			AuthorBase:          80,
			AuthorPopularityLog: 5,
			FriendBase:          70,
			FriendPerReader:     10,
			TrendingScale:       0.5,
			NewReleaseBonus:     20,
			AffinityBoost:       1.2,
			RatingScale:         10,
			HighRatingFloor:     8.5,
			HighRatingMinCount:  50,
			FreshnessHorizon:    365 * 24 * time.Hour,
			TTL:                 7 * 24 * time.Hour,
			SimilarSources:      5,
			SimilarPerSource:    5,
			CategoryCount:       3,
			CategoryPerSource:   10,
			AuthorCount:         5,
			AuthorPerSource:     5,
			TrendingCandidates:  20,
			RatingCandidates:    20,
		},
		Related: RelatedWeights{
			SameAuthorSimilarity:   0.9,
			SameAuthorConfidence:   0.9,
			SameCategoryScale:      0.01,
			SameCategoryCap:        0.8,
			SameCategoryConfidence: 0.6,
			CoReadCap:              0.95,
			MinSampleSize:          10,
			MinCoReaders:           2,
			MaxPerRelation:         20,
		},
	}
}
