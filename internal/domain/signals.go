package domain

import "time"

// ReadingActivity aggregates reading sessions for one item inside a window.
type ReadingActivity struct {
	ItemID               string
	SessionCount         int64
	TotalDurationSeconds int64
}

// SearchActivity aggregates searches that landed on one item inside a window.
type SearchActivity struct {
	ItemID      string
	SearchCount int64
}

// ItemMetadata is the catalog view of an item.
type ItemMetadata struct {
	ItemID        string
	ItemType      ItemType
	Title         string
	Author        string
	CategoryID    string
	CoverURL      string
	CreatedAt     time.Time
	ViewCount     int64
	SearchCount   int64
	TrendingScore float64
}

// ItemStats holds aggregate reader statistics for an item.
// AverageRating is on a 0-10 scale.
type ItemStats struct {
	ItemID          string
	TotalReaders    int64
	AverageRating   float64
	RatingCount     int64
	PopularityScore float64
}

// ReadHistory is a user's engagement with the catalog.
// ReadItemIDs are ordered most recent first.
type ReadHistory struct {
	ReadItemIDs             []string
	CurrentlyReadingItemIDs []string
}

// SocialGraph lists the users a user follows.
type SocialGraph struct {
	FollowingUserIDs []string
}

// ItemUserCount is the number of distinct users engaged with an item.
type ItemUserCount struct {
	ItemID    string
	UserCount int64
}

// CatalogOrder controls the ordering of ListCatalog results.
type CatalogOrder string

// CatalogOrder constants.
const (
	CatalogOrderTrending   CatalogOrder = "trending"
	CatalogOrderPopularity CatalogOrder = "popularity"
	CatalogOrderNewest     CatalogOrder = "newest"
)

// CatalogQuery filters the catalog. Zero-valued fields are ignored.
type CatalogQuery struct {
	ItemType     ItemType
	CategoryID   string
	Author       string
	CreatedAfter time.Time
	OrderBy      CatalogOrder
	Limit        int
}

// ScoredItem is a ranking candidate before ranks are assigned.
// Candidates keep their discovery order so equal scores rank deterministically.
type ScoredItem struct {
	ItemID      string
	Score       float64
	ReaderCount int64
	Rating      float64
}
