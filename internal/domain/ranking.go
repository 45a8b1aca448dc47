package domain

import "time"

// ItemType identifies the kind of catalog item being ranked or recommended.
type ItemType string

// ItemType constants.
const (
	ItemTypeEbook     ItemType = "ebook"
	ItemTypeMagazine  ItemType = "magazine"
	ItemTypeAudiobook ItemType = "audiobook"
)

// Valid returns true if the item type is a recognized value.
func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeEbook, ItemTypeMagazine, ItemTypeAudiobook:
		return true
	default:
		return false
	}
}

// AllItemTypes returns every item type in a stable order.
func AllItemTypes() []ItemType {
	return []ItemType{ItemTypeEbook, ItemTypeMagazine, ItemTypeAudiobook}
}

// RankingType is an independently scheduled leaderboard.
type RankingType string

// RankingType constants.
const (
	RankingTrending    RankingType = "trending"
	RankingHotSearch   RankingType = "hot_search"
	RankingNewBooks    RankingType = "new_books"
	RankingFiction     RankingType = "fiction"
	RankingNonFiction  RankingType = "non_fiction"
	RankingTop200      RankingType = "top_200"
	RankingMasterpiece RankingType = "masterpiece"
)

// Valid returns true if the ranking type is a recognized value.
func (t RankingType) Valid() bool {
	switch t {
	case RankingTrending, RankingHotSearch, RankingNewBooks, RankingFiction,
		RankingNonFiction, RankingTop200, RankingMasterpiece:
		return true
	default:
		return false
	}
}

// AllRankingTypes returns every ranking type in scheduling order.
func AllRankingTypes() []RankingType {
	return []RankingType{
		RankingTrending,
		RankingHotSearch,
		RankingNewBooks,
		RankingFiction,
		RankingNonFiction,
		RankingTop200,
		RankingMasterpiece,
	}
}

// RankingDefinition is the static configuration of one ranking type.
type RankingDefinition struct {
	Type        RankingType `json:"type" koanf:"type" validate:"required,ranking_type"`
	DisplayName string      `json:"display_name" koanf:"display_name" validate:"required"`
	PeriodType  PeriodType  `json:"period_type" koanf:"period_type" validate:"required,period_type"`
	ItemType    ItemType    `json:"item_type" koanf:"item_type" validate:"required,item_type"`

	// CategoryID scopes category charts; empty for catalog-wide rankings.
	CategoryID  string `json:"category_id,omitempty" koanf:"category_id"`
	Limit       int    `json:"limit" koanf:"limit" validate:"min=1,max=500"`
	ThemeColor  string `json:"theme_color" koanf:"theme_color"`
	Description string `json:"description" koanf:"description"`
}

// DefaultRankingDefinitions returns the built-in leaderboards.
func DefaultRankingDefinitions() []RankingDefinition {
	return []RankingDefinition{
		{
			Type:        RankingTrending,
			DisplayName: "Trending",
			PeriodType:  PeriodWeekly,
			ItemType:    ItemTypeEbook,
			Limit:       100,
			ThemeColor:  "#FF6B35",
			Description: "Most read this week",
		},
		{
			Type:        RankingHotSearch,
			DisplayName: "Hot Search",
			PeriodType:  PeriodDaily,
			ItemType:    ItemTypeEbook,
			Limit:       50,
			ThemeColor:  "#E63946",
			Description: "What readers are searching for today",
		},
		{
			Type:        RankingNewBooks,
			DisplayName: "New Releases",
			PeriodType:  PeriodMonthly,
			ItemType:    ItemTypeEbook,
			Limit:       100,
			ThemeColor:  "#2A9D8F",
			Description: "Fresh arrivals worth a look",
		},
		{
			Type:        RankingFiction,
			DisplayName: "Fiction",
			PeriodType:  PeriodWeekly,
			ItemType:    ItemTypeEbook,
			CategoryID:  "fiction",
			Limit:       100,
			ThemeColor:  "#6A4C93",
			Description: "Top fiction by popularity, readers and rating",
		},
		{
			Type:        RankingNonFiction,
			DisplayName: "Non-Fiction",
			PeriodType:  PeriodWeekly,
			ItemType:    ItemTypeEbook,
			CategoryID:  "non_fiction",
			Limit:       100,
			ThemeColor:  "#1982C4",
			Description: "Top non-fiction by popularity, readers and rating",
		},
		{
			Type:        RankingTop200,
			DisplayName: "Top 200",
			PeriodType:  PeriodAllTime,
			ItemType:    ItemTypeEbook,
			Limit:       200,
			ThemeColor:  "#FFCA3A",
			Description: "The all-time chart",
		},
		{
			Type:        RankingMasterpiece,
			DisplayName: "Masterpieces",
			PeriodType:  PeriodAllTime,
			ItemType:    ItemTypeEbook,
			Limit:       100,
			ThemeColor:  "#8D0801",
			Description: "Highest rated books with a credible number of ratings",
		},
	}
}

// EvaluationTag is a badge derived purely from an item's average rating.
type EvaluationTag string

// EvaluationTag constants.
const (
	EvaluationNone          EvaluationTag = ""
	EvaluationWorthReading  EvaluationTag = "worth_reading"
	EvaluationHighlyPraised EvaluationTag = "highly_praised"
	EvaluationMasterpiece   EvaluationTag = "masterpiece"
)

// EvaluationTagFor maps a 0-10 rating to its badge.
func EvaluationTagFor(rating float64) EvaluationTag {
	switch {
	case rating >= 9.5:
		return EvaluationMasterpiece
	case rating >= 9.0:
		return EvaluationHighlyPraised
	case rating >= 8.0:
		return EvaluationWorthReading
	default:
		return EvaluationNone
	}
}

// RankingSnapshot is one computed instance of a ranking type.
// Only IsActive changes after creation.
type RankingSnapshot struct {
	ID          string      `json:"id"`
	Type        RankingType `json:"type"`
	PeriodStart time.Time   `json:"period_start"`
	PeriodEnd   time.Time   `json:"period_end"`
	ComputedAt  time.Time   `json:"computed_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	IsActive    bool        `json:"is_active"`
}

// RankingEntry is one ranked item within a snapshot.
// PreviousRank is 0 when the item was absent from the prior snapshot.
type RankingEntry struct {
	SnapshotID    string        `json:"snapshot_id"`
	ItemID        string        `json:"item_id"`
	ItemType      ItemType      `json:"item_type"`
	Rank          int           `json:"rank"`
	PreviousRank  int           `json:"previous_rank,omitempty"`
	RankChange    int           `json:"rank_change"`
	Score         float64       `json:"score"`
	ReaderCount   int64         `json:"reader_count"`
	Rating        float64       `json:"rating"`
	EvaluationTag EvaluationTag `json:"evaluation_tag,omitempty"`
}

// IsNew reports whether the entry did not appear in the previous snapshot.
func (e *RankingEntry) IsNew() bool {
	return e.PreviousRank == 0
}

// SnapshotResult summarizes one ranking computation.
// Skipped is set when no candidates qualified and the prior snapshot was kept.
type SnapshotResult struct {
	SnapshotID string      `json:"snapshot_id,omitempty"`
	Type       RankingType `json:"type"`
	ItemCount  int         `json:"item_count"`
	ComputedAt time.Time   `json:"computed_at"`
	Skipped    bool        `json:"skipped,omitempty"`
}

// RankingView is the read model of a ranking type's active snapshot.
// Computed is false when no snapshot exists yet; RetryHint then tells the
// caller when to try again.
type RankingView struct {
	Definition RankingDefinition `json:"definition"`
	Snapshot   *RankingSnapshot  `json:"snapshot,omitempty"`
	Entries    []RankingEntry    `json:"entries"`
	Computed   bool              `json:"computed"`
	RetryHint  string            `json:"retry_hint,omitempty"`
}
