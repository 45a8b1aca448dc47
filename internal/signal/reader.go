// Package signal defines the read-only queries the engine runs against the
// catalog, reading activity and social graph.
package signal

import (
	"context"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

// Reader is the narrow read interface supplied by the data layer.
// Implementations must return empty slices, not errors, for "no rows".
type Reader interface {
	// FetchReadingActivity aggregates reading sessions per item inside the window.
	FetchReadingActivity(ctx context.Context, itemType domain.ItemType, window domain.Window) ([]domain.ReadingActivity, error)
	// FetchSearchActivity aggregates searches per item inside the window.
	FetchSearchActivity(ctx context.Context, itemType domain.ItemType, window domain.Window) ([]domain.SearchActivity, error)
	FetchItemMetadata(ctx context.Context, itemIDs []string) ([]domain.ItemMetadata, error)
	FetchItemStats(ctx context.Context, itemType domain.ItemType, itemIDs []string) ([]domain.ItemStats, error)
	// FetchTopRated returns items whose stats already meet the rating and count floors.
	FetchTopRated(ctx context.Context, itemType domain.ItemType, minRating float64, minRatingCount int64, limit int) ([]domain.ItemStats, error)
	ListCatalog(ctx context.Context, q domain.CatalogQuery) ([]domain.ItemMetadata, error)
	ListItemIDs(ctx context.Context, itemType domain.ItemType) ([]string, error)

	FetchUserReadHistory(ctx context.Context, userID string) (*domain.ReadHistory, error)
	FetchUserSocialGraph(ctx context.Context, userID string) (*domain.SocialGraph, error)
	// ListActiveUsers returns users with reading activity since the given time.
	ListActiveUsers(ctx context.Context, since time.Time) ([]string, error)

	// FetchCoOccurringReaders returns the users who engaged with the item.
	FetchCoOccurringReaders(ctx context.Context, itemID string) ([]string, error)
	// FetchItemsReadByUsers counts, per item of itemType, how many of the users engaged with it.
	FetchItemsReadByUsers(ctx context.Context, itemType domain.ItemType, userIDs []string) ([]domain.ItemUserCount, error)
	// FetchItemsCurrentlyReadByUsers counts, per item, how many of the users are reading it now.
	FetchItemsCurrentlyReadByUsers(ctx context.Context, userIDs []string) ([]domain.ItemUserCount, error)
}

// MetadataByID indexes metadata rows by item ID.
func MetadataByID(rows []domain.ItemMetadata) map[string]domain.ItemMetadata {
	m := make(map[string]domain.ItemMetadata, len(rows))
	for _, r := range rows {
		m[r.ItemID] = r
	}
	return m
}

// StatsByID indexes stats rows by item ID.
func StatsByID(rows []domain.ItemStats) map[string]domain.ItemStats {
	m := make(map[string]domain.ItemStats, len(rows))
	for _, r := range rows {
		m[r.ItemID] = r
	}
	return m
}
