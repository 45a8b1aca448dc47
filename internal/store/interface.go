// Package store defines the persistence interfaces for the ranking and recommendation engine.
package store

import (
	"context"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

// RankingStore persists ranking snapshots and their entries.
type RankingStore interface {
	// SwapActiveSnapshot deactivates every snapshot of the same type and inserts
	// snap (active) with its entries, all in one transaction. Readers never see
	// zero or two active snapshots for a type.
	SwapActiveSnapshot(ctx context.Context, snap *domain.RankingSnapshot, entries []domain.RankingEntry) error
	// GetActiveSnapshot returns ErrNotFound when the type has never been computed.
	GetActiveSnapshot(ctx context.Context, rankingType domain.RankingType) (*domain.RankingSnapshot, error)
	// GetLatestSnapshot returns the most recently computed snapshot, active or not.
	GetLatestSnapshot(ctx context.Context, rankingType domain.RankingType) (*domain.RankingSnapshot, error)
	// GetSnapshotEntries returns entries ordered by rank.
	GetSnapshotEntries(ctx context.Context, snapshotID string) ([]domain.RankingEntry, error)
	CountActiveSnapshots(ctx context.Context, rankingType domain.RankingType) (int, error)
}

// RelatedStore persists the relatedness graph.
type RelatedStore interface {
	// UpsertRelatedEdges merges edges by key, keeping the maximum similarity
	// and confidence and refreshing computed_at.
	UpsertRelatedEdges(ctx context.Context, edges []domain.RelatedItemEdge) error
	// GetRelatedItems returns a source's edges by similarity descending.
	// An empty relation matches every relation type.
	GetRelatedItems(ctx context.Context, sourceItem string, relation domain.RelationType, limit int) ([]domain.RelatedItemEdge, error)
	ListRelatedEdges(ctx context.Context, sourceItem string) ([]domain.RelatedItemEdge, error)
}

// RecommendationStore persists per-user recommendation lists.
type RecommendationStore interface {
	// ReplaceUserRecommendations deletes the user's existing rows and inserts
	// recs in one transaction.
	ReplaceUserRecommendations(ctx context.Context, userID string, recs []domain.UserRecommendation) error
	// ListUserRecommendations returns live (unexpired, undismissed) rows by
	// position. An empty recType matches every type.
	ListUserRecommendations(ctx context.Context, q RecommendationQuery) ([]domain.UserRecommendation, error)
	// HasRecommendations reports whether the user has any rows at all, live or not.
	HasRecommendations(ctx context.Context, userID string) (bool, error)
	MarkViewed(ctx context.Context, ids []string) error
	MarkClicked(ctx context.Context, id string) error
	Dismiss(ctx context.Context, id string) error
}

// Store combines every repository the engine needs.
type Store interface {
	RankingStore
	RelatedStore
	RecommendationStore
	Close() error
}
