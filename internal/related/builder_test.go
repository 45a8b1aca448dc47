package related

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/errors"
	"github.com/logan676/booklibrio-engine/internal/scoring"
	"github.com/logan676/booklibrio-engine/internal/signal"
	"github.com/logan676/booklibrio-engine/internal/store/sqlite"
)

func setupTestBuilder(t *testing.T) (*Builder, *sqlite.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	testStore, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { testStore.Close() })

	b := NewBuilder(testStore, testStore, scoring.New(scoring.DefaultWeights()), Config{Concurrency: 2, UnitTimeout: 5 * time.Second}, logger)
	return b, testStore
}

func createTestBook(t *testing.T, s *sqlite.Store, id, author, category string, trending float64) {
	t.Helper()
	err := s.UpsertBook(context.Background(), domain.ItemMetadata{
		ItemID:        id,
		ItemType:      domain.ItemTypeEbook,
		Title:         "Book " + id,
		Author:        author,
		CategoryID:    category,
		CreatedAt:     time.Now().AddDate(0, -1, 0),
		TrendingScore: trending,
	})
	require.NoError(t, err)
}

func shelve(t *testing.T, s *sqlite.Store, userID string, bookIDs ...string) {
	t.Helper()
	for _, id := range bookIDs {
		require.NoError(t, s.SetShelfStatus(context.Background(), userID, id, sqlite.ShelfRead, time.Now()))
	}
}

func edgeByKey(edges []domain.RelatedItemEdge) map[string]domain.RelatedItemEdge {
	m := make(map[string]domain.RelatedItemEdge, len(edges))
	for _, e := range edges {
		m[e.EdgeKey()] = e
	}
	return m
}

func TestComputeRelatedItems_AllRelations(t *testing.T) {
	b, s := setupTestBuilder(t)
	ctx := context.Background()

	createTestBook(t, s, "A", "Le Guin", "fiction", 10)
	createTestBook(t, s, "B", "Le Guin", "fiction", 50)
	createTestBook(t, s, "C", "Herbert", "fiction", 0)
	createTestBook(t, s, "D", "Harari", "history", 30)

	// Four readers of A; three of them also read D, one read C.
	shelve(t, s, "u1", "A", "D")
	shelve(t, s, "u2", "A", "D")
	shelve(t, s, "u3", "A", "D", "C")
	shelve(t, s, "u4", "A")

	edges, err := b.ComputeRelatedItems(ctx, domain.ItemTypeEbook, "A")
	require.NoError(t, err)

	byKey := edgeByKey(edges)

	author, ok := byKey["A:B:same_author"]
	require.True(t, ok, "expected same_author edge to B")
	assert.Equal(t, 0.9, author.SimilarityScore)
	assert.Equal(t, 0.9, author.Confidence)

	category, ok := byKey["A:B:same_category"]
	require.True(t, ok, "expected same_category edge to B")
	assert.InDelta(t, 0.5, category.SimilarityScore, 1e-9)
	assert.Equal(t, 0.6, category.Confidence)

	// C has no trending signal, so no category edge; it has one co-reader, below the floor.
	_, ok = byKey["A:C:same_category"]
	assert.False(t, ok)
	_, ok = byKey["A:C:readers_also_read"]
	assert.False(t, ok)

	coRead, ok := byKey["A:D:readers_also_read"]
	require.True(t, ok, "expected readers_also_read edge to D")
	assert.InDelta(t, 0.75, coRead.SimilarityScore, 1e-9)
	assert.InDelta(t, 0.4, coRead.Confidence, 1e-9)

	for _, e := range edges {
		assert.NotEqual(t, "A", e.RelatedItem, "no self edges")
		assert.Equal(t, domain.ItemTypeEbook, e.SourceItemType)
	}

	stored, err := s.ListRelatedEdges(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, stored, len(edges))
}

func TestComputeRelatedItems_DirectAndBatchAgree(t *testing.T) {
	b, s := setupTestBuilder(t)
	ctx := context.Background()

	createTestBook(t, s, "A", "Le Guin", "fiction", 10)
	createTestBook(t, s, "B", "Le Guin", "fiction", 50)
	shelve(t, s, "u1", "A", "B")
	shelve(t, s, "u2", "A", "B")

	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	direct, err := b.ComputeRelatedItems(ctx, domain.ItemTypeEbook, "A")
	require.NoError(t, err)

	result, err := b.ComputeAllRelatedItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.Failed)

	stored, err := s.ListRelatedEdges(ctx, "A")
	require.NoError(t, err)

	directByKey := edgeByKey(direct)
	require.Len(t, stored, len(direct))
	for _, e := range stored {
		d, ok := directByKey[e.EdgeKey()]
		require.True(t, ok, "unexpected edge %s", e.EdgeKey())
		assert.Equal(t, d.SimilarityScore, e.SimilarityScore)
		assert.Equal(t, d.Confidence, e.Confidence)
		assert.True(t, d.ComputedAt.Equal(e.ComputedAt))
	}
}

func TestComputeRelatedItems_NeverDecreasesSimilarity(t *testing.T) {
	b, s := setupTestBuilder(t)
	ctx := context.Background()

	createTestBook(t, s, "A", "", "", 0)
	createTestBook(t, s, "D", "", "", 0)

	shelve(t, s, "u1", "A", "D")
	shelve(t, s, "u2", "A", "D")
	shelve(t, s, "u3", "A")
	shelve(t, s, "u4", "A")

	_, err := b.ComputeRelatedItems(ctx, domain.ItemTypeEbook, "A")
	require.NoError(t, err)
	first := edgeByKey(mustEdges(t, s, "A"))["A:D:readers_also_read"]
	assert.InDelta(t, 0.5, first.SimilarityScore, 1e-9)

	// More evidence: a third co-reader raises similarity.
	shelve(t, s, "u3", "D")
	_, err = b.ComputeRelatedItems(ctx, domain.ItemTypeEbook, "A")
	require.NoError(t, err)
	second := edgeByKey(mustEdges(t, s, "A"))["A:D:readers_also_read"]
	assert.InDelta(t, 0.75, second.SimilarityScore, 1e-9)

	// Diluted evidence: more readers of A without D would lower the ratio,
	// but the stored edge keeps its maximum.
	shelve(t, s, "u5", "A")
	shelve(t, s, "u6", "A")
	_, err = b.ComputeRelatedItems(ctx, domain.ItemTypeEbook, "A")
	require.NoError(t, err)
	third := edgeByKey(mustEdges(t, s, "A"))["A:D:readers_also_read"]
	assert.GreaterOrEqual(t, third.SimilarityScore, second.SimilarityScore)
	assert.False(t, third.ComputedAt.Before(second.ComputedAt))
}

func mustEdges(t *testing.T, s *sqlite.Store, source string) []domain.RelatedItemEdge {
	t.Helper()
	edges, err := s.ListRelatedEdges(context.Background(), source)
	require.NoError(t, err)
	return edges
}

func TestComputeRelatedItems_UnknownItem(t *testing.T) {
	b, _ := setupTestBuilder(t)

	_, err := b.ComputeRelatedItems(context.Background(), domain.ItemTypeEbook, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = b.ComputeRelatedItems(context.Background(), "comic", "missing")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestMergeEdges_KeepsMaxAndOrder(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(time.Minute)

	merged := mergeEdges(
		[]domain.RelatedItemEdge{
			{SourceItem: "A", RelatedItem: "B", RelationType: domain.RelationSameAuthor, SimilarityScore: 0.4, Confidence: 0.9, ComputedAt: t0},
			{SourceItem: "A", RelatedItem: "C", RelationType: domain.RelationSameAuthor, SimilarityScore: 0.2, Confidence: 0.1, ComputedAt: t0},
		},
		[]domain.RelatedItemEdge{
			{SourceItem: "A", RelatedItem: "B", RelationType: domain.RelationSameAuthor, SimilarityScore: 0.6, Confidence: 0.3, ComputedAt: t1},
		},
	)

	require.Len(t, merged, 2)
	assert.Equal(t, "B", merged[0].RelatedItem)
	assert.Equal(t, 0.6, merged[0].SimilarityScore)
	assert.Equal(t, 0.9, merged[0].Confidence)
	assert.True(t, merged[0].ComputedAt.Equal(t1))
	assert.Equal(t, "C", merged[1].RelatedItem)
}

// failingReader fails metadata lookups for a single item.
type failingReader struct {
	signal.Reader
	failID string
}

func (f *failingReader) FetchItemMetadata(ctx context.Context, ids []string) ([]domain.ItemMetadata, error) {
	for _, id := range ids {
		if id == f.failID {
			return nil, errors.SignalUnavailable(context.DeadlineExceeded, "item_metadata")
		}
	}
	return f.Reader.FetchItemMetadata(ctx, ids)
}

func TestComputeAllRelatedItems_PartialFailure(t *testing.T) {
	_, s := setupTestBuilder(t)
	ctx := context.Background()

	createTestBook(t, s, "A", "Le Guin", "fiction", 10)
	createTestBook(t, s, "B", "Le Guin", "fiction", 50)
	createTestBook(t, s, "C", "Le Guin", "fiction", 20)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBuilder(&failingReader{Reader: s, failID: "B"}, s, scoring.New(scoring.DefaultWeights()), Config{Concurrency: 3}, logger)

	result, err := b.ComputeAllRelatedItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)

	// The failing item left no edges; the others were still written.
	assert.Empty(t, mustEdges(t, s, "B"))
	assert.NotEmpty(t, mustEdges(t, s, "A"))
	assert.NotEmpty(t, mustEdges(t, s, "C"))
}

func TestComputeRelatedItems_RejectsMismatchedType(t *testing.T) {
	b, s := setupTestBuilder(t)
	ctx := context.Background()

	createTestBook(t, s, "A", "Le Guin", "fiction", 10)
	createTestBook(t, s, "B", "Le Guin", "fiction", 50)

	_, err := b.ComputeRelatedItems(ctx, domain.ItemTypeMagazine, "A")
	assert.ErrorIs(t, err, errors.ErrValidation)
	assert.Empty(t, mustEdges(t, s, "A"))
}

func TestComputeRelatedItems_CoReadStaysWithinType(t *testing.T) {
	b, s := setupTestBuilder(t)
	ctx := context.Background()

	createTestBook(t, s, "A", "Le Guin", "fiction", 10)
	createTestBook(t, s, "D", "Harari", "history", 30)
	require.NoError(t, s.UpsertBook(ctx, domain.ItemMetadata{
		ItemID:     "M",
		ItemType:   domain.ItemTypeMagazine,
		Title:      "Monthly",
		CategoryID: "news",
		CreatedAt:  time.Now(),
	}))

	// Every reader of A also read D and the magazine M.
	shelve(t, s, "u1", "A", "D", "M")
	shelve(t, s, "u2", "A", "D", "M")
	shelve(t, s, "u3", "A", "D", "M")

	edges, err := b.ComputeRelatedItems(ctx, domain.ItemTypeEbook, "A")
	require.NoError(t, err)

	byKey := edgeByKey(edges)
	assert.Contains(t, byKey, "A:D:readers_also_read")
	for _, e := range edges {
		assert.NotEqual(t, "M", e.RelatedItem, "cross-type edge %s", e.EdgeKey())
		assert.Equal(t, domain.ItemTypeEbook, e.SourceItemType)
	}
}

// stalledReaders blocks co-reader lookups until the caller gives up.
type stalledReaders struct {
	signal.Reader
}

func (stalledReaders) FetchCoOccurringReaders(ctx context.Context, _ string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestComputeRelatedItems_BoundedByUnitTimeout(t *testing.T) {
	_, s := setupTestBuilder(t)
	createTestBook(t, s, "A", "Le Guin", "fiction", 10)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBuilder(stalledReaders{s}, s, scoring.New(scoring.DefaultWeights()), Config{UnitTimeout: 20 * time.Millisecond}, logger)

	_, err := b.ComputeRelatedItems(context.Background(), domain.ItemTypeEbook, "A")
	require.Error(t, err)
	assert.Equal(t, errors.CodeTimeout, errors.CodeOf(err))
	assert.Empty(t, mustEdges(t, s, "A"))
}
