package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

func makeTestEdge(source, related string, relation domain.RelationType, sim, conf float64, at time.Time) domain.RelatedItemEdge {
	return domain.RelatedItemEdge{
		SourceItem:      source,
		SourceItemType:  domain.ItemTypeEbook,
		RelatedItem:     related,
		RelationType:    relation,
		SimilarityScore: sim,
		Confidence:      conf,
		ComputedAt:      at,
	}
}

func TestUpsertRelatedEdges_MergesWithMax(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now().Add(-time.Hour)
	t1 := time.Now()

	err := s.UpsertRelatedEdges(ctx, []domain.RelatedItemEdge{
		makeTestEdge("a", "b", domain.RelationReadersAlsoRead, 0.7, 0.3, t0),
	})
	if err != nil {
		t.Fatalf("UpsertRelatedEdges first: %v", err)
	}

	// Lower similarity, higher confidence, newer timestamp.
	err = s.UpsertRelatedEdges(ctx, []domain.RelatedItemEdge{
		makeTestEdge("a", "b", domain.RelationReadersAlsoRead, 0.5, 0.8, t1),
	})
	if err != nil {
		t.Fatalf("UpsertRelatedEdges second: %v", err)
	}

	edges, err := s.ListRelatedEdges(ctx, "a")
	if err != nil {
		t.Fatalf("ListRelatedEdges: %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("edges: got %d, want 1", len(edges))
	}
	e := edges[0]
	if e.SimilarityScore != 0.7 {
		t.Errorf("similarity: got %v, want 0.7", e.SimilarityScore)
	}
	if e.Confidence != 0.8 {
		t.Errorf("confidence: got %v, want 0.8", e.Confidence)
	}
	if !e.ComputedAt.Equal(t1) {
		t.Errorf("computed_at: got %v, want %v", e.ComputedAt, t1)
	}
}

func TestUpsertRelatedEdges_KeyIncludesRelation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	err := s.UpsertRelatedEdges(ctx, []domain.RelatedItemEdge{
		makeTestEdge("a", "b", domain.RelationSameAuthor, 0.9, 0.9, now),
		makeTestEdge("a", "b", domain.RelationSameCategory, 0.4, 0.6, now),
		makeTestEdge("a", "c", domain.RelationSameCategory, 0.6, 0.6, now),
	})
	if err != nil {
		t.Fatalf("UpsertRelatedEdges: %v", err)
	}

	all, err := s.GetRelatedItems(ctx, "a", "", 0)
	if err != nil {
		t.Fatalf("GetRelatedItems: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("edges: got %d, want 3", len(all))
	}
	if all[0].RelatedItem != "b" || all[0].RelationType != domain.RelationSameAuthor {
		t.Errorf("strongest edge: got %+v", all[0])
	}

	cat, err := s.GetRelatedItems(ctx, "a", domain.RelationSameCategory, 1)
	if err != nil {
		t.Fatalf("GetRelatedItems category: %v", err)
	}
	if len(cat) != 1 || cat[0].RelatedItem != "c" {
		t.Errorf("category edges: got %+v", cat)
	}
}

func TestUpsertRelatedEdges_SkipsSelfEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertRelatedEdges(ctx, []domain.RelatedItemEdge{
		makeTestEdge("a", "a", domain.RelationSameAuthor, 0.9, 0.9, time.Now()),
	})
	if err != nil {
		t.Fatalf("UpsertRelatedEdges: %v", err)
	}

	edges, err := s.ListRelatedEdges(ctx, "a")
	if err != nil {
		t.Fatalf("ListRelatedEdges: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected no self edges, got %d", len(edges))
	}
}

func TestGetRelatedItems_Empty(t *testing.T) {
	s := newTestStore(t)

	edges, err := s.GetRelatedItems(context.Background(), "missing", "", 10)
	if err != nil {
		t.Fatalf("GetRelatedItems: %v", err)
	}
	if edges == nil || len(edges) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", edges)
	}
}
