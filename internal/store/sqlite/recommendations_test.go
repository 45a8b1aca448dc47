package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/store"
)

func makeTestRecommendation(id, userID, itemID string, reason domain.ReasonType, position int, now time.Time) domain.UserRecommendation {
	return domain.UserRecommendation{
		ID:                 id,
		UserID:             userID,
		ItemID:             itemID,
		ItemType:           domain.ItemTypeEbook,
		RecommendationType: reason.RecommendationType(),
		ReasonType:         reason,
		Reason:             "because",
		Score:              float64(100 - position),
		Position:           position,
		CreatedAt:          now,
		ExpiresAt:          now.Add(7 * 24 * time.Hour),
	}
}

func TestReplaceUserRecommendations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	source := "seed-book"
	first := makeTestRecommendation("rec-1", "user-1", "a", domain.ReasonSimilarToRead, 0, now)
	first.SourceItemID = &source
	recs := []domain.UserRecommendation{
		first,
		makeTestRecommendation("rec-2", "user-1", "b", domain.ReasonHighRating, 1, now),
	}
	if err := s.ReplaceUserRecommendations(ctx, "user-1", recs); err != nil {
		t.Fatalf("ReplaceUserRecommendations: %v", err)
	}

	got, err := s.ListUserRecommendations(ctx, store.RecommendationQuery{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListUserRecommendations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(got))
	}
	if got[0].ItemID != "a" || got[0].SourceItemID == nil || *got[0].SourceItemID != source {
		t.Errorf("first: got %+v", got[0])
	}
	if got[1].SourceItemID != nil {
		t.Errorf("second should have no source item, got %q", *got[1].SourceItemID)
	}

	// Replacing drops the previous list entirely.
	if err := s.ReplaceUserRecommendations(ctx, "user-1", []domain.UserRecommendation{
		makeTestRecommendation("rec-3", "user-1", "c", domain.ReasonTrending, 0, now),
	}); err != nil {
		t.Fatalf("ReplaceUserRecommendations second: %v", err)
	}

	got, err = s.ListUserRecommendations(ctx, store.RecommendationQuery{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListUserRecommendations: %v", err)
	}
	if len(got) != 1 || got[0].ID != "rec-3" {
		t.Errorf("after replace: got %+v", got)
	}
}

func TestReplaceUserRecommendations_RejectsForeignRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.ReplaceUserRecommendations(ctx, "user-1", []domain.UserRecommendation{
		makeTestRecommendation("rec-1", "user-1", "a", domain.ReasonTrending, 0, now),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := s.ReplaceUserRecommendations(ctx, "user-1", []domain.UserRecommendation{
		makeTestRecommendation("rec-2", "user-2", "b", domain.ReasonTrending, 0, now),
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	// The failed replace rolled back; the original row is still there.
	got, err := s.ListUserRecommendations(ctx, store.RecommendationQuery{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListUserRecommendations: %v", err)
	}
	if len(got) != 1 || got[0].ID != "rec-1" {
		t.Errorf("after failed replace: got %+v", got)
	}
}

func TestListUserRecommendations_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	expired := makeTestRecommendation("rec-old", "user-1", "old", domain.ReasonTrending, 3, now.Add(-8*24*time.Hour))
	recs := []domain.UserRecommendation{
		makeTestRecommendation("rec-1", "user-1", "a", domain.ReasonSimilarToRead, 0, now),
		makeTestRecommendation("rec-2", "user-1", "b", domain.ReasonTrending, 1, now),
		makeTestRecommendation("rec-3", "user-1", "c", domain.ReasonTrending, 2, now),
		expired,
	}
	if err := s.ReplaceUserRecommendations(ctx, "user-1", recs); err != nil {
		t.Fatalf("ReplaceUserRecommendations: %v", err)
	}
	if err := s.Dismiss(ctx, "rec-2"); err != nil {
		t.Fatalf("Dismiss: %v", err)
	}

	got, err := s.ListUserRecommendations(ctx, store.RecommendationQuery{UserID: "user-1", Now: now})
	if err != nil {
		t.Fatalf("ListUserRecommendations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("live recommendations: got %d, want 2", len(got))
	}
	if got[0].ID != "rec-1" || got[1].ID != "rec-3" {
		t.Errorf("order: got %s, %s", got[0].ID, got[1].ID)
	}

	trending, err := s.ListUserRecommendations(ctx, store.RecommendationQuery{
		UserID: "user-1",
		Type:   domain.RecommendationTrending,
		Now:    now,
	})
	if err != nil {
		t.Fatalf("ListUserRecommendations trending: %v", err)
	}
	if len(trending) != 1 || trending[0].ID != "rec-3" {
		t.Errorf("trending filter: got %+v", trending)
	}

	paged, err := s.ListUserRecommendations(ctx, store.RecommendationQuery{UserID: "user-1", Limit: 1, Offset: 1, Now: now})
	if err != nil {
		t.Fatalf("ListUserRecommendations paged: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != "rec-3" {
		t.Errorf("paged: got %+v", paged)
	}

	has, err := s.HasRecommendations(ctx, "user-1")
	if err != nil {
		t.Fatalf("HasRecommendations: %v", err)
	}
	if !has {
		t.Error("expected user-1 to have recommendations")
	}
	has, err = s.HasRecommendations(ctx, "user-2")
	if err != nil {
		t.Fatalf("HasRecommendations: %v", err)
	}
	if has {
		t.Error("expected user-2 to have no recommendations")
	}
}

func TestRecommendationFlagsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.ReplaceUserRecommendations(ctx, "user-1", []domain.UserRecommendation{
		makeTestRecommendation("rec-1", "user-1", "a", domain.ReasonSameAuthor, 0, now),
		makeTestRecommendation("rec-2", "user-1", "b", domain.ReasonSameAuthor, 1, now),
	}); err != nil {
		t.Fatalf("ReplaceUserRecommendations: %v", err)
	}

	if err := s.MarkViewed(ctx, []string{"rec-1", "rec-2", "rec-unknown"}); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}
	if err := s.MarkClicked(ctx, "rec-2"); err != nil {
		t.Fatalf("MarkClicked: %v", err)
	}

	got, err := s.ListUserRecommendations(ctx, store.RecommendationQuery{UserID: "user-1"})
	if err != nil {
		t.Fatalf("ListUserRecommendations: %v", err)
	}
	if !got[0].IsViewed || got[0].IsClicked || got[0].IsDismissed {
		t.Errorf("rec-1 flags: %+v", got[0])
	}
	if !got[1].IsViewed || !got[1].IsClicked || got[1].IsDismissed {
		t.Errorf("rec-2 flags: %+v", got[1])
	}

	if err := s.MarkClicked(ctx, "rec-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("MarkClicked missing: expected ErrNotFound, got %v", err)
	}
	if err := s.Dismiss(ctx, "rec-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Dismiss missing: expected ErrNotFound, got %v", err)
	}
	if err := s.MarkViewed(ctx, nil); err != nil {
		t.Errorf("MarkViewed empty: %v", err)
	}
}
