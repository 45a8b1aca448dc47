package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/errors"
	"github.com/logan676/booklibrio-engine/internal/signal"
)

// candidatePoolFactor sizes catalog queries relative to a ranking's limit.
const candidatePoolFactor = 4

// candidates fetches the type-specific signal set and scores it. Only items
// with a positive score (and, for gated types, passing the credibility gate)
// are returned, in the order the signals were read.
func (m *Manager) candidates(ctx context.Context, def domain.RankingDefinition, window domain.Window, now time.Time) ([]domain.ScoredItem, error) {
	switch def.Type {
	case domain.RankingTrending:
		return m.trendingCandidates(ctx, def, window)
	case domain.RankingHotSearch:
		return m.hotSearchCandidates(ctx, def, window)
	case domain.RankingNewBooks:
		return m.newBookCandidates(ctx, def, now)
	case domain.RankingFiction, domain.RankingNonFiction:
		return m.compositeCandidates(ctx, def, def.CategoryID)
	case domain.RankingTop200:
		return m.compositeCandidates(ctx, def, "")
	case domain.RankingMasterpiece:
		return m.masterpieceCandidates(ctx, def)
	default:
		return nil, errors.Internalf("no candidate generator for ranking type %q", def.Type)
	}
}

func (m *Manager) trendingCandidates(ctx context.Context, def domain.RankingDefinition, window domain.Window) ([]domain.ScoredItem, error) {
	activity, err := m.signals.FetchReadingActivity(ctx, def.ItemType, window)
	if err != nil {
		return nil, fmt.Errorf("reading activity: %w", err)
	}

	ids := make([]string, len(activity))
	for i, a := range activity {
		ids[i] = a.ItemID
	}
	stats := m.optionalStats(ctx, def, ids)

	out := make([]domain.ScoredItem, 0, len(activity))
	for _, a := range activity {
		score := m.scorer.Trending(a)
		if score <= 0 {
			continue
		}
		st := stats[a.ItemID]
		out = append(out, domain.ScoredItem{
			ItemID:      a.ItemID,
			Score:       score,
			ReaderCount: st.TotalReaders,
			Rating:      st.AverageRating,
		})
	}
	return out, nil
}

func (m *Manager) hotSearchCandidates(ctx context.Context, def domain.RankingDefinition, window domain.Window) ([]domain.ScoredItem, error) {
	searches, err := m.signals.FetchSearchActivity(ctx, def.ItemType, window)
	if err != nil {
		return nil, fmt.Errorf("search activity: %w", err)
	}

	ids := make([]string, len(searches))
	for i, s := range searches {
		ids[i] = s.ItemID
	}

	// View counts only break ties; without them searches still rank.
	views := map[string]domain.ItemMetadata{}
	if len(ids) > 0 {
		meta, err := m.signals.FetchItemMetadata(ctx, ids)
		if err != nil {
			m.logger.Warn("item metadata unavailable, scoring without views",
				"ranking_type", def.Type, "error", err)
		} else {
			views = signal.MetadataByID(meta)
		}
	}
	stats := m.optionalStats(ctx, def, ids)

	out := make([]domain.ScoredItem, 0, len(searches))
	for _, s := range searches {
		score := m.scorer.HotSearch(s, views[s.ItemID].ViewCount)
		if score <= 0 {
			continue
		}
		st := stats[s.ItemID]
		out = append(out, domain.ScoredItem{
			ItemID:      s.ItemID,
			Score:       score,
			ReaderCount: st.TotalReaders,
			Rating:      st.AverageRating,
		})
	}
	return out, nil
}

func (m *Manager) newBookCandidates(ctx context.Context, def domain.RankingDefinition, now time.Time) ([]domain.ScoredItem, error) {
	horizon := m.scorer.Weights().Ranking.NewReleaseHorizon

	items, err := m.signals.ListCatalog(ctx, domain.CatalogQuery{
		ItemType:     def.ItemType,
		CategoryID:   def.CategoryID,
		CreatedAfter: now.Add(-horizon),
		OrderBy:      domain.CatalogOrderNewest,
		Limit:        def.Limit * candidatePoolFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("recent catalog: %w", err)
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	stats := m.optionalStats(ctx, def, ids)

	out := make([]domain.ScoredItem, 0, len(items))
	for _, it := range items {
		st := stats[it.ItemID]
		score := m.scorer.NewRelease(now.Sub(it.CreatedAt), st)
		if score <= 0 {
			continue
		}
		out = append(out, domain.ScoredItem{
			ItemID:      it.ItemID,
			Score:       score,
			ReaderCount: st.TotalReaders,
			Rating:      st.AverageRating,
		})
	}
	return out, nil
}

// compositeCandidates ranks catalog items by the popularity/readers/rating
// blend. Stats are load-bearing here: without them nothing can be scored.
func (m *Manager) compositeCandidates(ctx context.Context, def domain.RankingDefinition, categoryID string) ([]domain.ScoredItem, error) {
	items, err := m.signals.ListCatalog(ctx, domain.CatalogQuery{
		ItemType:   def.ItemType,
		CategoryID: categoryID,
		OrderBy:    domain.CatalogOrderPopularity,
		Limit:      def.Limit * candidatePoolFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	rows, err := m.signals.FetchItemStats(ctx, def.ItemType, ids)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	stats := signal.StatsByID(rows)

	out := make([]domain.ScoredItem, 0, len(items))
	for _, it := range items {
		st, ok := stats[it.ItemID]
		if !ok {
			continue
		}
		score := m.scorer.Composite(st)
		if score <= 0 {
			continue
		}
		out = append(out, domain.ScoredItem{
			ItemID:      it.ItemID,
			Score:       score,
			ReaderCount: st.TotalReaders,
			Rating:      st.AverageRating,
		})
	}
	return out, nil
}

// masterpieceCandidates re-applies the credibility gate to whatever the
// reader returns, so a lenient reader can never leak unrated items in.
func (m *Manager) masterpieceCandidates(ctx context.Context, def domain.RankingDefinition) ([]domain.ScoredItem, error) {
	w := m.scorer.Weights().Ranking

	rows, err := m.signals.FetchTopRated(ctx, def.ItemType, w.MasterpieceMinRating, w.MasterpieceMinRatingCount, def.Limit*candidatePoolFactor)
	if err != nil {
		return nil, fmt.Errorf("top rated: %w", err)
	}

	out := make([]domain.ScoredItem, 0, len(rows))
	for _, st := range rows {
		score, ok := m.scorer.Masterpiece(st)
		if !ok {
			continue
		}
		out = append(out, domain.ScoredItem{
			ItemID:      st.ItemID,
			Score:       score,
			ReaderCount: st.TotalReaders,
			Rating:      st.AverageRating,
		})
	}
	return out, nil
}

// optionalStats loads stats used only for display fields. A failed read is
// logged and replaced by empty stats.
func (m *Manager) optionalStats(ctx context.Context, def domain.RankingDefinition, ids []string) map[string]domain.ItemStats {
	if len(ids) == 0 {
		return map[string]domain.ItemStats{}
	}
	rows, err := m.signals.FetchItemStats(ctx, def.ItemType, ids)
	if err != nil {
		m.logger.Warn("item stats unavailable, using defaults",
			"ranking_type", def.Type, "error", err)
		return map[string]domain.ItemStats{}
	}
	return signal.StatsByID(rows)
}
