package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/signal"
)

// source produces candidates for one reason family. Sources do not filter
// items the user already engaged with; that happens after the join.
type source func(ctx context.Context, p *userProfile, opts domain.GenerateOptions, now time.Time) ([]domain.Candidate, error)

// sources returns the generators in dedup priority order.
func (a *Assembler) sources() []source {
	return []source{
		a.similarToReading,
		a.sameAuthor,
		a.popularInCategory,
		a.friendsReading,
		a.trendingAndNew,
		a.highRating,
	}
}

// similarToReading follows relatedness edges out of the user's current and
// most recent reads.
func (a *Assembler) similarToReading(ctx context.Context, p *userProfile, _ domain.GenerateOptions, _ time.Time) ([]domain.Candidate, error) {
	w := a.scorer.Weights().Recommendation

	seeds := engagedOrder(&p.UserContext)
	if len(seeds) > w.SimilarSources {
		seeds = seeds[:w.SimilarSources]
	}

	var out []domain.Candidate
	for _, seed := range seeds {
		edges, err := a.related.GetRelatedItems(ctx, seed, "", w.SimilarPerSource)
		if err != nil {
			return nil, fmt.Errorf("related items of %s: %w", seed, err)
		}
		title := p.engaged[seed].Title
		if title == "" {
			title = seed
		}
		for _, e := range edges {
			out = append(out, domain.Candidate{
				ItemID:       e.RelatedItem,
				ItemType:     e.SourceItemType,
				Score:        a.scorer.Similar(e.SimilarityScore),
				ReasonType:   domain.ReasonSimilarToRead,
				Reason:       fmt.Sprintf("Because you read %s", title),
				SourceItemID: seed,
			})
		}
	}
	return out, nil
}

func (a *Assembler) sameAuthor(ctx context.Context, p *userProfile, _ domain.GenerateOptions, _ time.Time) ([]domain.Candidate, error) {
	w := a.scorer.Weights().Recommendation

	authors := p.FavoriteAuthors
	if len(authors) > w.AuthorCount {
		authors = authors[:w.AuthorCount]
	}

	var out []domain.Candidate
	for _, author := range authors {
		items, err := a.signals.ListCatalog(ctx, domain.CatalogQuery{
			Author:  author,
			OrderBy: domain.CatalogOrderPopularity,
			Limit:   w.AuthorPerSource,
		})
		if err != nil {
			return nil, fmt.Errorf("books by %s: %w", author, err)
		}
		// Popularity only refines the score; without it every book scores the base.
		stats, err := a.statsFor(ctx, items)
		if err != nil {
			a.logger.Warn("author stats unavailable, using base score",
				"user_id", p.UserID, "author", author, "error", err)
			stats = map[string]domain.ItemStats{}
		}
		for _, it := range items {
			out = append(out, domain.Candidate{
				ItemID:     it.ItemID,
				ItemType:   it.ItemType,
				Score:      a.scorer.SameAuthor(stats[it.ItemID].PopularityScore),
				ReasonType: domain.ReasonSameAuthor,
				Reason:     fmt.Sprintf("More by %s", author),
			})
		}
	}
	return out, nil
}

func (a *Assembler) popularInCategory(ctx context.Context, p *userProfile, _ domain.GenerateOptions, _ time.Time) ([]domain.Candidate, error) {
	w := a.scorer.Weights().Recommendation

	categories := p.PreferredCategories
	if len(categories) > w.CategoryCount {
		categories = categories[:w.CategoryCount]
	}

	var out []domain.Candidate
	for _, category := range categories {
		items, err := a.signals.ListCatalog(ctx, domain.CatalogQuery{
			CategoryID: category,
			OrderBy:    domain.CatalogOrderTrending,
			Limit:      w.CategoryPerSource,
		})
		if err != nil {
			return nil, fmt.Errorf("popular in %s: %w", category, err)
		}
		for _, it := range items {
			score := a.scorer.PopularInCategory(it.TrendingScore)
			if score <= 0 {
				continue
			}
			out = append(out, domain.Candidate{
				ItemID:     it.ItemID,
				ItemType:   it.ItemType,
				Score:      score,
				ReasonType: domain.ReasonPopularInCategory,
				Reason:     fmt.Sprintf("Popular in %s", category),
			})
		}
	}
	return out, nil
}

func (a *Assembler) friendsReading(ctx context.Context, p *userProfile, _ domain.GenerateOptions, _ time.Time) ([]domain.Candidate, error) {
	if len(p.FollowingUserIDs) == 0 {
		return nil, nil
	}

	counts, err := a.signals.FetchItemsCurrentlyReadByUsers(ctx, p.FollowingUserIDs)
	if err != nil {
		return nil, fmt.Errorf("items read by followed users: %w", err)
	}
	if len(counts) == 0 {
		return nil, nil
	}

	ids := make([]string, len(counts))
	for i, c := range counts {
		ids[i] = c.ItemID
	}
	meta, err := a.signals.FetchItemMetadata(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("metadata for friends' items: %w", err)
	}
	byID := signal.MetadataByID(meta)

	out := make([]domain.Candidate, 0, len(counts))
	for _, c := range counts {
		m, ok := byID[c.ItemID]
		if !ok {
			continue
		}
		reason := "Someone you follow is reading this"
		if c.UserCount > 1 {
			reason = fmt.Sprintf("%d people you follow are reading this", c.UserCount)
		}
		out = append(out, domain.Candidate{
			ItemID:     c.ItemID,
			ItemType:   m.ItemType,
			Score:      a.scorer.FriendsReading(c.UserCount),
			ReasonType: domain.ReasonFriendActivity,
			Reason:     reason,
		})
	}
	return out, nil
}

// trendingAndNew scales the catalog's trending score down and adds a
// new-release bonus. Recent items in a preferred category are reported as
// new_in_category.
func (a *Assembler) trendingAndNew(ctx context.Context, p *userProfile, _ domain.GenerateOptions, now time.Time) ([]domain.Candidate, error) {
	weights := a.scorer.Weights()

	items, err := a.signals.ListCatalog(ctx, domain.CatalogQuery{
		OrderBy: domain.CatalogOrderTrending,
		Limit:   weights.Recommendation.TrendingCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("trending catalog: %w", err)
	}

	out := make([]domain.Candidate, 0, len(items))
	for _, it := range items {
		age := now.Sub(it.CreatedAt)
		preferred := p.PrefersCategory(it.CategoryID)
		score := a.scorer.TrendingCandidate(it.TrendingScore, age, preferred)
		if score <= 0 {
			continue
		}

		c := domain.Candidate{
			ItemID:     it.ItemID,
			ItemType:   it.ItemType,
			Score:      score,
			ReasonType: domain.ReasonTrending,
			Reason:     "Trending now",
		}
		if preferred && age < weights.Ranking.NewReleaseHorizon {
			c.ReasonType = domain.ReasonNewInCategory
			c.Reason = fmt.Sprintf("New in %s", it.CategoryID)
		}
		out = append(out, c)
	}
	return out, nil
}

// highRating proposes credible, highly rated items of every item type.
// opts.MinRating raises or lowers the rating floor; the count floor is fixed.
func (a *Assembler) highRating(ctx context.Context, _ *userProfile, opts domain.GenerateOptions, _ time.Time) ([]domain.Candidate, error) {
	w := a.scorer.Weights().Recommendation
	floor := w.HighRatingFloor
	if opts.MinRating > 0 {
		floor = opts.MinRating
	}

	var out []domain.Candidate
	for _, itemType := range domain.AllItemTypes() {
		rows, err := a.signals.FetchTopRated(ctx, itemType, floor, w.HighRatingMinCount, w.RatingCandidates)
		if err != nil {
			return nil, fmt.Errorf("top rated %s: %w", itemType, err)
		}
		for _, st := range rows {
			score, ok := a.scorer.HighRating(st, floor)
			if !ok {
				continue
			}
			out = append(out, domain.Candidate{
				ItemID:     st.ItemID,
				ItemType:   itemType,
				Score:      score,
				ReasonType: domain.ReasonHighRating,
				Reason:     fmt.Sprintf("Rated %.1f by %d readers", st.AverageRating, st.RatingCount),
			})
		}
	}
	return out, nil
}

// statsFor loads stats for catalog rows, grouped by item type.
func (a *Assembler) statsFor(ctx context.Context, items []domain.ItemMetadata) (map[string]domain.ItemStats, error) {
	byType := make(map[domain.ItemType][]string)
	for _, it := range items {
		byType[it.ItemType] = append(byType[it.ItemType], it.ItemID)
	}

	out := make(map[string]domain.ItemStats, len(items))
	for _, itemType := range domain.AllItemTypes() {
		ids := byType[itemType]
		if len(ids) == 0 {
			continue
		}
		rows, err := a.signals.FetchItemStats(ctx, itemType, ids)
		if err != nil {
			return nil, fmt.Errorf("%s stats: %w", itemType, err)
		}
		for _, r := range rows {
			out[r.ItemID] = r
		}
	}
	return out, nil
}
