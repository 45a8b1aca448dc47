package recommend

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/signal"
)

const (
	preferredCategoryCount = 5
	favoriteAuthorCount    = 10
)

// userProfile is the user context plus the metadata it was derived from.
type userProfile struct {
	domain.UserContext
	// engaged indexes metadata of read and currently-reading items.
	engaged map[string]domain.ItemMetadata
}

// buildContext reads the user's history and social graph concurrently, then
// derives preferred categories and favorite authors from the engaged items.
func (a *Assembler) buildContext(ctx context.Context, userID string) (*userProfile, error) {
	var (
		history *domain.ReadHistory
		social  *domain.SocialGraph
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = a.signals.FetchUserReadHistory(gctx, userID)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		social, err = a.signals.FetchUserSocialGraph(gctx, userID)
		if err != nil {
			return fmt.Errorf("social graph: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if history == nil {
		history = &domain.ReadHistory{}
	}
	if social == nil {
		social = &domain.SocialGraph{}
	}

	p := &userProfile{
		UserContext: domain.UserContext{
			UserID:                userID,
			ReadItems:             history.ReadItemIDs,
			CurrentlyReadingItems: history.CurrentlyReadingItemIDs,
			FollowingUserIDs:      social.FollowingUserIDs,
		},
		engaged: map[string]domain.ItemMetadata{},
	}

	// Currently reading first, then read history most recent first, so
	// frequency ties favor what the user is into right now.
	ordered := engagedOrder(&p.UserContext)
	if len(ordered) == 0 {
		return p, nil
	}

	meta, err := a.signals.FetchItemMetadata(ctx, ordered)
	if err != nil {
		return nil, fmt.Errorf("engaged item metadata: %w", err)
	}
	p.engaged = signal.MetadataByID(meta)

	categories := make([]string, 0, len(ordered))
	authors := make([]string, 0, len(ordered))
	for _, id := range ordered {
		m, ok := p.engaged[id]
		if !ok {
			continue
		}
		categories = append(categories, m.CategoryID)
		authors = append(authors, m.Author)
	}
	p.PreferredCategories = topByFrequency(categories, preferredCategoryCount)
	p.FavoriteAuthors = topByFrequency(authors, favoriteAuthorCount)

	return p, nil
}

// engagedOrder returns currently-reading then read item IDs without duplicates.
func engagedOrder(c *domain.UserContext) []string {
	seen := make(map[string]bool, len(c.CurrentlyReadingItems)+len(c.ReadItems))
	out := make([]string, 0, len(c.CurrentlyReadingItems)+len(c.ReadItems))
	for _, list := range [][]string{c.CurrentlyReadingItems, c.ReadItems} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// topByFrequency returns up to n distinct non-empty values, most frequent
// first. Ties keep first-seen order.
func topByFrequency(values []string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	slices.SortStableFunc(order, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}
