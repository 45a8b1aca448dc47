// Package related builds the item relatedness graph used by "similar to what
// you read" recommendations.
package related

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/errors"
	"github.com/logan676/booklibrio-engine/internal/metrics"
	"github.com/logan676/booklibrio-engine/internal/scoring"
	"github.com/logan676/booklibrio-engine/internal/signal"
	"github.com/logan676/booklibrio-engine/internal/store"
)

// Config bounds batch computation.
type Config struct {
	// Concurrency is the number of items computed in parallel during a batch.
	Concurrency int
	// UnitTimeout bounds one item's computation.
	UnitTimeout time.Duration
}

// Builder computes related-item edges for catalog items.
type Builder struct {
	signals signal.Reader
	store   store.RelatedStore
	scorer  *scoring.Scorer
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder creates a relatedness graph builder.
func NewBuilder(signals signal.Reader, relatedStore store.RelatedStore, scorer *scoring.Scorer, cfg Config, logger *slog.Logger) *Builder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		signals: signals,
		store:   relatedStore,
		scorer:  scorer,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// ComputeRelatedItems computes and persists every edge whose source is itemID,
// bounded by the configured unit timeout. The same item and the same
// underlying data always yield the same edges, whether called directly or
// from ComputeAllRelatedItems.
func (b *Builder) ComputeRelatedItems(ctx context.Context, itemType domain.ItemType, itemID string) (edges []domain.RelatedItemEdge, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUnit(metrics.UnitRelated, start, err) }()

	unitCtx, cancel := context.WithTimeout(ctx, b.cfg.UnitTimeout)
	defer cancel()

	edges, err = b.computeRelated(unitCtx, itemType, itemID, start)
	return edges, errors.UnitTimeout(ctx, unitCtx, err, "related items for %s timed out", itemID)
}

func (b *Builder) computeRelated(ctx context.Context, itemType domain.ItemType, itemID string, start time.Time) ([]domain.RelatedItemEdge, error) {
	if !itemType.Valid() {
		return nil, errors.Validationf("unknown item type %q", itemType)
	}

	meta, err := b.signals.FetchItemMetadata(ctx, []string{itemID})
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for %s: %w", itemID, err)
	}
	if len(meta) == 0 {
		return nil, errors.NotFoundf("item %s not found", itemID)
	}
	source := meta[0]
	if source.ItemType != itemType {
		return nil, errors.Validationf("item %s is %s, not %s", itemID, source.ItemType, itemType)
	}
	computedAt := b.now()

	// Each relation fills its own slot so the merged order is fixed.
	var slots [3][]domain.RelatedItemEdge
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		slots[0], err = b.sameAuthor(gctx, itemType, source, computedAt)
		return err
	})
	g.Go(func() error {
		var err error
		slots[1], err = b.sameCategory(gctx, itemType, source, computedAt)
		return err
	})
	g.Go(func() error {
		var err error
		slots[2], err = b.readersAlsoRead(gctx, itemType, source, computedAt)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	edges := mergeEdges(slots[0], slots[1], slots[2])
	if err := b.store.UpsertRelatedEdges(ctx, edges); err != nil {
		return nil, fmt.Errorf("persist edges for %s: %w", itemID, err)
	}

	b.logger.Debug("related items computed",
		"item_id", itemID,
		"item_type", itemType,
		"edges", len(edges),
		"took", time.Since(start),
	)
	return edges, nil
}

func (b *Builder) sameAuthor(ctx context.Context, itemType domain.ItemType, source domain.ItemMetadata, at time.Time) ([]domain.RelatedItemEdge, error) {
	if source.Author == "" {
		return nil, nil
	}
	w := b.scorer.Weights().Related

	items, err := b.signals.ListCatalog(ctx, domain.CatalogQuery{
		ItemType: itemType,
		Author:   source.Author,
		OrderBy:  domain.CatalogOrderPopularity,
		Limit:    w.MaxPerRelation + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("same_author for %s: %w", source.ItemID, err)
	}

	edges := make([]domain.RelatedItemEdge, 0, len(items))
	for _, it := range items {
		if it.ItemID == source.ItemID || len(edges) >= w.MaxPerRelation {
			continue
		}
		edges = append(edges, newEdge(source.ItemID, itemType, it.ItemID, domain.RelationSameAuthor,
			w.SameAuthorSimilarity, w.SameAuthorConfidence, at))
	}
	return edges, nil
}

func (b *Builder) sameCategory(ctx context.Context, itemType domain.ItemType, source domain.ItemMetadata, at time.Time) ([]domain.RelatedItemEdge, error) {
	if source.CategoryID == "" {
		return nil, nil
	}
	w := b.scorer.Weights().Related

	items, err := b.signals.ListCatalog(ctx, domain.CatalogQuery{
		ItemType:   itemType,
		CategoryID: source.CategoryID,
		OrderBy:    domain.CatalogOrderTrending,
		Limit:      w.MaxPerRelation + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("same_category for %s: %w", source.ItemID, err)
	}

	edges := make([]domain.RelatedItemEdge, 0, len(items))
	for _, it := range items {
		if it.ItemID == source.ItemID || len(edges) >= w.MaxPerRelation {
			continue
		}
		sim := b.scorer.SameCategorySimilarity(it.TrendingScore)
		if sim <= 0 {
			continue
		}
		edges = append(edges, newEdge(source.ItemID, itemType, it.ItemID, domain.RelationSameCategory,
			sim, w.SameCategoryConfidence, at))
	}
	return edges, nil
}

func (b *Builder) readersAlsoRead(ctx context.Context, itemType domain.ItemType, source domain.ItemMetadata, at time.Time) ([]domain.RelatedItemEdge, error) {
	w := b.scorer.Weights().Related

	readers, err := b.signals.FetchCoOccurringReaders(ctx, source.ItemID)
	if err != nil {
		return nil, fmt.Errorf("readers of %s: %w", source.ItemID, err)
	}
	total := int64(len(readers))
	if total == 0 {
		return nil, nil
	}

	counts, err := b.signals.FetchItemsReadByUsers(ctx, itemType, readers)
	if err != nil {
		return nil, fmt.Errorf("co-read items for %s: %w", source.ItemID, err)
	}

	// counts arrive ordered by user count descending, so the first
	// MaxPerRelation qualifying items are the strongest.
	edges := make([]domain.RelatedItemEdge, 0, min(len(counts), w.MaxPerRelation))
	for _, c := range counts {
		if len(edges) >= w.MaxPerRelation {
			break
		}
		if c.ItemID == source.ItemID || c.UserCount < w.MinCoReaders {
			continue
		}
		sim, conf := b.scorer.CoRead(c.UserCount, total)
		if sim <= 0 {
			continue
		}
		edges = append(edges, newEdge(source.ItemID, itemType, c.ItemID, domain.RelationReadersAlsoRead, sim, conf, at))
	}
	return edges, nil
}

func newEdge(source string, itemType domain.ItemType, related string, relation domain.RelationType, sim, conf float64, at time.Time) domain.RelatedItemEdge {
	return domain.RelatedItemEdge{
		SourceItem:      source,
		SourceItemType:  itemType,
		RelatedItem:     related,
		RelationType:    relation,
		SimilarityScore: sim,
		Confidence:      conf,
		ComputedAt:      at,
	}
}

// mergeEdges concatenates edge lists, folding duplicate keys together with
// Merge while keeping first-seen order.
func mergeEdges(lists ...[]domain.RelatedItemEdge) []domain.RelatedItemEdge {
	index := make(map[string]int)
	out := []domain.RelatedItemEdge{}
	for _, list := range lists {
		for _, e := range list {
			if i, ok := index[e.EdgeKey()]; ok {
				out[i].Merge(&e)
				continue
			}
			index[e.EdgeKey()] = len(out)
			out = append(out, e)
		}
	}
	return out
}

// ComputeAllRelatedItems walks the whole catalog with a bounded worker pool.
// Per-item failures are logged and counted; they never stop the batch.
func (b *Builder) ComputeAllRelatedItems(ctx context.Context) (domain.RelatedBatchResult, error) {
	var processed, failed atomic.Int64
	start := time.Now()

	for _, itemType := range domain.AllItemTypes() {
		ids, err := b.signals.ListItemIDs(ctx, itemType)
		if err != nil {
			return domain.RelatedBatchResult{
				Processed: int(processed.Load()),
				Failed:    int(failed.Load()),
			}, fmt.Errorf("list %s items: %w", itemType, err)
		}

		var g errgroup.Group
		g.SetLimit(b.cfg.Concurrency)

		for _, id := range ids {
			g.Go(func() error {
				// Early exit if context cancelled
				if ctx.Err() != nil {
					return nil
				}

				if _, err := b.ComputeRelatedItems(ctx, itemType, id); err != nil {
					failed.Add(1)
					b.logger.Warn("related items failed",
						"item_id", id,
						"item_type", itemType,
						"retryable", errors.CodeOf(err).Retryable(),
						"error", err,
					)
					return nil
				}
				processed.Add(1)
				return nil // never fail the group - errors reported per item
			})
		}

		_ = g.Wait()
	}

	result := domain.RelatedBatchResult{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
	}
	b.logger.Info("related graph batch complete",
		"processed", result.Processed,
		"failed", result.Failed,
		"took", time.Since(start),
	)
	return result, ctx.Err()
}
