// Package recommend assembles, persists and serves per-user recommendations.
//
// A generation run builds the user's context, fans out to six independent
// candidate sources, joins them, filters already-read items, deduplicates by
// item (max score wins), ranks and replaces the user's stored list in one
// transaction.
package recommend

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/errors"
	"github.com/logan676/booklibrio-engine/internal/id"
	"github.com/logan676/booklibrio-engine/internal/metrics"
	"github.com/logan676/booklibrio-engine/internal/scoring"
	"github.com/logan676/booklibrio-engine/internal/signal"
	"github.com/logan676/booklibrio-engine/internal/store"
	"github.com/logan676/booklibrio-engine/internal/validation"
)

// RetryHint is returned with pages for users who never had recommendations.
const RetryHint = "recommendations have not been generated yet; retry shortly"

// Config bounds batch generation.
type Config struct {
	// Concurrency is the number of users generated in parallel during a batch.
	Concurrency int
	// UnitTimeout bounds one user's generation.
	UnitTimeout time.Duration
}

// BatchResult summarizes a batch generation run.
type BatchResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Assembler generates and serves user recommendations.
type Assembler struct {
	signals   signal.Reader
	related   store.RelatedStore
	recs      store.RecommendationStore
	scorer    *scoring.Scorer
	validator *validation.Validator
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewAssembler creates a recommendation assembler.
func NewAssembler(signals signal.Reader, relatedStore store.RelatedStore, recStore store.RecommendationStore, scorer *scoring.Scorer, cfg Config, logger *slog.Logger) *Assembler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		signals:   signals,
		related:   relatedStore,
		recs:      recStore,
		scorer:    scorer,
		validator: validation.New(),
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Generate computes a fresh recommendation list for the user and replaces the
// stored one, bounded by the configured unit timeout. When no candidate
// survives filtering the stored list is kept.
func (a *Assembler) Generate(ctx context.Context, userID string, opts domain.GenerateOptions) (recs []domain.UserRecommendation, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUnit(metrics.UnitRecommendation, start, err) }()

	unitCtx, cancel := context.WithTimeout(ctx, a.cfg.UnitTimeout)
	defer cancel()

	recs, err = a.generate(unitCtx, userID, opts, start)
	return recs, errors.UnitTimeout(ctx, unitCtx, err, "recommendations for %s timed out", userID)
}

func (a *Assembler) generate(ctx context.Context, userID string, opts domain.GenerateOptions, start time.Time) ([]domain.UserRecommendation, error) {
	if userID == "" {
		return nil, errors.Validation("user id is required")
	}
	if opts.Limit == 0 {
		opts.Limit = domain.DefaultGenerateOptions().Limit
	}
	if err := a.validator.Validate(opts); err != nil {
		return nil, err
	}

	profile, err := a.buildContext(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build context for %s: %w", userID, err)
	}
	now := a.now()

	candidates, err := a.collect(ctx, profile, opts, now)
	if err != nil {
		return nil, fmt.Errorf("generate candidates for %s: %w", userID, err)
	}
	if opts.ExcludeRead {
		candidates = excludeEngaged(candidates, &profile.UserContext)
	}

	ranked := dedupe(candidates)
	slices.SortStableFunc(ranked, func(x, y domain.Candidate) int {
		return cmp.Compare(y.Score, x.Score)
	})
	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	if len(ranked) == 0 {
		a.logger.Info("no recommendation candidates, keeping previous list", "user_id", userID)
		return []domain.UserRecommendation{}, nil
	}

	recs, err := a.toRecommendations(userID, ranked, now)
	if err != nil {
		return nil, err
	}
	if err := a.recs.ReplaceUserRecommendations(ctx, userID, recs); err != nil {
		return nil, fmt.Errorf("replace recommendations for %s: %w", userID, err)
	}

	a.logger.Debug("recommendations generated",
		"user_id", userID,
		"candidates", len(candidates),
		"kept", len(recs),
		"took", time.Since(start),
	)
	return recs, nil
}

// collect runs every source concurrently and joins their output in source
// order. The first source error cancels the rest.
func (a *Assembler) collect(ctx context.Context, p *userProfile, opts domain.GenerateOptions, now time.Time) ([]domain.Candidate, error) {
	srcs := a.sources()
	slots := make([][]domain.Candidate, len(srcs))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range srcs {
		g.Go(func() error {
			out, err := src(gctx, p, opts, now)
			if err != nil {
				return err
			}
			slots[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Candidate
	for _, s := range slots {
		for _, c := range s {
			metrics.CandidatesTotal.WithLabelValues(string(c.ReasonType)).Inc()
		}
		all = append(all, s...)
	}
	return all, nil
}

// excludeEngaged drops candidates the user has read or is reading.
func excludeEngaged(candidates []domain.Candidate, uc *domain.UserContext) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !uc.HasEngaged(c.ItemID) {
			out = append(out, c)
		}
	}
	return out
}

// dedupe keeps one candidate per item, the one that Beats every other.
// Output follows first-seen order.
func dedupe(candidates []domain.Candidate) []domain.Candidate {
	index := make(map[string]int, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if i, ok := index[c.ItemID]; ok {
			if c.Beats(&out[i]) {
				out[i] = c
			}
			continue
		}
		index[c.ItemID] = len(out)
		out = append(out, c)
	}
	return out
}

func (a *Assembler) toRecommendations(userID string, ranked []domain.Candidate, now time.Time) ([]domain.UserRecommendation, error) {
	ttl := a.scorer.Weights().Recommendation.TTL
	recs := make([]domain.UserRecommendation, len(ranked))
	for i, c := range ranked {
		recID, err := id.Generate(id.PrefixRecommendation)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "generate recommendation id")
		}
		var sourceItem *string
		if c.SourceItemID != "" {
			sourceItem = &c.SourceItemID
		}
		recs[i] = domain.UserRecommendation{
			ID:                 recID,
			UserID:             userID,
			ItemID:             c.ItemID,
			ItemType:           c.ItemType,
			RecommendationType: c.ReasonType.RecommendationType(),
			ReasonType:         c.ReasonType,
			Reason:             c.Reason,
			SourceItemID:       sourceItem,
			Score:              c.Score,
			Position:           i,
			CreatedAt:          now,
			ExpiresAt:          now.Add(ttl),
		}
	}
	return recs, nil
}

// Get reads the user's live recommendations without computing anything.
// A user who never had recommendations gets Computed=false and a retry hint.
func (a *Assembler) Get(ctx context.Context, userID string, recType domain.RecommendationType, limit, offset int) (*domain.RecommendationPage, error) {
	if userID == "" {
		return nil, errors.Validation("user id is required")
	}
	if recType != "" && !recType.Valid() {
		return nil, errors.Validationf("unknown recommendation type %q", recType)
	}

	has, err := a.recs.HasRecommendations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check recommendations for %s: %w", userID, err)
	}
	if !has {
		return &domain.RecommendationPage{
			Items:     []domain.UserRecommendation{},
			Computed:  false,
			RetryHint: RetryHint,
		}, nil
	}

	items, err := a.recs.ListUserRecommendations(ctx, store.RecommendationQuery{
		UserID: userID,
		Type:   recType,
		Limit:  limit,
		Offset: offset,
		Now:    a.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("list recommendations for %s: %w", userID, err)
	}
	return &domain.RecommendationPage{Items: items, Computed: true}, nil
}

// Serve returns the user's live recommendations, regenerating synchronously
// when fewer than half of limit are live. A user's first request therefore
// pays for a full generation. The whole call shares one unit timeout.
func (a *Assembler) Serve(ctx context.Context, userID string, limit int) (page *domain.RecommendationPage, err error) {
	if userID == "" {
		return nil, errors.Validation("user id is required")
	}
	unitCtx, cancel := context.WithTimeout(ctx, a.cfg.UnitTimeout)
	defer cancel()

	page, err = a.serve(unitCtx, userID, limit)
	return page, errors.UnitTimeout(ctx, unitCtx, err, "serving recommendations for %s timed out", userID)
}

func (a *Assembler) serve(ctx context.Context, userID string, limit int) (*domain.RecommendationPage, error) {
	q := store.RecommendationQuery{UserID: userID, Limit: limit, Now: a.now()}
	q.Normalize()

	items, err := a.recs.ListUserRecommendations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list recommendations for %s: %w", userID, err)
	}
	if len(items) >= (q.Limit+1)/2 {
		return &domain.RecommendationPage{Items: items, Computed: true}, nil
	}

	opts := domain.DefaultGenerateOptions()
	opts.Limit = max(opts.Limit, q.Limit)
	if _, err := a.Generate(ctx, userID, opts); err != nil {
		return nil, err
	}

	q.Now = a.now()
	items, err = a.recs.ListUserRecommendations(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list recommendations for %s: %w", userID, err)
	}
	return &domain.RecommendationPage{Items: items, Computed: true}, nil
}

// MarkViewed flags recommendations as viewed. Unknown IDs are ignored.
func (a *Assembler) MarkViewed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return a.recs.MarkViewed(ctx, ids)
}

// MarkClicked flags a recommendation as clicked.
func (a *Assembler) MarkClicked(ctx context.Context, recID string) error {
	if recID == "" {
		return errors.Validation("recommendation id is required")
	}
	return a.recs.MarkClicked(ctx, recID)
}

// Dismiss hides a recommendation from every later read.
func (a *Assembler) Dismiss(ctx context.Context, recID string) error {
	if recID == "" {
		return errors.Validation("recommendation id is required")
	}
	return a.recs.Dismiss(ctx, recID)
}

// GenerateForActiveUsers regenerates recommendations for every user with
// reading activity since the given time. Per-user failures are logged and
// counted; they never stop the batch.
func (a *Assembler) GenerateForActiveUsers(ctx context.Context, since time.Time) (BatchResult, error) {
	users, err := a.signals.ListActiveUsers(ctx, since)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list active users: %w", err)
	}

	var processed, failed atomic.Int64
	start := time.Now()
	opts := domain.DefaultGenerateOptions()

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)

	for _, userID := range users {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			if _, err := a.Generate(ctx, userID, opts); err != nil {
				failed.Add(1)
				a.logger.Warn("recommendation generation failed",
					"user_id", userID,
					"retryable", errors.CodeOf(err).Retryable(),
					"error", err,
				)
				return nil
			}
			processed.Add(1)
			return nil // never fail the group - errors reported per user
		})
	}
	_ = g.Wait()

	result := BatchResult{
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
	}
	a.logger.Info("recommendation batch complete",
		"users", len(users),
		"processed", result.Processed,
		"failed", result.Failed,
		"took", time.Since(start),
	)
	return result, ctx.Err()
}
