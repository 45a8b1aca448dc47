// Package ranking computes, swaps and serves leaderboard snapshots.
//
// Each ranking type moves through the same stages on every run:
// window → scoring → ranking → diffing → persisting → active. A run that
// fails at any stage leaves the previous active snapshot untouched.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
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

// RetryHint is returned with views of rankings that were never computed.
const RetryHint = "ranking has not been computed yet; retry shortly"

// ViewCache holds active ranking views keyed by type.
type ViewCache interface {
	GetRanking(t domain.RankingType) (*domain.RankingView, bool, error)
	SetRanking(view *domain.RankingView, expiresAt time.Time) error
	DeleteRanking(t domain.RankingType) error
}

// Config bounds batch computation and lists the rankings to maintain.
type Config struct {
	// Definitions defaults to domain.DefaultRankingDefinitions.
	Definitions []domain.RankingDefinition
	// Concurrency is the number of ranking types computed in parallel.
	Concurrency int
	// UnitTimeout bounds one ranking type's computation.
	UnitTimeout time.Duration
}

// Manager owns the snapshot lifecycle of every configured ranking type.
type Manager struct {
	signals signal.Reader
	store   store.RankingStore
	cache   ViewCache
	scorer  *scoring.Scorer
	defs    []domain.RankingDefinition
	byType  map[domain.RankingType]domain.RankingDefinition
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	// cacheMu serializes cache writes with the active-snapshot check that
	// precedes them.
	cacheMu sync.Mutex
}

// NewManager validates the definitions and creates a manager.
// cache may be nil, in which case every read goes to the store.
func NewManager(signals signal.Reader, rankingStore store.RankingStore, cache ViewCache, scorer *scoring.Scorer, cfg Config, logger *slog.Logger) (*Manager, error) {
	if len(cfg.Definitions) == 0 {
		cfg.Definitions = domain.DefaultRankingDefinitions()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	v := validation.New()
	byType := make(map[domain.RankingType]domain.RankingDefinition, len(cfg.Definitions))
	for _, def := range cfg.Definitions {
		if err := v.ValidateDefinition(def); err != nil {
			return nil, err
		}
		if _, dup := byType[def.Type]; dup {
			return nil, errors.Validationf("ranking type %q defined twice", def.Type)
		}
		byType[def.Type] = def
	}

	return &Manager{
		signals: signals,
		store:   rankingStore,
		cache:   cache,
		scorer:  scorer,
		defs:    slices.Clone(cfg.Definitions),
		byType:  byType,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Definitions returns the configured rankings in scheduling order.
func (m *Manager) Definitions() []domain.RankingDefinition {
	return slices.Clone(m.defs)
}

func (m *Manager) definition(t domain.RankingType) (domain.RankingDefinition, error) {
	if !t.Valid() {
		return domain.RankingDefinition{}, errors.Validationf("unknown ranking type %q", t)
	}
	def, ok := m.byType[t]
	if !ok {
		return domain.RankingDefinition{}, errors.NotFoundf("ranking type %q is not configured", t)
	}
	return def, nil
}

// ComputeRanking computes a new snapshot for one ranking type and swaps it in,
// bounded by the configured unit timeout. When no candidate qualifies the run
// is skipped and the previous snapshot stays active.
func (m *Manager) ComputeRanking(ctx context.Context, t domain.RankingType) (result domain.SnapshotResult, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUnit(metrics.UnitRanking, start, err) }()

	unitCtx, cancel := context.WithTimeout(ctx, m.cfg.UnitTimeout)
	defer cancel()

	result, err = m.computeRanking(unitCtx, t)
	return result, errors.UnitTimeout(ctx, unitCtx, err, "ranking %s timed out", t)
}

func (m *Manager) computeRanking(ctx context.Context, t domain.RankingType) (domain.SnapshotResult, error) {
	def, err := m.definition(t)
	if err != nil {
		return domain.SnapshotResult{}, err
	}
	log := m.logger.With("ranking_type", t)

	now := m.now()
	window := def.PeriodType.Window(now)
	log.Debug("ranking window resolved", "period", def.PeriodType, "start", window.Start, "end", window.End)

	candidates, err := m.candidates(ctx, def, window, now)
	if err != nil {
		return domain.SnapshotResult{}, fmt.Errorf("score %s: %w", t, err)
	}
	log.Debug("ranking candidates scored", "candidates", len(candidates))

	ranked := rank(candidates, def.Limit)
	if len(ranked) == 0 {
		log.Info("ranking skipped, no qualifying candidates")
		return domain.SnapshotResult{Type: t, ComputedAt: now, Skipped: true}, nil
	}

	previous, err := m.previousRanks(ctx, t)
	if err != nil {
		return domain.SnapshotResult{}, fmt.Errorf("diff %s: %w", t, err)
	}
	log.Debug("ranking diffed", "previous_entries", len(previous))

	snapshotID, err := id.Generate(id.PrefixSnapshot)
	if err != nil {
		return domain.SnapshotResult{}, errors.Wrap(err, errors.CodeInternal, "generate snapshot id")
	}
	snap := &domain.RankingSnapshot{
		ID:          snapshotID,
		Type:        t,
		PeriodStart: window.Start,
		PeriodEnd:   window.End,
		ComputedAt:  now,
		ExpiresAt:   window.ExpiresAt,
	}
	entries := buildEntries(snapshotID, def.ItemType, ranked, previous)

	if err := m.store.SwapActiveSnapshot(ctx, snap, entries); err != nil {
		return domain.SnapshotResult{}, fmt.Errorf("swap %s: %w", t, err)
	}
	log.Debug("ranking snapshot active", "snapshot_id", snapshotID, "entries", len(entries))

	metrics.RankingEntries.WithLabelValues(string(t)).Set(float64(len(entries)))
	m.refreshCache(ctx, &domain.RankingView{
		Definition: def,
		Snapshot:   snap,
		Entries:    entries,
		Computed:   true,
	})

	return domain.SnapshotResult{
		SnapshotID: snapshotID,
		Type:       t,
		ItemCount:  len(entries),
		ComputedAt: now,
	}, nil
}

// rank stable-sorts candidates by score descending and truncates to limit.
// Equal scores keep discovery order.
func rank(candidates []domain.ScoredItem, limit int) []domain.ScoredItem {
	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b domain.ScoredItem) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// previousRanks maps item IDs to their rank in the most recent snapshot of the
// type, active or not. A never-computed type yields an empty map.
func (m *Manager) previousRanks(ctx context.Context, t domain.RankingType) (map[string]int, error) {
	latest, err := m.store.GetLatestSnapshot(ctx, t)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, err
	}

	entries, err := m.store.GetSnapshotEntries(ctx, latest.ID)
	if err != nil {
		return nil, err
	}
	ranks := make(map[string]int, len(entries))
	for _, e := range entries {
		ranks[e.ItemID] = e.Rank
	}
	return ranks, nil
}

// buildEntries assigns 1-based ranks and rank changes against previous.
// Positive RankChange means the item moved up.
func buildEntries(snapshotID string, itemType domain.ItemType, ranked []domain.ScoredItem, previous map[string]int) []domain.RankingEntry {
	entries := make([]domain.RankingEntry, len(ranked))
	for i, c := range ranked {
		r := i + 1
		prev := previous[c.ItemID]
		change := 0
		if prev > 0 {
			change = prev - r
		}
		entries[i] = domain.RankingEntry{
			SnapshotID:    snapshotID,
			ItemID:        c.ItemID,
			ItemType:      itemType,
			Rank:          r,
			PreviousRank:  prev,
			RankChange:    change,
			Score:         c.Score,
			ReaderCount:   c.ReaderCount,
			Rating:        c.Rating,
			EvaluationTag: domain.EvaluationTagFor(c.Rating),
		}
	}
	return entries
}

// refreshCache stores view only while its snapshot is still the active one.
// Every swap is followed by its own refresh, so the cache ends on the last
// swapped snapshot. On failure the entry is dropped instead.
func (m *Manager) refreshCache(ctx context.Context, view *domain.RankingView) {
	if m.cache == nil || view.Snapshot == nil {
		return
	}
	t := view.Definition.Type

	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()

	active, err := m.store.GetActiveSnapshot(ctx, t)
	if err != nil {
		m.logger.Warn("skipping ranking cache write", "ranking_type", t, "error", err)
		m.invalidateCache(t)
		return
	}
	if active.ID != view.Snapshot.ID {
		m.logger.Debug("ranking cache write superseded",
			"ranking_type", t,
			"snapshot_id", view.Snapshot.ID,
			"active_snapshot_id", active.ID,
		)
		return
	}
	if err := m.cache.SetRanking(view, view.Snapshot.ExpiresAt); err != nil {
		m.logger.Warn("failed to cache ranking view", "ranking_type", t, "error", err)
		m.invalidateCache(t)
	}
}

// invalidateCache drops a type's cached view so readers fall through to the
// store. Callers hold cacheMu.
func (m *Manager) invalidateCache(t domain.RankingType) {
	if err := m.cache.DeleteRanking(t); err != nil {
		m.logger.Warn("failed to invalidate ranking cache", "ranking_type", t, "error", err)
	}
}

// GetActiveRanking returns the active snapshot and entries for a type without
// computing anything. A never-computed type returns Computed=false and a
// retry hint rather than an error.
func (m *Manager) GetActiveRanking(ctx context.Context, t domain.RankingType) (*domain.RankingView, error) {
	def, err := m.definition(t)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		view, ok, err := m.cache.GetRanking(t)
		if err != nil {
			m.logger.Warn("ranking cache read failed", "ranking_type", t, "error", err)
		} else if ok {
			return view, nil
		}
	}

	snap, err := m.store.GetActiveSnapshot(ctx, t)
	if errors.Is(err, store.ErrNotFound) {
		return &domain.RankingView{
			Definition: def,
			Entries:    []domain.RankingEntry{},
			Computed:   false,
			RetryHint:  RetryHint,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active %s: %w", t, err)
	}

	entries, err := m.store.GetSnapshotEntries(ctx, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("get entries for %s: %w", snap.ID, err)
	}

	view := &domain.RankingView{
		Definition: def,
		Snapshot:   snap,
		Entries:    entries,
		Computed:   true,
	}
	if snap.ExpiresAt.After(m.now()) {
		m.refreshCache(ctx, view)
	}
	return view, nil
}

// ComputeAllRankings computes every configured type with a bounded worker
// pool. Each type runs under its own timeout. A failed type is logged,
// left out of the results and reported in the joined error.
func (m *Manager) ComputeAllRankings(ctx context.Context) ([]domain.SnapshotResult, error) {
	results := make([]domain.SnapshotResult, len(m.defs))
	errs := make([]error, len(m.defs))

	var g errgroup.Group
	g.SetLimit(m.cfg.Concurrency)

	for i, def := range m.defs {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = fmt.Errorf("ranking %s: %w", def.Type, ctx.Err())
				return nil
			}

			res, err := m.ComputeRanking(ctx, def.Type)
			if err != nil {
				errs[i] = fmt.Errorf("ranking %s: %w", def.Type, err)
				m.logger.Error("ranking computation failed",
					"ranking_type", def.Type,
					"retryable", errors.CodeOf(err).Retryable(),
					"error", err,
				)
				return nil
			}
			results[i] = res
			return nil // never fail the group - errors reported per type
		})
	}
	_ = g.Wait()

	out := make([]domain.SnapshotResult, 0, len(results))
	for i, res := range results {
		if errs[i] == nil {
			out = append(out, res)
		}
	}
	return out, errors.Join(errs...)
}
