package providers

import (
	"github.com/samber/do/v2"

	"github.com/logan676/booklibrio-engine/internal/config"
	"github.com/logan676/booklibrio-engine/internal/logger"
	"github.com/logan676/booklibrio-engine/internal/ranking"
	"github.com/logan676/booklibrio-engine/internal/recommend"
	"github.com/logan676/booklibrio-engine/internal/related"
	"github.com/logan676/booklibrio-engine/internal/scoring"
	"github.com/logan676/booklibrio-engine/internal/signal"
)

// ProvideSignalReader provides the rate-limited, breaker-guarded signal reader.
func ProvideSignalReader(i do.Injector) (*signal.Guarded, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	guard := signal.GuardConfig{
		RequestsPerSecond: cfg.Guard.RequestsPerSecond,
		Burst:             cfg.Guard.Burst,
		FailureThreshold:  uint32(cfg.Guard.FailureThreshold), //nolint:gosec // validated >= 1
		OpenTimeout:       cfg.Guard.OpenTimeout,
	}
	return signal.NewGuarded(storeHandle.Store, guard, log.Logger), nil
}

// ProvideScorer provides the scorer built from the loaded tuning.
func ProvideScorer(i do.Injector) (*scoring.Scorer, error) {
	tuning := do.MustInvoke[*config.Tuning](i)
	return scoring.New(tuning.Weights), nil
}

// ProvideRankingManager provides the ranking snapshot manager.
func ProvideRankingManager(i do.Injector) (*ranking.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tuning := do.MustInvoke[*config.Tuning](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	reader := do.MustInvoke[*signal.Guarded](i)
	scorer := do.MustInvoke[*scoring.Scorer](i)
	log := do.MustInvoke[*logger.Logger](i)

	return ranking.NewManager(reader, storeHandle.Store, cacheHandle.Cache, scorer, ranking.Config{
		Definitions: tuning.Definitions,
		Concurrency: cfg.Workers.RankingConcurrency,
		UnitTimeout: cfg.Workers.UnitTimeout,
	}, log.With("component", "ranking"))
}

// ProvideRelatedBuilder provides the relatedness graph builder.
func ProvideRelatedBuilder(i do.Injector) (*related.Builder, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	reader := do.MustInvoke[*signal.Guarded](i)
	scorer := do.MustInvoke[*scoring.Scorer](i)
	log := do.MustInvoke[*logger.Logger](i)

	return related.NewBuilder(reader, storeHandle.Store, scorer, related.Config{
		Concurrency: cfg.Workers.RelatedConcurrency,
		UnitTimeout: cfg.Workers.UnitTimeout,
	}, log.With("component", "related")), nil
}

// ProvideAssembler provides the recommendation assembler.
func ProvideAssembler(i do.Injector) (*recommend.Assembler, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	reader := do.MustInvoke[*signal.Guarded](i)
	scorer := do.MustInvoke[*scoring.Scorer](i)
	log := do.MustInvoke[*logger.Logger](i)

	return recommend.NewAssembler(reader, storeHandle.Store, storeHandle.Store, scorer, recommend.Config{
		Concurrency: cfg.Workers.RecommendationConcurrency,
		UnitTimeout: cfg.Workers.UnitTimeout,
	}, log.With("component", "recommend")), nil
}
