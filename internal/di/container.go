// Package di provides dependency injection configuration for the BookLibrio engine.
package di

import (
	"github.com/samber/do/v2"

	"github.com/logan676/booklibrio-engine/internal/config"
	"github.com/logan676/booklibrio-engine/internal/di/providers"
	"github.com/logan676/booklibrio-engine/internal/logger"
	"github.com/logan676/booklibrio-engine/internal/ranking"
	"github.com/logan676/booklibrio-engine/internal/recommend"
	"github.com/logan676/booklibrio-engine/internal/related"
	"github.com/logan676/booklibrio-engine/internal/scoring"
	"github.com/logan676/booklibrio-engine/internal/signal"
)

// NewContainer creates and configures the DI container with all providers.
// args are the command-line flags passed to config.LoadConfig.
func NewContainer(args []string) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig(args))
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideTuning)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideCache)

	// Engine
	do.Provide(injector, providers.ProvideSignalReader)
	do.Provide(injector, providers.ProvideScorer)
	do.Provide(injector, providers.ProvideRankingManager)
	do.Provide(injector, providers.ProvideRelatedBuilder)
	do.Provide(injector, providers.ProvideAssembler)

	// Workers
	do.Provide(injector, providers.ProvideScheduler)

	// Server
	do.Provide(injector, providers.ProvideMetricsServer)

	return injector
}

// Bootstrap initializes the engine components without starting any job loop.
// This triggers lazy initialization so configuration and storage errors
// surface before the caller commits to a mode.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	for _, invoke := range []func(do.Injector) error{
		invokeErr[*config.Tuning],
		invokeErr[*providers.StoreHandle],
		invokeErr[*providers.CacheHandle],
		invokeErr[*signal.Guarded],
		invokeErr[*scoring.Scorer],
		invokeErr[*ranking.Manager],
		invokeErr[*related.Builder],
		invokeErr[*recommend.Assembler],
		invokeErr[*providers.SchedulerHandle],
	} {
		if err := invoke(injector); err != nil {
			return err
		}
	}
	return nil
}

func invokeErr[T any](i do.Injector) error {
	_, err := do.Invoke[T](i)
	return err
}
