// Package providers contains dependency injection providers for the BookLibrio engine.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/logan676/booklibrio-engine/internal/config"
	"github.com/logan676/booklibrio-engine/internal/logger"
)

// ProvideConfig returns a provider that loads configuration from args.
func ProvideConfig(args []string) func(do.Injector) (*config.Config, error) {
	return func(do.Injector) (*config.Config, error) {
		return config.LoadConfig(args)
	}
}

// ProvideTuning provides the scoring weights and ranking definitions.
func ProvideTuning(i do.Injector) (*config.Tuning, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	tuning, err := config.LoadTuning(cfg.Tuning.Path)
	if err != nil {
		return nil, err
	}

	log.Info("Tuning loaded",
		"path", cfg.Tuning.Path,
		"rankings", len(tuning.Definitions),
	)
	return tuning, nil
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting BookLibrio engine",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
	)

	return log, nil
}
