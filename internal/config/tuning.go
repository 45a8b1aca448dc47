package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/scoring"
)

// TuningEnvPrefix prefixes environment overrides for scoring weights.
// Nested keys are separated by a double underscore:
// TUNING_WEIGHTS__RANKING__TRENDING_FACTOR -> weights.ranking.trending_factor.
const TuningEnvPrefix = "TUNING_"

// Tuning holds the scoring weights and ranking definitions.
type Tuning struct {
	Weights     scoring.Weights            `koanf:"weights"`
	Definitions []domain.RankingDefinition `koanf:"definitions"`
}

// DefaultTuning returns the stock weights and the built-in leaderboards.
func DefaultTuning() Tuning {
	return Tuning{
		Weights:     scoring.DefaultWeights(),
		Definitions: domain.DefaultRankingDefinitions(),
	}
}

// LoadTuning layers tuning sources with precedence:
// 1. TUNING_ environment variables (highest priority).
// 2. YAML file at path, if path is non-empty.
// 3. Built-in defaults (lowest priority).
//
// A definitions list in the file replaces the built-in list as a whole.
func LoadTuning(path string) (*Tuning, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultTuning(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load tuning defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("tuning file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load tuning file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(TuningEnvPrefix, ".", tuningEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load tuning environment: %w", err)
	}

	t := &Tuning{}
	if err := k.Unmarshal("", t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tuning: %w", err)
	}
	if len(t.Definitions) == 0 {
		return nil, fmt.Errorf("tuning defines no rankings")
	}
	return t, nil
}

// tuningEnvKey maps TUNING_WEIGHTS__RANKING__TRENDING_FACTOR to
// weights.ranking.trending_factor.
func tuningEnvKey(key string) string {
	key = strings.TrimPrefix(key, TuningEnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}
