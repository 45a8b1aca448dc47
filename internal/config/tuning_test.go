package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/scoring"
)

func TestLoadTuning_Defaults(t *testing.T) {
	tuning, err := LoadTuning("")
	require.NoError(t, err)

	assert.Equal(t, scoring.DefaultWeights(), tuning.Weights)
	assert.Equal(t, domain.DefaultRankingDefinitions(), tuning.Definitions)
}

func TestLoadTuning_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	content := `weights:
  ranking:
    trending_factor: 2.5
    masterpiece_min_rating_count: 250
  recommendation:
    ttl: 48h
definitions:
  - type: trending
    display_name: Trending
    period_type: daily
    item_type: ebook
    limit: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tuning, err := LoadTuning(path)
	require.NoError(t, err)

	assert.Equal(t, 2.5, tuning.Weights.Ranking.TrendingFactor)
	assert.Equal(t, int64(250), tuning.Weights.Ranking.MasterpieceMinRatingCount)
	assert.Equal(t, 48*time.Hour, tuning.Weights.Recommendation.TTL)

	// Untouched keys keep their defaults.
	defaults := scoring.DefaultWeights()
	assert.Equal(t, defaults.Ranking.PopularityWeight, tuning.Weights.Ranking.PopularityWeight)
	assert.Equal(t, defaults.Related, tuning.Weights.Related)

	// A definitions list replaces the built-in one.
	require.Len(t, tuning.Definitions, 1)
	assert.Equal(t, domain.RankingTrending, tuning.Definitions[0].Type)
	assert.Equal(t, domain.PeriodDaily, tuning.Definitions[0].PeriodType)
	assert.Equal(t, 10, tuning.Definitions[0].Limit)
}

func TestLoadTuning_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	content := `weights:
  ranking:
    trending_factor: 2.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("TUNING_WEIGHTS__RANKING__TRENDING_FACTOR", "4")
	t.Setenv("TUNING_WEIGHTS__RELATED__MIN_CO_READERS", "3")

	tuning, err := LoadTuning(path)
	require.NoError(t, err)

	assert.Equal(t, 4.0, tuning.Weights.Ranking.TrendingFactor)
	assert.Equal(t, int64(3), tuning.Weights.Related.MinCoReaders)
}

func TestLoadTuning_MissingFile(t *testing.T) {
	_, err := LoadTuning(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestTuningEnvKey(t *testing.T) {
	assert.Equal(t, "weights.ranking.trending_factor", tuningEnvKey("TUNING_WEIGHTS__RANKING__TRENDING_FACTOR"))
	assert.Equal(t, "weights.recommendation.ttl", tuningEnvKey("TUNING_WEIGHTS__RECOMMENDATION__TTL"))
}
