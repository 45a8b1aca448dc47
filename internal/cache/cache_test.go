package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logan676/booklibrio-engine/internal/domain"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("k", map[string]int{"a": 1}, time.Minute))

	var got map[string]int
	ok, err := c.Get("k", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, got["a"])
}

func TestCache_Miss(t *testing.T) {
	c := newTestCache(t)

	var got string
	ok, err := c.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_NonPositiveTTLDeletes(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("k", "v", time.Minute))
	require.NoError(t, c.Set("k", "v2", 0))

	var got string
	ok, err := c.Get("k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t)

	require.NoError(t, c.Set("k", "v", time.Minute))
	require.NoError(t, c.Delete("k"))
	require.NoError(t, c.Delete("never-set"))

	var got string
	ok, err := c.Get("k", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Ranking(t *testing.T) {
	c := newTestCache(t)
	now := time.Now().UTC().Truncate(time.Second)

	view := &domain.RankingView{
		Definition: domain.DefaultRankingDefinitions()[0],
		Snapshot: &domain.RankingSnapshot{
			ID:         "rks-1",
			Type:       domain.RankingTrending,
			ComputedAt: now,
			ExpiresAt:  now.Add(time.Hour),
			IsActive:   true,
		},
		Entries: []domain.RankingEntry{
			{SnapshotID: "rks-1", ItemID: "a", Rank: 1, Score: 42.5, EvaluationTag: domain.EvaluationMasterpiece},
		},
		Computed: true,
	}
	require.NoError(t, c.SetRanking(view, now.Add(time.Hour)))

	got, ok, err := c.GetRanking(domain.RankingTrending)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "rks-1", got.Snapshot.ID)
	assert.True(t, got.Snapshot.ComputedAt.Equal(now))
	require.Len(t, got.Entries, 1)
	assert.Equal(t, 42.5, got.Entries[0].Score)
	assert.Equal(t, domain.EvaluationMasterpiece, got.Entries[0].EvaluationTag)

	_, ok, err = c.GetRanking(domain.RankingMasterpiece)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.DeleteRanking(domain.RankingTrending))
	_, ok, err = c.GetRanking(domain.RankingTrending)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_RankingAlreadyExpired(t *testing.T) {
	c := newTestCache(t)

	view := &domain.RankingView{Definition: domain.DefaultRankingDefinitions()[0], Computed: true}
	require.NoError(t, c.SetRanking(view, time.Now().Add(-time.Minute)))

	_, ok, err := c.GetRanking(view.Definition.Type)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRankingKey(t *testing.T) {
	assert.Equal(t, "ranking:hot_search", RankingKey(domain.RankingHotSearch))
}
