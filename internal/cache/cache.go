// Package cache keeps computed read models in Badger with per-entry TTLs.
//
// The cache is an explicit collaborator of the ranking manager: entries are
// written when a snapshot is swapped in and expire with the snapshot's window,
// so a miss simply falls through to the store.
package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/metrics"
)

const rankingPrefix = "ranking:"

// RankingKey returns the cache key for a ranking type's active view.
func RankingKey(t domain.RankingType) string {
	return rankingPrefix + string(t)
}

// Cache wraps a Badger database instance.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens a cache at path. An empty path keeps everything in memory.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil            // Disable Badger's internal logging
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}

	if logger != nil {
		logger.Info("Badger cache opened", "path", path, "in_memory", path == "")
	}

	return &Cache{db: db, logger: logger}, nil
}

// Close gracefully closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get decodes the value stored at key into dest.
// Returns false when the key is missing or expired.
func (c *Cache) Get(key string, dest any) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return true, nil
}

// Set stores value at key for ttl. A non-positive ttl stores nothing and
// removes any existing entry, since the value is already stale.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return c.Delete(key)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(ttl))
	})
}

// Delete removes a key. Missing keys are not an error.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// GetRanking returns the cached view for a ranking type.
func (c *Cache) GetRanking(t domain.RankingType) (*domain.RankingView, bool, error) {
	var view domain.RankingView
	ok, err := c.Get(RankingKey(t), &view)
	if err != nil || !ok {
		return nil, false, err
	}
	return &view, true, nil
}

// DeleteRanking drops the cached view for a ranking type.
func (c *Cache) DeleteRanking(t domain.RankingType) error {
	return c.Delete(RankingKey(t))
}

// SetRanking caches a ranking view until expiresAt.
func (c *Cache) SetRanking(view *domain.RankingView, expiresAt time.Time) error {
	return c.Set(RankingKey(view.Definition.Type), view, time.Until(expiresAt))
}
