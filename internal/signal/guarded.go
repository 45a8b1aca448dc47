package signal

import (
	"context"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/errors"
	"github.com/logan676/booklibrio-engine/internal/metrics"
)

// GuardConfig configures the protection placed in front of a Reader.
type GuardConfig struct {
	// RequestsPerSecond caps signal queries issued by batch fan-out. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultGuardConfig returns conservative defaults for a local store.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RequestsPerSecond: 200,
		Burst:             50,
		FailureThreshold:  5,
		OpenTimeout:       30 * time.Second,
	}
}

// Guarded wraps a Reader with a rate limiter and a circuit breaker.
// Failures are converted to errors.CodeSignalUnavailable (or CodeTimeout when
// the unit's context expired) so callers can decide to default or abort.
type Guarded struct {
	next    Reader
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

var _ Reader = (*Guarded)(nil)

// NewGuarded wraps next.
func NewGuarded(next Reader, cfg GuardConfig, logger *slog.Logger) *Guarded {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := max(cfg.Burst, 1)

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "signal-reader",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A unit hitting its own deadline says nothing about store health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			if logger != nil {
				logger.Warn("signal breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	}

	return &Guarded{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// guard runs fn behind the limiter and breaker.
func guard[T any](ctx context.Context, g *Guarded, name string, fn func() (T, error)) (T, error) {
	var zero T
	if err := g.limiter.Wait(ctx); err != nil {
		return zero, classify(ctx, err, name)
	}

	res, err := g.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		metrics.SignalErrorsTotal.WithLabelValues(name).Inc()
		return zero, classify(ctx, err, name)
	}
	v, _ := res.(T)
	return v, nil
}

func classify(ctx context.Context, err error, name string) error {
	if ctx.Err() != nil {
		return errors.Wrapf(err, errors.CodeTimeout, "signal %s timed out", name)
	}
	return errors.SignalUnavailable(err, name)
}

// FetchReadingActivity implements Reader.
func (g *Guarded) FetchReadingActivity(ctx context.Context, itemType domain.ItemType, window domain.Window) ([]domain.ReadingActivity, error) {
	return guard(ctx, g, "reading_activity", func() ([]domain.ReadingActivity, error) {
		return g.next.FetchReadingActivity(ctx, itemType, window)
	})
}

// FetchSearchActivity implements Reader.
func (g *Guarded) FetchSearchActivity(ctx context.Context, itemType domain.ItemType, window domain.Window) ([]domain.SearchActivity, error) {
	return guard(ctx, g, "search_activity", func() ([]domain.SearchActivity, error) {
		return g.next.FetchSearchActivity(ctx, itemType, window)
	})
}

// FetchItemMetadata implements Reader.
func (g *Guarded) FetchItemMetadata(ctx context.Context, itemIDs []string) ([]domain.ItemMetadata, error) {
	return guard(ctx, g, "item_metadata", func() ([]domain.ItemMetadata, error) {
		return g.next.FetchItemMetadata(ctx, itemIDs)
	})
}

// FetchItemStats implements Reader.
func (g *Guarded) FetchItemStats(ctx context.Context, itemType domain.ItemType, itemIDs []string) ([]domain.ItemStats, error) {
	return guard(ctx, g, "item_stats", func() ([]domain.ItemStats, error) {
		return g.next.FetchItemStats(ctx, itemType, itemIDs)
	})
}

// FetchTopRated implements Reader.
func (g *Guarded) FetchTopRated(ctx context.Context, itemType domain.ItemType, minRating float64, minRatingCount int64, limit int) ([]domain.ItemStats, error) {
	return guard(ctx, g, "top_rated", func() ([]domain.ItemStats, error) {
		return g.next.FetchTopRated(ctx, itemType, minRating, minRatingCount, limit)
	})
}

// ListCatalog implements Reader.
func (g *Guarded) ListCatalog(ctx context.Context, q domain.CatalogQuery) ([]domain.ItemMetadata, error) {
	return guard(ctx, g, "catalog", func() ([]domain.ItemMetadata, error) {
		return g.next.ListCatalog(ctx, q)
	})
}

// ListItemIDs implements Reader.
func (g *Guarded) ListItemIDs(ctx context.Context, itemType domain.ItemType) ([]string, error) {
	return guard(ctx, g, "item_ids", func() ([]string, error) {
		return g.next.ListItemIDs(ctx, itemType)
	})
}

// FetchUserReadHistory implements Reader.
func (g *Guarded) FetchUserReadHistory(ctx context.Context, userID string) (*domain.ReadHistory, error) {
	return guard(ctx, g, "read_history", func() (*domain.ReadHistory, error) {
		return g.next.FetchUserReadHistory(ctx, userID)
	})
}

// FetchUserSocialGraph implements Reader.
func (g *Guarded) FetchUserSocialGraph(ctx context.Context, userID string) (*domain.SocialGraph, error) {
	return guard(ctx, g, "social_graph", func() (*domain.SocialGraph, error) {
		return g.next.FetchUserSocialGraph(ctx, userID)
	})
}

// ListActiveUsers implements Reader.
func (g *Guarded) ListActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	return guard(ctx, g, "active_users", func() ([]string, error) {
		return g.next.ListActiveUsers(ctx, since)
	})
}

// FetchCoOccurringReaders implements Reader.
func (g *Guarded) FetchCoOccurringReaders(ctx context.Context, itemID string) ([]string, error) {
	return guard(ctx, g, "co_readers", func() ([]string, error) {
		return g.next.FetchCoOccurringReaders(ctx, itemID)
	})
}

// FetchItemsReadByUsers implements Reader.
func (g *Guarded) FetchItemsReadByUsers(ctx context.Context, itemType domain.ItemType, userIDs []string) ([]domain.ItemUserCount, error) {
	return guard(ctx, g, "items_read_by_users", func() ([]domain.ItemUserCount, error) {
		return g.next.FetchItemsReadByUsers(ctx, itemType, userIDs)
	})
}

// FetchItemsCurrentlyReadByUsers implements Reader.
func (g *Guarded) FetchItemsCurrentlyReadByUsers(ctx context.Context, userIDs []string) ([]domain.ItemUserCount, error) {
	return guard(ctx, g, "items_reading_by_users", func() ([]domain.ItemUserCount, error) {
		return g.next.FetchItemsCurrentlyReadByUsers(ctx, userIDs)
	})
}
