package signal

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/errors"
)

// stubReader answers FetchItemMetadata with err, or a single row when err is nil.
type stubReader struct {
	Reader
	err   error
	calls int
}

func (s *stubReader) FetchItemMetadata(ctx context.Context, ids []string) ([]domain.ItemMetadata, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []domain.ItemMetadata{{ItemID: ids[0]}}, nil
}

func newTestGuarded(next Reader) *Guarded {
	return NewGuarded(next, GuardConfig{FailureThreshold: 3, OpenTimeout: time.Hour}, nil)
}

func TestGuarded_PassesThrough(t *testing.T) {
	g := newTestGuarded(&stubReader{})

	rows, err := g.FetchItemMetadata(context.Background(), []string{"b1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b1", rows[0].ItemID)
}

func TestGuarded_WrapsFailuresAsSignalUnavailable(t *testing.T) {
	stub := &stubReader{err: stderrors.New("disk I/O error")}
	g := newTestGuarded(stub)

	_, err := g.FetchItemMetadata(context.Background(), []string{"b1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSignalUnavailable)
	assert.True(t, errors.CodeOf(err).Retryable())
	assert.Contains(t, err.Error(), "item_metadata")
}

func TestGuarded_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubReader{err: stderrors.New("database is locked")}
	g := newTestGuarded(stub)
	ctx := context.Background()

	for range 3 {
		_, err := g.FetchItemMetadata(ctx, []string{"b1"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, g.breaker.State())

	// Open breaker short-circuits without touching the store.
	_, err := g.FetchItemMetadata(ctx, []string{"b1"})
	assert.ErrorIs(t, err, errors.ErrSignalUnavailable)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, stub.calls)
}

func TestGuarded_ContextErrorsDoNotTrip(t *testing.T) {
	stub := &stubReader{err: context.DeadlineExceeded}
	g := newTestGuarded(stub)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	// The limiter rejects an expired context before the store is touched.
	_, err := g.FetchItemMetadata(ctx, []string{"b1"})
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.Zero(t, stub.calls)

	for range 5 {
		_, err := g.FetchItemMetadata(context.Background(), []string{"b1"})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, g.breaker.State())
}
