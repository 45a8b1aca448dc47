// Package scheduler triggers the engine's batch jobs on fixed intervals.
//
// The engine is otherwise idle: each tick calls into the ranking manager,
// relatedness builder or recommendation assembler, which bound their own
// fan-out and per-unit timeouts. A job never overlaps with itself.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/errors"
	"github.com/logan676/booklibrio-engine/internal/recommend"
)

// Job names a scheduled batch.
type Job string

// Job constants.
const (
	JobRankings        Job = "rankings"
	JobRelated         Job = "related"
	JobRecommendations Job = "recommendations"
)

// Valid returns true if the job is a recognized value.
func (j Job) Valid() bool {
	switch j {
	case JobRankings, JobRelated, JobRecommendations:
		return true
	default:
		return false
	}
}

// AllJobs returns every job in start order.
func AllJobs() []Job {
	return []Job{JobRankings, JobRelated, JobRecommendations}
}

// RankingComputer recomputes every ranking type.
type RankingComputer interface {
	ComputeAllRankings(ctx context.Context) ([]domain.SnapshotResult, error)
}

// RelatedComputer rebuilds the relatedness graph.
type RelatedComputer interface {
	ComputeAllRelatedItems(ctx context.Context) (domain.RelatedBatchResult, error)
}

// RecommendationGenerator regenerates recommendations for recently active users.
type RecommendationGenerator interface {
	GenerateForActiveUsers(ctx context.Context, since time.Time) (recommend.BatchResult, error)
}

// Config holds job intervals. A zero interval disables the job's ticker;
// it can still be run with RunOnce.
type Config struct {
	RankingInterval        time.Duration
	RelatedInterval        time.Duration
	RecommendationInterval time.Duration
	// ActiveUserWindow is how far back reading activity marks a user active.
	ActiveUserWindow time.Duration
	// RunOnStart runs every enabled job once before the first tick.
	RunOnStart bool
}

// DefaultConfig returns the stock schedule.
func DefaultConfig() Config {
	return Config{
		RankingInterval:        time.Hour,
		RelatedInterval:        24 * time.Hour,
		RecommendationInterval: 6 * time.Hour,
		ActiveUserWindow:       7 * 24 * time.Hour,
		RunOnStart:             true,
	}
}

// Scheduler runs the engine's batch jobs.
type Scheduler struct {
	rankings        RankingComputer
	related         RelatedComputer
	recommendations RecommendationGenerator
	cfg             Config
	logger          *slog.Logger
	now             func() time.Time

	running map[Job]*atomic.Bool
	wg      sync.WaitGroup
}

// New creates a scheduler.
func New(rankings RankingComputer, related RelatedComputer, recommendations RecommendationGenerator, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.ActiveUserWindow <= 0 {
		cfg.ActiveUserWindow = DefaultConfig().ActiveUserWindow
	}
	if logger == nil {
		logger = slog.Default()
	}

	running := make(map[Job]*atomic.Bool, len(AllJobs()))
	for _, j := range AllJobs() {
		running[j] = &atomic.Bool{}
	}

	return &Scheduler{
		rankings:        rankings,
		related:         related,
		recommendations: recommendations,
		cfg:             cfg,
		logger:          logger,
		now:             time.Now,
		running:         running,
	}
}

func (s *Scheduler) interval(j Job) time.Duration {
	switch j {
	case JobRankings:
		return s.cfg.RankingInterval
	case JobRelated:
		return s.cfg.RelatedInterval
	case JobRecommendations:
		return s.cfg.RecommendationInterval
	default:
		return 0
	}
}

// Start launches one ticker loop per enabled job and returns immediately.
// Loops stop when ctx is cancelled; use Wait to block until they exit.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range AllJobs() {
		every := s.interval(j)
		if every <= 0 {
			s.logger.Info("Job disabled", "job", j)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, j, every)
		}()
		s.logger.Info("Job scheduled", "job", j, "interval", every)
	}
}

func (s *Scheduler) loop(ctx context.Context, j Job, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.runLogged(ctx, j)
	}

	for {
		select {
		case <-ticker.C:
			s.runLogged(ctx, j)
		case <-ctx.Done():
			return
		}
	}
}

// runLogged runs a job from a ticker. Failures are logged, never returned.
func (s *Scheduler) runLogged(ctx context.Context, j Job) {
	if err := s.RunOnce(ctx, j); err != nil {
		if errors.Is(err, errors.ErrConflict) {
			s.logger.Debug("Job still running, tick skipped", "job", j)
			return
		}
		s.logger.Warn("Job failed", "job", j, "error", err)
	}
}

// Wait blocks until every loop started by Start has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunOnce runs a job now. It returns a conflict error if the same job is
// already running, and the job's joined unit errors otherwise.
func (s *Scheduler) RunOnce(ctx context.Context, j Job) error {
	if !j.Valid() {
		return errors.Validationf("unknown job %q", j)
	}
	flag := s.running[j]
	if !flag.CompareAndSwap(false, true) {
		return fmt.Errorf("job %s: %w", j, errors.ErrConflict)
	}
	defer flag.Store(false)

	start := time.Now()
	log := s.logger.With("job", j)

	switch j {
	case JobRankings:
		results, err := s.rankings.ComputeAllRankings(ctx)
		skipped := 0
		for _, r := range results {
			if r.Skipped {
				skipped++
			}
		}
		log.Info("Rankings computed", "succeeded", len(results), "skipped", skipped, "took", time.Since(start))
		return err

	case JobRelated:
		result, err := s.related.ComputeAllRelatedItems(ctx)
		log.Info("Related graph rebuilt", "processed", result.Processed, "failed", result.Failed, "took", time.Since(start))
		return err

	case JobRecommendations:
		since := s.now().Add(-s.cfg.ActiveUserWindow)
		result, err := s.recommendations.GenerateForActiveUsers(ctx, since)
		log.Info("Recommendations generated", "processed", result.Processed, "failed", result.Failed, "took", time.Since(start))
		return err
	}
	return nil
}
