package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/logan676/booklibrio-engine/internal/config"
	"github.com/logan676/booklibrio-engine/internal/logger"
	"github.com/logan676/booklibrio-engine/internal/ranking"
	"github.com/logan676/booklibrio-engine/internal/recommend"
	"github.com/logan676/booklibrio-engine/internal/related"
	"github.com/logan676/booklibrio-engine/internal/scheduler"
)

// SchedulerHandle wraps the batch scheduler with its context for lifecycle management.
type SchedulerHandle struct {
	*scheduler.Scheduler
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. In-flight jobs see a cancelled context
// and Shutdown waits for their loops to exit.
func (h *SchedulerHandle) Shutdown() error {
	h.cancel()
	h.Wait()
	return nil
}

// ProvideScheduler provides the batch scheduler without starting it.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	manager := do.MustInvoke[*ranking.Manager](i)
	builder := do.MustInvoke[*related.Builder](i)
	assembler := do.MustInvoke[*recommend.Assembler](i)

	s := scheduler.New(manager, builder, assembler, scheduler.Config{
		RankingInterval:        cfg.Scheduler.RankingInterval,
		RelatedInterval:        cfg.Scheduler.RelatedInterval,
		RecommendationInterval: cfg.Scheduler.RecommendationInterval,
		ActiveUserWindow:       cfg.Scheduler.ActiveUserWindow,
		RunOnStart:             cfg.Scheduler.RunOnStart,
	}, log.With("component", "scheduler"))

	return &SchedulerHandle{Scheduler: s, cancel: func() {}}, nil
}

// Start launches the scheduler's job loops in the background.
func (h *SchedulerHandle) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.Scheduler.Start(ctx)
}
