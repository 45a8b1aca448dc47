// Package main provides the entry point for the BookLibrio ranking and recommendation engine.
//
// Usage:
//
//	engine [flags]                      # serve: run the job scheduler until SIGINT/SIGTERM
//	engine run <job> [flags]            # run one job (rankings, related, recommendations, all) and exit
//	engine ranking <type> [flags]       # print the active ranking as JSON
//	engine recommend <user-id> [flags]  # print a user's recommendations as JSON, generating if needed
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"
	"github.com/samber/do/v2"

	"github.com/logan676/booklibrio-engine/internal/di"
	"github.com/logan676/booklibrio-engine/internal/di/providers"
	"github.com/logan676/booklibrio-engine/internal/domain"
	"github.com/logan676/booklibrio-engine/internal/logger"
	"github.com/logan676/booklibrio-engine/internal/ranking"
	"github.com/logan676/booklibrio-engine/internal/recommend"
	"github.com/logan676/booklibrio-engine/internal/scheduler"
)

func main() {
	command, operand, args, err := parseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Create DI container
	injector := di.NewContainer(args)

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap engine: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	switch command {
	case "serve":
		err = serve(ctx, injector, log)
	case "run":
		err = runJobs(ctx, injector, log, operand)
	case "ranking":
		err = printRanking(ctx, injector, operand)
	case "recommend":
		err = printRecommendations(ctx, injector, operand)
	}
	stop()

	// The DI container handles shutdown order automatically
	if shutdownErr := injector.Shutdown(); shutdownErr != nil {
		log.Error("Shutdown error", "error", shutdownErr)
	}

	if err != nil {
		log.WithError(err).Error("Command failed", "command", command)
		os.Exit(1)
	}
}

// parseCommand splits os.Args into a command, its operand and the remaining flags.
func parseCommand(args []string) (command, operand string, rest []string, err error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "serve", "", args, nil
	}

	command = args[0]
	switch command {
	case "serve":
		return command, "", args[1:], nil
	case "run", "ranking", "recommend":
		if len(args) < 2 || strings.HasPrefix(args[1], "-") {
			return "", "", nil, fmt.Errorf("usage: engine %s <%s> [flags]", command, operandName(command))
		}
		return command, args[1], args[2:], nil
	default:
		return "", "", nil, fmt.Errorf("unknown command %q (want serve, run, ranking or recommend)", command)
	}
}

func operandName(command string) string {
	switch command {
	case "run":
		return "job"
	case "ranking":
		return "type"
	default:
		return "user-id"
	}
}

// serve starts the metrics endpoint and job loops and blocks until ctx is cancelled.
func serve(ctx context.Context, injector do.Injector, log *logger.Logger) error {
	_ = do.MustInvoke[*providers.MetricsServerHandle](injector)

	sched := do.MustInvoke[*providers.SchedulerHandle](injector)
	sched.Start()

	log.Info("Engine running")
	<-ctx.Done()
	log.Info("Shutting down engine gracefully...")
	return nil
}

// runJobs runs one job, or every job in order for "all", and returns the joined errors.
func runJobs(ctx context.Context, injector do.Injector, log *logger.Logger, operand string) error {
	sched := do.MustInvoke[*providers.SchedulerHandle](injector)

	jobs := []scheduler.Job{scheduler.Job(operand)}
	if operand == "all" {
		jobs = scheduler.AllJobs()
	}

	var errs []error
	for _, job := range jobs {
		jobLog := log.ForUnit("job", string(job))
		jobLog.Info("Running job")
		if err := sched.RunOnce(ctx, job); err != nil {
			jobLog.WithError(err).Warn("Job finished with errors")
			errs = append(errs, err)
			continue
		}
		jobLog.Info("Job complete")
	}
	return errors.Join(errs...)
}

func printRanking(ctx context.Context, injector do.Injector, operand string) error {
	manager := do.MustInvoke[*ranking.Manager](injector)

	view, err := manager.GetActiveRanking(ctx, domain.RankingType(operand))
	if err != nil {
		return err
	}
	return writeJSON(view)
}

func printRecommendations(ctx context.Context, injector do.Injector, userID string) error {
	assembler := do.MustInvoke[*recommend.Assembler](injector)

	page, err := assembler.Serve(ctx, userID, 0)
	if err != nil {
		return err
	}
	return writeJSON(page)
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
