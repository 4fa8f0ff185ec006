package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rpattn/travelcms/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
)

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued upload jobs from Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			if cfg.Queue.Mode != "asynq" {
				return fmt.Errorf("worker requires queue.mode asynq, got %q", cfg.Queue.Mode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			return runWorker(ctx, a)
		},
	}
}

// runWorker serves upload tasks until ctx is done.
func runWorker(ctx context.Context, a *app) error {
	queues := map[string]int{"default": 1}
	if a.cfg.Queue.Name != "" {
		queues = map[string]int{a.cfg.Queue.Name: 1}
	}
	srv := asynq.NewServer(a.redisOpt(), asynq.Config{
		Concurrency: a.cfg.Queue.Concurrency,
		Queues:      queues,
	})

	worker := queue.NewWorker(a.runner, a.log)
	if err := srv.Start(worker.Handler()); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	a.log.Info("worker started", "queues", queues, "concurrency", a.cfg.Queue.Concurrency)

	<-ctx.Done()
	srv.Shutdown()
	a.log.Info("worker stopped")
	return nil
}
