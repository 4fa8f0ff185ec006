package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/travelcms/internal/db"
	"github.com/rpattn/travelcms/internal/ingestion"
	"github.com/rpattn/travelcms/internal/queue"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		migrate        bool
		embeddedWorker bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if migrate && cfg.Store.Driver == "postgres" {
				if err := db.MigrateUp(cfg.DB()); err != nil {
					return err
				}
				log.Info("migrations applied")
			}

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			var (
				dispatcher ingestion.Dispatcher
				inline     *queue.InlineDispatcher
			)
			if cfg.Queue.Mode == "asynq" {
				client := asynq.NewClient(a.redisOpt())
				defer client.Close()
				dispatcher = queue.NewAsynqDispatcher(client, cfg.Queue.Name)
			} else {
				inline = queue.NewInlineDispatcher(a.runner,
					queue.WithJobTimeout(cfg.Queue.JobTimeout),
					queue.WithInlineLogger(log),
				)
				dispatcher = inline
			}

			uploads := a.uploadService(dispatcher)
			translations := a.translationService()

			server := &http.Server{
				Addr:              cfg.HTTP.Addr,
				Handler:           a.routes(uploads, translations),
				ReadTimeout:       cfg.HTTP.ReadTimeout,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("http server listening", "addr", cfg.HTTP.Addr, "queue", cfg.Queue.Mode)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			if embeddedWorker && cfg.Queue.Mode == "asynq" {
				g.Go(func() error {
					return runWorker(gctx, a)
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()

				err := server.Shutdown(shutdownCtx)
				if inline != nil {
					if waitErr := inline.Shutdown(shutdownCtx); waitErr != nil {
						log.Warn("upload workers still running at shutdown", "error", waitErr)
					}
				}
				if waitErr := translations.Shutdown(shutdownCtx); waitErr != nil {
					log.Warn("bulk translations still running at shutdown", "error", waitErr)
				}
				return err
			})
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving (postgres store)")
	cmd.Flags().BoolVar(&embeddedWorker, "worker", false, "also process queued uploads in this process (asynq mode)")
	return cmd
}
