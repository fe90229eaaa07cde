package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/crash-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/crash-data-etl/internal/observability"
)

func newServeCommand() *cobra.Command {
	var (
		o          overrides
		schedule   string
		runOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule and serve health, metrics and maps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd, &o, observability.NewMetrics())
			if err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("schedule") {
				a.cfg.Schedule = schedule
			}
			return serve(cmd.Context(), a, runOnStart)
		},
	}
	o.register(cmd)
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression for runs (default SCHEDULE or 0 3 * * *)")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run once immediately after starting")
	return cmd
}

func serve(ctx context.Context, a *app, runOnStart bool) error {
	logger := a.logger
	p := a.newPipeline(nil)
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, p, a.cfg.MapDir, logger)

	cronLogger := cronLog{logger}
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	job := cron.FuncJob(func() {
		// Failures are logged and reported on /status; the next tick retries.
		_, _ = p.Run(ctx)
	})
	if _, err := c.AddJob(a.cfg.Schedule, job); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", a.cfg.Schedule, err)
	}

	go func() {
		logger.Info("http server listening", "addr", a.cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	c.Start()
	logger.Info("scheduler started", "schedule", a.cfg.Schedule)
	if runOnStart {
		// Wrapped so the run takes the same SkipIfStillRunning slot as ticks.
		go c.Entries()[0].WrappedJob.Run()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-c.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("run still in progress at shutdown")
	}

	logger.Info("shutdown complete")
	return nil
}

// cronLog adapts slog to cron's logger interface.
type cronLog struct {
	logger *slog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
