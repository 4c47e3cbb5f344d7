// Package main provides the viewiq command line: the HTTP API, the export worker and migrations
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/viewiq/app/logger"
	"github.com/amirphl/viewiq/app/scheduler"
	"github.com/amirphl/viewiq/app/worker"
	"github.com/amirphl/viewiq/config"
	"github.com/amirphl/viewiq/migrations"
	"github.com/spf13/cobra"
)

// @title ViewIQ API
// @version 1.0
// @description Brand safety, custom target lists and ads analytics.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "viewiq",
		Short:         "ViewIQ brand safety and ads analytics backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newWorkerCmd(), newMigrateCmd())
	return root
}

// loadConfig loads the configuration and installs the process logger
func loadConfig() (*config.ProductionConfig, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.Logging)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic schedulers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg, migrate || cfg.Database.AutoMigrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(cfg *config.ProductionConfig, migrate bool) error {
	ctx, stop := signalContext()
	defer stop()

	slog.Info("starting viewiq api", "version", cfg.Deployment.Version, "environment", cfg.Deployment.Environment)

	app, err := initializeApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if migrate {
		if err := migrations.Up(app.sqlDB); err != nil {
			return err
		}
	}

	if err := ensureSuperuser(ctx, app.userRepo, cfg.Admin.Email); err != nil {
		return err
	}

	if app.redis != nil {
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(ctx, app.redis, cfg.Cache.HealthCheckPeriod))
	}
	if cfg.Scheduler.Enabled {
		sweeper := scheduler.NewExportSweeper(app.exportFlow, cfg.Scheduler.SweepInterval, cfg.Scheduler.StaleAfter)
		app.stopFuncs = append(app.stopFuncs, sweeper.Start(ctx))
	}

	app.router.SetupRoutes()

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		slog.Info("server starting", "address", address)
		serverErr <- app.router.Start(address)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down gracefully")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.router.GetApp().ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("error during shutdown", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func newWorkerCmd() *cobra.Command {
	var (
		concurrency int
		jobTimeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume export jobs from the queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			core, err := initializeCore(ctx, cfg)
			if err != nil {
				return err
			}
			defer core.Close()

			if concurrency <= 0 {
				concurrency = cfg.Queue.Prefetch
			}
			hostname, _ := os.Hostname()
			w := worker.NewExportWorker(core.queue, core.exportFlow, "viewiq-worker-"+hostname, concurrency, jobTimeout)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			slog.Info("worker stopped")
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "concurrent jobs (defaults to the queue prefetch)")
	cmd.Flags().DurationVar(&jobTimeout, "job-timeout", 30*time.Minute, "upper bound for a single export")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(fn func(db *sql.DB) error) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openMigrationDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(db)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE:  run(migrations.Up),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE:  run(migrations.Down),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied state of every migration",
			RunE:  run(migrations.Status),
		},
	)
	return cmd
}
