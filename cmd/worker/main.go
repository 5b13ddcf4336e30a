// Package main is the entry point of the markbook background worker.
//
// The worker runs the scheduled jobs, currently the report snapshot warm-up.
// It shares the infrastructure wiring with the API service but exposes no
// HTTP surface. Correctness never depends on the worker: the read path
// regenerates stale snapshots on demand, the worker only keeps the stored
// and cached copies fresh.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/markbook-hub/markbook/config"
	"github.com/markbook-hub/markbook/internal/application/query"
	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/infrastructure/persistence/postgres"
	"github.com/markbook-hub/markbook/internal/infrastructure/persistence/redis"
	"github.com/markbook-hub/markbook/internal/infrastructure/scheduler"
	"github.com/markbook-hub/markbook/internal/infrastructure/scheduler/jobs"
	"github.com/markbook-hub/markbook/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})
	log.Info("starting markbook worker",
		logger.String("version", cfg.App.Version),
		logger.String("environment", string(cfg.App.Environment)),
	)

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, nothing to run")
		return nil
	}

	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if cfg.Database.RunMigrations {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	var reportCache report.Cache
	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer cache.Close()

		reportCache = redis.NewReportCache(cache)
	}

	curriculumRepo := postgres.NewCurriculumRepository(conn)
	schoolRepo := postgres.NewSchoolRepository(conn)
	schemaRepo := postgres.NewSchemaRepository(conn)
	assessmentRepo := postgres.NewAssessmentRepository(conn)
	attemptRepo := postgres.NewAttemptRepository(conn)
	reportRepo := postgres.NewReportRepository(conn)

	ledger := assessment.NewLedger(attemptRepo)
	resolver := assessment.NewOptionResolver(schemaRepo)

	reportHandler := query.NewGetOrGenerateReportHandler(
		schemaRepo, assessmentRepo, ledger, resolver, curriculumRepo, schoolRepo, reportRepo, reportCache, log)

	sched := scheduler.NewScheduler(scheduler.Config{Logger: slog.Default()})

	warmJob := jobs.NewWarmReportsJob(reportRepo, reportHandler, slog.Default(), jobs.WarmReportsConfig{
		SchemaIDs: cfg.Scheduler.WarmReportSchemas,
		Timeout:   cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(warmJob, scheduler.NewIntervalSchedule(cfg.Scheduler.WarmReportsInterval)); err != nil {
		return fmt.Errorf("register warm-up job: %w", err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("scheduler started",
		logger.String("warm_reports_interval", cfg.Scheduler.WarmReportsInterval.String()),
		logger.Int("warm_report_schemas", len(cfg.Scheduler.WarmReportSchemas)),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", logger.Err(err))
	}

	log.Info("markbook worker stopped")
	return nil
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	return postgres.NewConnection(ctx, pgCfg)
}
