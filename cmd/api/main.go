// Package main is the entry point of the markbook API service.
//
// The architecture follows Clean Architecture and DDD:
// - Domain: curriculum, assessment, ledger, and snapshot business logic
// - Application: use case orchestration (Commands/Queries/Event handlers)
// - Infrastructure: PostgreSQL and Redis persistence, in-process messaging
// - Interface: HTTP endpoints
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/markbook-hub/markbook/config"
	"github.com/markbook-hub/markbook/internal/application/command"
	"github.com/markbook-hub/markbook/internal/application/eventhandler"
	"github.com/markbook-hub/markbook/internal/application/query"
	"github.com/markbook-hub/markbook/internal/domain/assessment"
	"github.com/markbook-hub/markbook/internal/domain/progress"
	"github.com/markbook-hub/markbook/internal/domain/report"
	"github.com/markbook-hub/markbook/internal/domain/shared"
	"github.com/markbook-hub/markbook/internal/infrastructure/messaging"
	"github.com/markbook-hub/markbook/internal/infrastructure/persistence/postgres"
	"github.com/markbook-hub/markbook/internal/infrastructure/persistence/redis"
	httpserver "github.com/markbook-hub/markbook/internal/interface/http"
	"github.com/markbook-hub/markbook/internal/interface/http/handlers"
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
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})
	log.Info("starting markbook api",
		logger.String("version", cfg.App.Version),
		logger.String("environment", string(cfg.App.Environment)),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// Infrastructure: PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	if cfg.Database.RunMigrations {
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("database migrations applied")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Infrastructure: Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		cache         *redis.Cache
		reportCache   report.Cache
		progressCache progress.Cache
	)
	if !cfg.Redis.Disabled {
		cache, err = redis.NewCache(redis.Config{
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
		progressCache = redis.NewProgressCache(cache)
		log.Info("redis cache connected", logger.String("addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)))
	} else {
		log.Warn("redis disabled, snapshot reads always regenerate")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Repositories and domain services
	// ─────────────────────────────────────────────────────────────────────────
	curriculumRepo := postgres.NewCurriculumRepository(conn)
	schoolRepo := postgres.NewSchoolRepository(conn)
	schemaRepo := postgres.NewSchemaRepository(conn)
	assessmentRepo := postgres.NewAssessmentRepository(conn)
	attemptRepo := postgres.NewAttemptRepository(conn)
	reportRepo := postgres.NewReportRepository(conn)
	progressRepo := postgres.NewProgressRepository(conn)

	ledger := assessment.NewLedger(attemptRepo)
	resolver := assessment.NewOptionResolver(schemaRepo)

	// ─────────────────────────────────────────────────────────────────────────
	// Event bus and handlers
	// ─────────────────────────────────────────────────────────────────────────
	// Synchronous delivery: the cache invalidation for attempt.recorded must
	// land before the attempt write returns, or a fetch racing the write can
	// serve the stale cached snapshot.
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false})
	defer bus.Close()

	invalidator := eventhandler.NewOnAttemptRecordedHandler(
		reportCache, progressCache, curriculumRepo, slog.Default())
	if err := bus.Subscribe(shared.EventAttemptRecorded, invalidator); err != nil {
		return fmt.Errorf("subscribe event handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	createSchemaHandler := command.NewCreateSchemaHandler(schemaRepo, log)
	setOptionHandler := command.NewSetOptionHandler(schemaRepo, curriculumRepo, bus, log)
	createAssessmentHandler := command.NewCreateAssessmentHandler(schemaRepo, assessmentRepo, curriculumRepo, bus, log)
	recordAttemptHandler := command.NewRecordAttemptHandler(assessmentRepo, schemaRepo, ledger, resolver, bus, log)

	stateHandler := query.NewGetAssessmentStateHandler(assessmentRepo, schemaRepo, ledger, resolver)
	reportHandler := query.NewGetOrGenerateReportHandler(
		schemaRepo, assessmentRepo, ledger, resolver, curriculumRepo, schoolRepo, reportRepo, reportCache, log)
	progressHandler := query.NewGetOrGenerateProgressHandler(
		schemaRepo, assessmentRepo, ledger, resolver, curriculumRepo, progressRepo, progressCache, log)

	// ─────────────────────────────────────────────────────────────────────────
	// Health checks
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("postgres", handlers.NewDatabaseCheck(conn))
	if cache != nil {
		health.AddCheck("redis", handlers.NewCacheCheck(cache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	server := httpserver.NewServer(httpserver.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         cfg.HTTP.EnableCORS,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
	}, httpserver.Dependencies{
		CreateSchemaHandler:          createSchemaHandler,
		SetOptionHandler:             setOptionHandler,
		CreateAssessmentHandler:      createAssessmentHandler,
		RecordAttemptHandler:         recordAttemptHandler,
		GetAssessmentStateHandler:    stateHandler,
		GetOrGenerateReportHandler:   reportHandler,
		GetOrGenerateProgressHandler: progressHandler,
		Logger:                       log,
		HealthChecker:                health,
	})

	serverErr := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("markbook api stopped")
	return nil
}

// connectPostgres builds a connection from the URL when set, otherwise from
// the individual settings.
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
