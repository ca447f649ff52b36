// Package main is the entry point for the Practice Hub engine server.
//
// The engine tracks gamified practice sessions for clinical activities:
// session lifecycle, progress aggregation, achievements, recommendations
// and leaderboards, exposed over a REST API.
//
// Architecture follows Clean Architecture and DDD:
//   - Domain: business logic without external dependencies
//   - Application: use case orchestration (Commands/Queries)
//   - Infrastructure: repositories, caches, messaging
//   - Interface: HTTP endpoints
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thrivepath/practice-hub/config"
	"github.com/thrivepath/practice-hub/internal/application/command"
	"github.com/thrivepath/practice-hub/internal/application/query"
	"github.com/thrivepath/practice-hub/internal/domain/analytics"
	"github.com/thrivepath/practice-hub/internal/domain/catalog"
	"github.com/thrivepath/practice-hub/internal/domain/progress"
	"github.com/thrivepath/practice-hub/internal/domain/session"
	"github.com/thrivepath/practice-hub/internal/domain/shared"
	"github.com/thrivepath/practice-hub/internal/infrastructure/messaging"
	"github.com/thrivepath/practice-hub/internal/infrastructure/persistence/memory"
	"github.com/thrivepath/practice-hub/internal/infrastructure/persistence/postgres"
	"github.com/thrivepath/practice-hub/internal/infrastructure/persistence/redis"
	httpserver "github.com/thrivepath/practice-hub/internal/interface/http"
	"github.com/thrivepath/practice-hub/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting practice hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. PERSISTENCE
	// ─────────────────────────────────────────────────────────────────────────
	var (
		catalogRepo  catalog.Repository
		sessionRepo  session.Repository
		progressRepo progress.Repository
		recorder     analytics.Recorder
		dbConn       *postgres.Connection
	)

	if cfg.Database.URL == "" {
		// In-memory mode for local development: no external stores, a small
		// seeded catalog, state lost on restart.
		log.Warn("DATABASE_URL not set, running with in-memory persistence")

		memSessions := memory.NewSessionRepository()
		memCatalog := memory.NewCatalogRepository(memSessions)
		memCatalog.Seed(devCatalog()...)

		catalogRepo = memCatalog
		sessionRepo = memSessions
		progressRepo = memory.NewProgressRepository()
		recorder = memory.NewAnalyticsRecorder()
	} else {
		log.Info("connecting to database...")
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if err := dbConn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		log.Info("database connection established")

		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
		}

		catalogRepo = postgres.NewCatalogRepository(dbConn)
		sessionRepo = postgres.NewSessionRepository(dbConn)
		progressRepo = postgres.NewProgressRepository(dbConn, cfg.Engine.UpdateMaxAttempts)
		recorder = postgres.NewAnalyticsRecorder(dbConn)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		redisCache       *redis.Cache
		leaderboardCache progress.LeaderboardCache
	)

	if !cfg.Redis.Disabled && cfg.Redis.URL != "" {
		log.Info("connecting to Redis...")
		redisCache, err = redis.NewCacheFromURL(cfg.Redis.URL)
		if err != nil {
			log.Warn("failed to connect to Redis, leaderboard caching disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
			leaderboardCache = redis.NewLeaderboardCache(redisCache, cfg.Redis.LeaderboardTTL)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")

	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log

	var eventBus shared.EventBus
	var closeBus func() error

	if redisCache != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisCache.Client(),
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create event bus: %w", err)
		}
		eventBus = redisBus
		closeBus = redisBus.Close
	} else {
		memBus := messaging.NewInMemoryEventBus(busConfig)
		eventBus = memBus
		closeBus = memBus.Close
	}
	defer func() {
		log.Info("closing event bus...")
		_ = closeBus()
	}()

	if err := messaging.WireSubscribers(eventBus, messaging.SubscriberConfig{
		LeaderboardCache: leaderboardCache,
		Logger:           log,
	}); err != nil {
		return fmt.Errorf("failed to wire event subscribers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	evaluator := progress.NewEvaluator(progress.DefaultRules())

	openSession := command.NewOpenSessionHandler(catalogRepo, sessionRepo, progressRepo, recorder, eventBus)
	completeSession := command.NewCompleteSessionHandler(
		sessionRepo, progressRepo, evaluator, recorder, eventBus, log, cfg.Engine.XPMultiplier,
	)
	abandonSession := command.NewAbandonSessionHandler(sessionRepo, recorder, eventBus)
	recordInteraction := command.NewRecordInteractionHandler(sessionRepo, recorder)

	getProgress := query.NewGetProgressHandler(progressRepo)
	getRecommendations := query.NewGetRecommendationsHandler(catalogRepo)
	getLeaderboard := query.NewGetLeaderboardHandler(progressRepo, leaderboardCache)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout

	httpDeps := httpserver.Dependencies{
		OpenSessionHandler:        openSession,
		CompleteSessionHandler:    completeSession,
		AbandonSessionHandler:     abandonSession,
		RecordInteractionHandler:  recordInteraction,
		GetProgressHandler:        getProgress,
		GetRecommendationsHandler: getRecommendations,
		GetLeaderboardHandler:     getLeaderboard,
		CatalogRepo:               catalogRepo,
		Logger:                    log,
		HealthChecker:             &storeHealthChecker{db: dbConn, cache: redisCache},
	}

	server := httpserver.NewServer(httpConfig, httpDeps)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("practice hub is running", logger.String("http_address", server.Address()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	// Event bus, Redis and database close via defers.
	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger builds the structured logger from the observability config.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	return logger.New(opts)
}

// storeHealthChecker reports the health of backing stores. Nil stores are
// skipped, so in-memory mode always reports healthy.
type storeHealthChecker struct {
	db    *postgres.Connection
	cache *redis.Cache
}

func (h *storeHealthChecker) Check(ctx context.Context) httpserver.HealthStatus {
	status := httpserver.HealthStatus{
		Healthy: true,
		Ready:   true,
		Checks:  make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			status.Healthy = false
			status.Ready = false
			status.Message = "database unreachable"
			status.Checks["database"] = err.Error()
		} else {
			status.Checks["database"] = "ok"
		}
	} else {
		status.Checks["database"] = "in-memory"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			// Leaderboard reads fall back to the repository, so a dead cache
			// degrades service without failing readiness.
			status.Checks["redis"] = err.Error()
		} else {
			status.Checks["redis"] = "ok"
		}
	}

	return status
}

// devCatalog returns the activities seeded in in-memory mode.
func devCatalog() []*catalog.AppDefinition {
	return []*catalog.AppDefinition{
		{
			ID:                "breathing-basics",
			Name:              "Breathing Basics",
			Kind:              catalog.KindExercise,
			Difficulty:        catalog.DifficultyBeginner,
			EstimatedDuration: 5 * time.Minute,
			EvidenceBased:     true,
			MaxScore:          100,
			PopularityScore:   80,
			ClinicalRating:    4.5,
			Active:            true,
			Position:          1,
		},
		{
			ID:                "thought-record",
			Name:              "Thought Record Worksheet",
			Kind:              catalog.KindWorksheet,
			Difficulty:        catalog.DifficultyIntermediate,
			EstimatedDuration: 15 * time.Minute,
			EvidenceBased:     true,
			MaxScore:          100,
			PopularityScore:   65,
			ClinicalRating:    4.8,
			Active:            true,
			Position:          2,
		},
		{
			ID:                "mood-check",
			Name:              "Daily Mood Check-In",
			Kind:              catalog.KindAssessment,
			Difficulty:        catalog.DifficultyBeginner,
			EstimatedDuration: 3 * time.Minute,
			EvidenceBased:     false,
			MaxScore:          50,
			PopularityScore:   90,
			ClinicalRating:    3.9,
			Active:            true,
			Position:          3,
		},
		{
			ID:                "sleep-hygiene",
			Name:              "Sleep Hygiene Primer",
			Kind:              catalog.KindPsychoeducation,
			Difficulty:        catalog.DifficultyBeginner,
			EstimatedDuration: 10 * time.Minute,
			EvidenceBased:     true,
			MaxScore:          100,
			PopularityScore:   55,
			ClinicalRating:    4.2,
			Active:            true,
			Position:          4,
		},
	}
}
