// Package main - точка входа Daily Code Challenge API.
//
// Один процесс обслуживает HTTP API и фоновые задачи:
// - Упражнение дня (генерация в полночь и по первому запросу)
// - Проверка решений и начисление баллов
// - Пересборка лидерборда и сброс периодов
// - Очистка старых упражнений
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dailycodechallenge/backend/config"
	"github.com/dailycodechallenge/backend/internal/application/command"
	"github.com/dailycodechallenge/backend/internal/application/query"
	"github.com/dailycodechallenge/backend/internal/domain/exercise"
	"github.com/dailycodechallenge/backend/internal/domain/leaderboard"
	"github.com/dailycodechallenge/backend/internal/domain/user"
	"github.com/dailycodechallenge/backend/internal/infrastructure/external/genai"
	"github.com/dailycodechallenge/backend/internal/infrastructure/external/identity"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/local"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/memory"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/postgres"
	"github.com/dailycodechallenge/backend/internal/infrastructure/persistence/redis"
	"github.com/dailycodechallenge/backend/internal/infrastructure/scheduler"
	"github.com/dailycodechallenge/backend/internal/infrastructure/scheduler/jobs"
	apihttp "github.com/dailycodechallenge/backend/internal/interface/http"
	"github.com/dailycodechallenge/backend/internal/interface/http/handlers"
	"github.com/dailycodechallenge/backend/pkg/logger"
	"github.com/dailycodechallenge/backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// storage собирает хранилище пользователей и упражнений.
type storage struct {
	users     userStore
	exercises exercise.Repository
	ping      handlers.Pinger
	close     func()
}

// userStore - репозиторий пользователей, который также служит источником счетов.
type userStore interface {
	user.Repository
	leaderboard.ScoreSource
}

// cacheLayer собирает KV-хранилище и кеш упражнения дня.
type cacheLayer struct {
	store     redis.Store
	exercises exercise.Cache
	ping      handlers.Pinger
	close     func()
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	slog.SetDefault(log)

	if err := timeutil.SetLocation(cfg.App.Timezone); err != nil {
		return fmt.Errorf("failed to set timezone: %w", err)
	}
	clock := timeutil.SystemClock()

	log.Info("starting Daily Code Challenge API",
		"app", cfg.App.Name,
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ И КЕШ
	// ─────────────────────────────────────────────────────────────────────────
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	caches, err := openCache(cfg, log)
	if err != nil {
		return err
	}
	defer caches.close()

	userCache := redis.NewUserCache(caches.store)
	leaderboardCache := redis.NewLeaderboardCache(caches.store)
	limiter := redis.NewChallengeLimiter(caches.store, cfg.Limits.MoreChallengesPerDay, cfg.Limits.MoreChallengesWait)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ВНЕШНИЕ СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	var generator interface {
		exercise.Generator
		exercise.Reviewer
	} = genai.Unavailable{}

	if cfg.GenAI.APIKey != "" {
		client, err := genai.NewClient(genai.Config{
			APIKey:         cfg.GenAI.APIKey,
			BaseURL:        cfg.GenAI.BaseURL,
			ExerciseModel:  cfg.GenAI.ExerciseModel,
			ReviewModel:    cfg.GenAI.ReviewModel,
			RequestTimeout: cfg.GenAI.RequestTimeout,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to create generator client: %w", err)
		}
		generator = client
	} else {
		log.Warn("OPENAI_API_KEY is not set, generation and review are disabled")
	}

	var verifier identity.Provider = identity.DevProvider{}
	if cfg.Identity.Disabled {
		log.Warn("identity verification disabled, accepting dev tokens")
	} else {
		provider, err := identity.NewFirebaseProvider(ctx, identity.Config{
			ProjectID:       cfg.Identity.ProjectID,
			CredentialsFile: cfg.Identity.CredentialsFile,
			Logger:          log,
		})
		if err != nil {
			return fmt.Errorf("failed to init identity provider: %w", err)
		}
		verifier = provider
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. КОМАНДЫ И ЗАПРОСЫ
	// ─────────────────────────────────────────────────────────────────────────
	grading := command.NewApplyGradingHandler(store.users, userCache, command.ApplyGradingConfig{
		Clock:   clock,
		UserTTL: cfg.Cache.UserTTL,
		Logger:  log,
	})
	provisioner := command.NewProvisionExerciseHandler(store.exercises, caches.exercises, generator, command.ProvisionExerciseConfig{
		Clock:       clock,
		ExerciseTTL: cfg.Cache.ExerciseTTL,
		MaxAttempts: cfg.GenAI.MaxAttempts,
		RetryDelay:  cfg.GenAI.RetryDelay,
		CallTimeout: cfg.GenAI.RequestTimeout,
		Logger:      log,
	})
	rebuild := command.NewRebuildLeaderboardHandler(store.users, leaderboardCache, cfg.Cache.LeaderboardTTL, clock, log)
	reset := command.NewResetScoresHandler(store.users, rebuild, log)

	deps := apihttp.Dependencies{
		GetDailyExercise:        query.NewGetDailyExerciseHandler(provisioner, log),
		CheckCode:               command.NewCheckCodeHandler(store.users, store.exercises, caches.exercises, generator, grading, clock, log),
		MoreChallenges:          command.NewMoreChallengesHandler(limiter, generator, clock, log),
		GetLeaderboard:          query.NewGetLeaderboardAndRankHandler(leaderboardCache, store.users, store.users, log),
		CheckUsername:           query.NewCheckUsernameHandler(store.users),
		CheckUsernameAndSubject: query.NewCheckUsernameAndSubjectHandler(store.users),
		GetUserData:             query.NewGetUserDataHandler(store.users, userCache, cfg.Cache.UserTTL, log),
		LinkUser:                command.NewLinkUserHandler(store.users, clock, log),
		UpdateUsername: command.NewUpdateUsernameHandler(store.users, userCache, command.UpdateUsernameConfig{
			Clock:    clock,
			Cooldown: cfg.Limits.UsernameCooldown,
			UserTTL:  cfg.Cache.UserTTL,
			Logger:   log,
		}),
		CreateCustomToken: command.NewCreateCustomTokenHandler(store.users, verifier, log),
		Verifier:          verifier,
		Features:          cfg.Features,
		Logger:            log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(scheduler.SchedulerConfig{
			Logger:   log,
			Timezone: timeutil.Location(),
			Now:      clock.Now,
		})
		err := jobs.Register(sched, jobs.Dependencies{
			Rebuilder:   rebuild,
			Resetter:    reset,
			Provisioner: provisioner,
			Archive:     store.exercises,
			Alerter:     jobs.NewLogAlerter(log),
			Clock:       clock,
			Logger:      log,
		}, cfg.Scheduler, timeutil.Location())
		if err != nil {
			return fmt.Errorf("failed to register jobs: %w", err)
		}

		if err := jobs.ApplyFeatureFlags(sched, cfg.Features, log); err != nil {
			log.Warn("some feature-gated jobs stay enabled", "error", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("database", handlers.NewPingCheck(store.ping))
	health.AddOptionalCheck("cache", handlers.NewPingCheck(caches.ping))
	deps.HealthChecker = health

	server := apihttp.NewServer(apihttp.ConfigFrom(cfg), deps)
	errCh := server.StartAsync()

	log.Info("Daily Code Challenge API is running", "address", apihttp.ConfigFrom(cfg).Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// openStorage подключается к PostgreSQL или, без DATABASE_URL, берёт память.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL is not set, using in-memory storage")
		return &storage{
			users:     memory.NewUserRepository(),
			exercises: memory.NewExerciseRepository(),
			ping:      noopPinger{},
			close:     func() {},
		}, nil
	}

	log.Info("connecting to database...")
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	return &storage{
		users:     postgres.NewUserRepository(conn),
		exercises: postgres.NewExerciseRepository(conn),
		ping:      conn,
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

// openCache подключается к Redis или, если он отключён, использует память и файл.
func openCache(cfg *config.Config, log *slog.Logger) (*cacheLayer, error) {
	if cfg.Redis.Disabled {
		log.Warn("redis disabled, using in-memory cache and local exercise file", "dir", cfg.App.LocalDataDir)
		file, err := local.NewExerciseFile(cfg.App.LocalDataDir)
		if err != nil {
			return nil, err
		}
		return &cacheLayer{
			store:     memory.NewKV(),
			exercises: file,
			ping:      noopPinger{},
			close:     func() {},
		}, nil
	}

	log.Info("connecting to Redis...")
	cache, err := redis.NewCache(redis.Config{
		URL:          cfg.Redis.URL,
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
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Redis connection established")

	return &cacheLayer{
		store:     cache,
		exercises: redis.NewExerciseCache(cache),
		ping:      cache,
		close: func() {
			if err := cache.Close(); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("failed to close redis", "error", err)
			}
		},
	}, nil
}

type noopPinger struct{}

func (noopPinger) Ping(context.Context) error { return nil }
