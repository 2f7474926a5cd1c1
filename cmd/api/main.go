package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"talentflow/internal/api"
	"talentflow/internal/auth"
	"talentflow/internal/config"
	"talentflow/internal/database"
	"talentflow/internal/events"
	"talentflow/internal/fault"
	"talentflow/internal/seed"
	"talentflow/internal/storage"
	"talentflow/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return err
	}
	logger.Info("database ready", slog.String("driver", cfg.Database.Driver))

	faults := fault.New(cfg.Simulation, 0)
	s := store.New(db,
		store.WithFaults(faults),
		store.WithLogger(logger),
		store.WithTransitionRules(cfg.Pipeline.EnforceTransitions),
	)
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("close store failed", slog.Any("error", err))
		}
	}()

	if cfg.Seed.OnStart {
		seeded, err := s.EnsureSeeded(ctx, func() seed.Dataset {
			return seed.Generate(newRand(cfg.Seed.RandomSeed), seedCounts(cfg.Seed), time.Now())
		})
		if err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
		logger.Info("seed check complete", slog.Bool("seeded", seeded))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	deps := api.Dependencies{
		Store:            s,
		Publisher:        events.NewRedisPublisher(redisClient),
		Queue:            asynqClient,
		Subscriber:       redisClient,
		RateRedis:        redisClient,
		Logger:           logger,
		Roster:           cfg.Team.Roster(),
		AllowedOrigins:   cfg.API.Origins(),
		ClamdAddr:        cfg.Clamd.Addr,
		RequireForWrites: cfg.Auth.RequireForWrites,
		Delay:            faults.Delay,
	}

	if cfg.MinIO.Enabled() {
		storageClient, err := storage.NewClient(ctx, cfg.MinIO)
		if err != nil {
			return fmt.Errorf("init storage client: %w", err)
		}
		deps.Storage = storageClient
		logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))
	}

	if cfg.Auth.JWTSecret != "" {
		tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Team.Roster())
		if err != nil {
			return fmt.Errorf("init token service: %w", err)
		}
		deps.Tokens = tokens
	}

	if err := api.RegisterValidators(); err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("unwrap db: %w", err)
	}
	router := api.NewRouter(cfg, logger, sqlDB)
	api.RegisterRoutes(router, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func seedCounts(c config.SeedConfig) seed.Counts {
	return seed.Counts{Jobs: c.Jobs, Candidates: c.Candidates, Assessments: c.Assessments}
}

func newRand(seedValue int64) *rand.Rand {
	if seedValue == 0 {
		seedValue = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seedValue))
}
