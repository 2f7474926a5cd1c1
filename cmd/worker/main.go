package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"talentflow/internal/config"
	"talentflow/internal/database"
	"talentflow/internal/events"
	"talentflow/internal/metrics"
	"talentflow/internal/store"
	"talentflow/internal/tasks"
	"talentflow/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	logger.Info("database connection ready for worker")

	// 审阅结果不经过故障注入：它不是界面发起的写操作。
	s := store.New(db, store.WithLogger(logger))
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("close store failed", slog.Any("error", err))
		}
	}()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Logger:      newAsynqLogger(logger),
	})

	reviewHandler := worker.NewSubmissionReviewHandler(s.Assessments(), events.NewRedisPublisher(redisClient), logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeSubmissionReview, reviewHandler)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
		if err := server.Start(mux); err != nil {
			return fmt.Errorf("start asynq server: %w", err)
		}
		<-gctx.Done()
		server.Shutdown()
		return nil
	})
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
