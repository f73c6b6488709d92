// Package main runs the background worker: media cleanup queue and orphan sweeper.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ringline/backend/config"
	"github.com/ringline/backend/internal/recordings"
	"github.com/ringline/backend/internal/worker"
	"github.com/ringline/backend/pkg/database"
	"github.com/ringline/backend/pkg/queue"
	"github.com/ringline/backend/pkg/redis"
	"github.com/ringline/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger, database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
	})
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	media, err := storage.NewStore(ctx, cfg.Media.Backend, cfg.Media.Dir, storage.S3Config{
		Region:           cfg.AWS.Region,
		AccessKeyID:      cfg.AWS.AccessKeyID,
		SecretAccessKey:  cfg.AWS.SecretAccessKey,
		RecordingsBucket: cfg.AWS.RecordingsBucket,
	}, logger)
	if err != nil {
		logger.Fatal("media store", zap.Error(err))
	}

	recRepo := recordings.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewCleanupProcessor(media, jobQueue, logger)
	sweeper := worker.NewSweeper(media, recRepo, worker.SweeperConfig{
		ScratchDir: cfg.Recording.ScratchDir,
		TTL:        cfg.Recording.ScratchTTL,
		Interval:   cfg.Recording.SweepInterval,
	}, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Run(workerCtx)
	}()
	go func() {
		defer wg.Done()
		sweeper.Run(workerCtx)
	}()
	logger.Info("worker started", zap.String("media_backend", cfg.Media.Backend))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
