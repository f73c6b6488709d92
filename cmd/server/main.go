// Package main runs the calling backend HTTP server with WebSocket signaling and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ringline/backend/config"
	"github.com/ringline/backend/internal/calls"
	"github.com/ringline/backend/internal/middleware"
	"github.com/ringline/backend/internal/notify"
	"github.com/ringline/backend/internal/realtime"
	"github.com/ringline/backend/internal/recordings"
	"github.com/ringline/backend/internal/transcode"
	"github.com/ringline/backend/internal/worker"
	"github.com/ringline/backend/pkg/database"
	"github.com/ringline/backend/pkg/queue"
	"github.com/ringline/backend/pkg/redis"
	"github.com/ringline/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	media, err := storage.NewStore(ctx, cfg.Media.Backend, cfg.Media.Dir, storage.S3Config{
		Region:           cfg.AWS.Region,
		AccessKeyID:      cfg.AWS.AccessKeyID,
		SecretAccessKey:  cfg.AWS.SecretAccessKey,
		RecordingsBucket: cfg.AWS.RecordingsBucket,
	}, logger)
	if err != nil {
		logger.Fatal("media store", zap.Error(err))
	}

	// Redis only backs the cleanup queue; the server runs without it.
	var jobQueue *queue.Queue
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, media cleanup queue disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue = queue.NewQueue(rdb.Client, logger)
	}

	// Calls
	registry := calls.NewMemory()
	callHandler := calls.NewHandler(registry, logger)

	// Signaling
	hub := realtime.NewHub(logger)
	iceServers := realtime.ICEServers(cfg.WebRTC.ICEUrls, cfg.WebRTC.TURNUsername, cfg.WebRTC.TURNCredential)

	// Recordings
	recordingRepo := recordings.NewRepository(pool)
	pipeline, err := recordings.NewPipeline(
		transcode.NewFFmpeg(cfg.Recording.FFmpegPath, logger),
		media,
		recordingRepo,
		recordings.PipelineConfig{
			ScratchDir:    cfg.Recording.ScratchDir,
			StageTimeout:  cfg.Recording.StageTimeout,
			MaxConcurrent: cfg.Recording.MaxConcurrent,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("recording pipeline", zap.Error(err))
	}
	maxUpload := cfg.Recording.MaxUploadMB << 20
	recordingHandler := recordings.NewHandler(pipeline, media, recordingRepo, maxUpload, logger)
	if jobQueue != nil {
		recordingHandler.SetCleanupQueue(jobQueue)
	}

	// Push notifications
	vapid, generated, err := notify.LoadKeys(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey)
	if err != nil {
		logger.Fatal("vapid keys", zap.Error(err))
	}
	if generated {
		logger.Warn("VAPID keys not configured, generated a temporary pair; subscriptions will not survive a restart",
			zap.String("public_key", vapid.PublicKey))
	}
	notifier := notify.NewNotifier(notify.NewRepository(pool), notify.NotifierConfig{
		Keys:    vapid,
		Subject: cfg.Push.Subject,
		TTL:     cfg.Push.TTL,
	}, logger)
	pushHandler := notify.NewHandler(notifier, logger)

	router := gin.New()
	router.MaxMultipartMemory = cfg.Recording.MultipartMemoryMB << 20
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger, "/health"))

	// Health
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "connections": hub.Count()})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/call/register", callHandler.Register)
		api.GET("/call/:callId", callHandler.Lookup)
		api.GET("/ice-servers", realtime.ICEHandler(iceServers))
	}

	// Recordings (paths kept for existing clients)
	router.POST("/uploads", recordingHandler.Upload)
	router.GET("/recording/:filename", recordingHandler.Fetch)
	router.POST("/recording/delete", recordingHandler.Delete)
	router.DELETE("/recording/:filename", recordingHandler.DeleteByParam)

	// Push (paths kept for existing clients)
	router.GET("/vapidkeys", pushHandler.Keys)
	router.POST("/api/subscribe", pushHandler.Subscribe)
	router.POST("/api/sendNotification", pushHandler.Send)

	// WebSocket
	router.GET("/ws", realtime.ServeWs(hub, logger))

	srv := newHTTPServer(cfg, router, logger)

	// Background workers (media cleanup + sweeper)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	sweeper := worker.NewSweeper(media, recordingRepo, worker.SweeperConfig{
		ScratchDir: pipeline.ScratchDir(),
		TTL:        cfg.Recording.ScratchTTL,
		Interval:   cfg.Recording.SweepInterval,
	}, logger)
	go sweeper.Run(workerCtx)
	if jobQueue != nil {
		go worker.NewCleanupProcessor(media, jobQueue, logger).Run(workerCtx)
		logger.Info("media cleanup worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("media_backend", cfg.Media.Backend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
