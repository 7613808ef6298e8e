package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/accounts/internal/auth"
	"github.com/abduss/accounts/internal/avatar"
	"github.com/abduss/accounts/internal/config"
	"github.com/abduss/accounts/internal/logger"
	"github.com/abduss/accounts/internal/metrics"
	"github.com/abduss/accounts/internal/server"
	"github.com/abduss/accounts/internal/storage"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logg, err := logger.Init()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = logg.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logg.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	deps := server.Dependencies{Config: cfg}

	var store auth.UserStore
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		logg.Warn("using in-memory user store; accounts are lost on restart")
		store = auth.NewMemoryRepository()
	default:
		if cfg.Storage.RunMigrations {
			if err := storage.Migrate(ctx, cfg.Postgres.DSN()); err != nil {
				logg.Fatal("migrate postgres", zap.Error(err))
			}
		}

		dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logg.Fatal("connect postgres", zap.Error(err))
		}
		defer dbPool.Close()

		deps.DB = dbPool
		store = auth.NewRepository(dbPool)
	}

	var minioClient *minio.Client
	if cfg.Avatar.Backend == config.AvatarBackendMinIO {
		minioClient, err = storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			logg.Fatal("connect minio", zap.Error(err))
		}
		if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region, cfg.MinIO.PublicRead); err != nil {
			logg.Fatal("ensure bucket", zap.Error(err))
		}
		deps.ObjectStore = minioClient
	}

	uploader, err := avatar.New(ctx, cfg, minioClient)
	if err != nil {
		logg.Fatal("avatar uploader", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o750); err != nil {
		logg.Fatal("upload dir", zap.Error(err))
	}

	authService, err := auth.NewService(store, uploader, cfg.Auth, auth.WithLogger(logg.Named("auth")))
	if err != nil {
		logg.Fatal("auth service", zap.Error(err))
	}
	deps.AuthService = authService
	deps.Authenticator = authService.Authenticator()

	router := server.NewRouter(deps)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("accounts API listening",
			zap.String("address", cfg.Server.Address()),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("avatar_backend", cfg.Avatar.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logg.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}
}
