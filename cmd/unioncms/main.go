package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/unioncms/unioncms/internal/config"
	"github.com/unioncms/unioncms/internal/domain"
	"github.com/unioncms/unioncms/internal/infra/database"
	"github.com/unioncms/unioncms/internal/infra/gateway"
	"github.com/unioncms/unioncms/internal/infra/repository"
	"github.com/unioncms/unioncms/internal/present/rest"
	authmw "github.com/unioncms/unioncms/internal/present/rest/middleware"
	"github.com/unioncms/unioncms/internal/service"
	unionsync "github.com/unioncms/unioncms/internal/sync"
	"github.com/unioncms/unioncms/internal/telemetry"
	"github.com/unioncms/unioncms/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config",
			slog.String("error", err.Error()),
			slog.String("path", *configPath),
		)
		os.Exit(1)
	}

	ctx := context.Background()

	if conf.Server.EnableTrace {
		shutdown, err := telemetry.Setup(ctx, "unioncms", conf.Server.TraceEndpoint)
		if err != nil {
			slog.Error("failed to set up tracing", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdown(flushCtx)
		}()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	blob, err := gateway.NewFileBlobStore(conf.Server.BlobPath, conf.Server.BlobBaseURL)
	if err != nil {
		slog.Error("failed to open blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	contentRepo := repository.NewContentRepository(db, mc)
	lockRepo := repository.NewLockRepository(db)
	conflictRepo := repository.NewConflictRepository(db)

	signalService := service.NewSignalService(rdb)
	authService := service.NewAuthService(conf.Site.SiteKey, conf.Site.FQDN)

	strategy, err := domain.ParseStrategy(conf.Sync.Strategy)
	if err != nil {
		slog.Error("invalid conflict strategy", slog.String("error", err.Error()))
		os.Exit(1)
	}

	contentUsecase := usecase.NewContentUsecase(contentRepo, conflictRepo, signalService, strategy)
	lockUsecase := usecase.NewLockUsecase(lockRepo, time.Duration(conf.Sync.LockTTLMinutes)*time.Minute)
	backupUsecase := usecase.NewBackupUsecase(contentRepo)

	// warm local cache kept in step with the store through the signal feed
	syncCache := unionsync.NewCache()
	syncer := unionsync.NewSyncer(contentRepo, syncCache, unionsync.Options{
		RetryLimit: conf.Sync.RetryLimit,
	})
	if err := syncer.Start(ctx, signalService); err != nil {
		slog.Error("failed to start synchronizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware(conf.Site.FQDN))
	}

	auth := authmw.NewAuthMiddleware(authService)
	e.Use(auth.IdentifyIdentity)

	handler := rest.NewHandler(conf.Site, contentUsecase, lockUsecase, backupUsecase, signalService, blob)
	handler.RegisterRoutes(e)

	e.Static("/files", blob.Root())

	go func() {
		if err := e.Start(conf.Server.Listen); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down", slog.String("module", "main"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down server", slog.String("error", err.Error()))
	}
	if err := syncer.Close(shutdownCtx); err != nil {
		slog.Error("failed to drain synchronizer", slog.String("error", err.Error()))
	}
}
