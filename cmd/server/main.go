package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/config"
	"github.com/iliyamo/farm-records/internal/database"
	"github.com/iliyamo/farm-records/internal/handler"
	"github.com/iliyamo/farm-records/internal/logging"
	"github.com/iliyamo/farm-records/internal/middleware"
	"github.com/iliyamo/farm-records/internal/queue"
	"github.com/iliyamo/farm-records/internal/repository"
	"github.com/iliyamo/farm-records/internal/router"
	"github.com/iliyamo/farm-records/internal/service"
	"github.com/iliyamo/farm-records/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()

	mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(mctx, db)
	cancel()
	if err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}

	// redis is optional: without it rate limiting and caching pass through
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unavailable, rate limit and cache disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("attachment storage init failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	var events service.EventPublisher
	if cfg.AMQP.Enabled {
		events = queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger.Named("publisher"))
		consumer := queue.NewLifecycleConsumer(cfg.AMQP.URL, cfg.AMQP.Queue, "logs", logger.Named("consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("lifecycle consumer stopped", zap.Error(err))
			}
		}()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	properties := repository.NewPropertyRepo(db)
	cultures := repository.NewCultureRepo(db)
	activities := repository.NewActivityRepo(db)

	propertySvc := service.NewPropertyService(properties)
	cultureSvc := service.NewCultureService(cultures, properties, events, time.Now, cfg.Location, logger.Named("cultures"))
	activitySvc := service.NewActivityService(activities, cultures, files, logger.Named("activities"))

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(middleware.RequestLogger(logger.Named("http")))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, logger.Named("ratelimit")))

	if strings.EqualFold(cfg.Storage.Driver, "disk") && strings.HasPrefix(cfg.Storage.PublicBaseURL, "/") {
		e.Static(cfg.Storage.PublicBaseURL, cfg.Storage.DiskDir)
	}

	cache := middleware.NewResponseCache(cfg.Cache, rdb, logger.Named("cache"))
	guard := router.Authenticated(cfg.JWTSecret, users, logger.Named("auth"))

	router.RegisterRoutes(e, handler.NewHealthHandler(db))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, cache, logger.Named("auth")), guard)
	router.RegisterFarm(e, router.FarmHandlers{
		Properties: handler.NewPropertyHandler(propertySvc, logger),
		Cultures:   handler.NewCultureHandler(cultureSvc, cfg.Location, logger),
		Activities: handler.NewActivityHandler(activitySvc, cfg.Storage.MaxUploadMB, logger),
	}, guard, cache)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("timezone", cfg.Location.String()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
