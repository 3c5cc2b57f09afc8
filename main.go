package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetingviewer/internal/api"
	"meetingviewer/internal/auth"
	"meetingviewer/internal/calendar"
	"meetingviewer/internal/composio"
	"meetingviewer/internal/config"
	"meetingviewer/internal/logging"
	"meetingviewer/internal/oauth"
	"meetingviewer/internal/redis"
	"meetingviewer/internal/session"
	"meetingviewer/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("MEETINGVIEWER_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.BasicConfig.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal("open session store", zap.String("backend", cfg.Session.Backend), zap.Error(err))
	}
	defer closeStore()
	if purger, ok := store.(session.Purger); ok {
		session.StartCleaner(ctx, purger, cfg.CleanupInterval(), logger)
	}

	client := composio.NewClient(cfg.Composio.BaseURL, cfg.Composio.APIKey, cfg.UpstreamTimeout(), nil)
	oauthService := oauth.NewService(cfg, client, store, logger)
	completer, err := oauth.NewCompleter(cfg.Session.Completion, oauthService)
	if err != nil {
		logger.Fatal("init oauth completion", zap.Error(err))
	}
	calendarService := calendar.NewService(client, logger)
	authService := auth.NewService(store, logger)
	handlers := api.NewHandler(cfg, authService, oauthService, completer, calendarService, logger)

	router := gin.New()
	router.Use(gin.Recovery(), logging.GinMiddleware(logger))
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("mode", cfg.BasicConfig.Mode),
			zap.String("session_backend", cfg.Session.Backend),
			zap.String("completion", cfg.Session.Completion),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore builds the configured session backend and its cleanup.
func openStore(cfg *config.Config) (session.Store, func(), error) {
	ttl := cfg.SessionTTL()
	switch cfg.Session.Backend {
	case config.BackendSQL:
		db, err := storage.Open(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
			db.Close()
			return nil, nil, err
		}
		store, err := session.NewSQLStore(db, cfg.Database.Driver, ttl)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	case config.BackendRedis:
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis client: %w", err)
		}
		return session.NewRedisStore(rdb, ttl), func() { rdb.Close() }, nil
	default:
		return session.NewMemoryStore(ttl), func() {}, nil
	}
}
