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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/businesshub/internal/events"
	"github.com/yourorg/businesshub/internal/handler"
	"github.com/yourorg/businesshub/internal/infrastructure/logger"
	mongoinfra "github.com/yourorg/businesshub/internal/infrastructure/mongo"
	redisinfra "github.com/yourorg/businesshub/internal/infrastructure/redis"
	"github.com/yourorg/businesshub/internal/observability/metrics"
	"github.com/yourorg/businesshub/internal/observability/tracing"
	"github.com/yourorg/businesshub/internal/repository"
	"github.com/yourorg/businesshub/internal/security/audit"
	"github.com/yourorg/businesshub/internal/security/auth"
	"github.com/yourorg/businesshub/internal/security/middleware"
	"github.com/yourorg/businesshub/internal/security/ratelimit"
	"github.com/yourorg/businesshub/internal/service"
	"github.com/yourorg/businesshub/internal/worker"
	"github.com/yourorg/businesshub/pkg/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting businesshub",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log, "businesshub", cfg.Environment)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	mongoClient, err := mongoinfra.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Close(disconnectCtx); err != nil {
			log.Warn("mongodb disconnect failed", slog.String("error", err.Error()))
		}
	}()

	if err := mongoClient.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	// Redis is optional: without it search falls through to the store.
	var searchCache service.SearchCache
	var redisPinger handler.Pinger
	redisClient, err := redisinfra.NewClient(cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, search caching disabled", slog.String("error", err.Error()))
	} else {
		searchCache = redisClient
		redisPinger = redisClient
		defer redisClient.Close()
	}

	publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("kafka close failed", slog.String("error", err.Error()))
		}
	}()

	db := mongoClient.Database()
	businessRepo := repository.NewMongoBusinessRepository(db, log)
	membershipRepo := repository.NewMongoMembershipRepository(db, log)
	userRepo := repository.NewMongoUserRepository(db, log)

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "businesshub")
	businessService := service.NewBusinessService(businessRepo, membershipRepo, publisher, searchCache, cfg.SearchCacheTTL, log)
	authService := service.NewAuthService(userRepo, tokenManager, cfg.TokenLifetime, log)

	auditLog := audit.NewLogger(log)
	businessHandler := handler.NewBusinessHandler(businessService, auditLog, log)
	authHandler := handler.NewAuthHandler(authService, log)
	healthHandler := handler.NewHealthHandler(mongoClient, redisPinger, log)
	requestsFeed := handler.NewRequestsFeed(businessService, 2*time.Second, log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/change-password", authHandler.ChangePassword)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me)

	mux.HandleFunc("POST /api/business", businessHandler.Create)
	mux.HandleFunc("GET /api/business", businessHandler.List)
	mux.HandleFunc("GET /api/business/search", businessHandler.Search)
	mux.HandleFunc("GET /api/business/{id}", businessHandler.Get)
	mux.HandleFunc("POST /api/business/{id}/join", businessHandler.RequestJoin)
	mux.HandleFunc("GET /api/business/{id}/requests", businessHandler.ListRequests)
	mux.HandleFunc("GET /api/business/{id}/requests/ws", requestsFeed.Stream)
	mux.HandleFunc("POST /api/business/{id}/approve/{user_id}", businessHandler.Approve)

	limiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer limiter.Stop()

	// Outermost first: request id, metrics, CORS, identity, rate limit,
	// audit, then content-type validation in front of the mux.
	var root http.Handler = mux
	root = middleware.ValidateJSONContentType(log)(root)
	root = middleware.AuditMiddleware(auditLog)(root)
	root = middleware.RateLimitMiddleware(limiter, log)(root)
	root = middleware.IdentityMiddleware(tokenManager, log)(root)
	root = middleware.CORSMiddleware(cfg.CORSAllowedOrigins)(root)
	root = metrics.HTTPMetricsMiddleware(root)
	root = middleware.RequestIDMiddleware(root)
	root = otelhttp.NewHandler(root, "businesshub")

	monitor := worker.NewPendingMonitor(membershipRepo, publisher, cfg.PendingMonitorInterval, cfg.PendingReminderAge, log)
	go monitor.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
