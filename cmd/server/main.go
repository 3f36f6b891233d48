package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skypost/internal/cache"
	"skypost/internal/config"
	"skypost/internal/handlers"
	"skypost/internal/kafka"
	"skypost/internal/logger"
	"skypost/internal/metrics"
	"skypost/internal/repository"
	"skypost/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(os.Getenv("SKYPOST_LOG_LEVEL"))

	// ---------- config ----------
	cfg, err := config.Load(os.Getenv("SKYPOST_CONFIG"), log)
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log = logger.New(cfg.LogLevel)

	// ---------- metrics ----------
	metrics.Register()

	// ---------- db ----------
	pool, err := repository.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// ---------- repositories ----------
	letterRepo := repository.NewLetterRepository(pool)
	flightRepo := repository.NewFlightRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool, cfg.OutboxMaxRetries)

	// ---------- redis ----------
	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisCache.Close()

	// ---------- kafka producer ----------
	producer, err := kafka.NewSyncProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Error("kafka producer failed", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	// ---------- service ----------
	svc := service.NewLetterService(pool, letterRepo, flightRepo, notifRepo, outboxRepo, cfg, log)

	// ---------- background loops ----------
	sender := service.NewOutboxSender(
		outboxRepo,
		producer,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxRetentionDays,
		cfg.OutboxMaxRetries,
		log,
	)
	sender.Start(ctx)

	tracker := service.NewTransitTracker(pool, letterRepo, outboxRepo, redisCache, cfg, log)
	tracker.Start(ctx)

	// ---------- kafka consumer ----------
	consumer, err := kafka.NewConsumer(
		cfg.KafkaBrokers,
		cfg.KafkaGroupID,
		cfg.KafkaTopic,
		svc,
		redisCache,
		log,
	)
	if err != nil {
		log.Error("kafka consumer failed", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error("kafka consumer stopped", "error", err)
		}
	}()

	// ---------- metric collectors ----------
	metrics.StartDBCollectors(ctx, pool, 15*time.Second, log)
	cache.StartRedisSizeCollector(ctx, redisCache.RawClient(), 15*time.Second, log)

	// ---------- handlers ----------
	letterHandler := handlers.NewLetterHandler(svc, redisCache, cfg.CacheTTL)
	flightHandler := handlers.NewFlightHandler(svc, redisCache, cfg.CacheTTL)

	// ---------- router ----------
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	handlers.RegisterLetterRoutes(r, letterHandler)
	handlers.RegisterFlightRoutes(r, flightHandler)

	// ---------- server ----------
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
