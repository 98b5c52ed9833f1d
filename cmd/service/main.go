package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taehoonk/forecast-push-service/internal/audit"
	"github.com/taehoonk/forecast-push-service/internal/circuitbreaker"
	"github.com/taehoonk/forecast-push-service/internal/config"
	"github.com/taehoonk/forecast-push-service/internal/dispatch"
	httphandler "github.com/taehoonk/forecast-push-service/internal/http"
	"github.com/taehoonk/forecast-push-service/internal/joblock"
	"github.com/taehoonk/forecast-push-service/internal/notify"
	"github.com/taehoonk/forecast-push-service/internal/observability"
	"github.com/taehoonk/forecast-push-service/internal/profile"
	"github.com/taehoonk/forecast-push-service/internal/provider"
	"github.com/taehoonk/forecast-push-service/internal/push"
	"github.com/taehoonk/forecast-push-service/internal/queue"
	"github.com/taehoonk/forecast-push-service/internal/registry"
	"github.com/taehoonk/forecast-push-service/internal/scheduler"
	"github.com/taehoonk/forecast-push-service/internal/syncjob"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable stores. The Redis-backed store carries locations, cursors,
	// profiles and the notification queue; memory backs dev and tests.
	var (
		locations   registry.LocationRegistry
		cursors     registry.CursorStore
		profiles    registry.ProfileStore
		pushQueue   queue.Queue
		pings       httphandler.HealthPings
		redisCloser *registry.RedisStore
	)
	switch cfg.StoreBackend {
	case "redis":
		rs, err := registry.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis store", zap.Error(err))
		}
		redisCloser = rs
		locations = rs
		cursors = rs.Cursors()
		profiles = rs.Profiles()
		pushQueue = queue.NewRedisQueue(rs.Client())
		pings.StorePing = func() error { return rs.Ping(context.Background()) }
		logger.Info("store backend: redis", zap.String("addr", cfg.RedisAddr))
	default:
		ms := registry.NewMemoryStore()
		locations = ms
		cursors = ms.Cursors()
		profiles = ms.Profiles()
		pushQueue = queue.NewMemoryQueue()
		logger.Info("store backend: memory")
	}

	var locker joblock.Locker
	var memcacheCloser *joblock.MemcachedLocker
	switch cfg.LockBackend {
	case "memcached":
		ml, err := joblock.NewMemcachedLocker(cfg.MemcachedAddrs, 500*time.Millisecond, 2)
		if err != nil {
			logger.Fatal("memcached locker", zap.Error(err))
		}
		memcacheCloser = ml
		locker = ml
		pings.LockPing = ml.Ping
		logger.Info("lock backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		locker = joblock.NewMemoryLocker()
		logger.Info("lock backend: memory")
	}

	var sink audit.Sink
	var kafkaCloser *audit.KafkaSink
	if cfg.KafkaEnabled {
		ks := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaSnapshotTopic, cfg.KafkaEventTopic, logger)
		kafkaCloser = ks
		sink = ks
		logger.Info("audit sink: kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		sink = audit.NewMemorySink()
		logger.Info("audit sink: memory")
	}

	providerLimiter := rate.NewLimiter(rate.Limit(cfg.ProviderRateRPS), cfg.ProviderRateBurst)
	forecasts, err := provider.NewClient(
		cfg.ProviderAPIKey,
		cfg.ProviderAPIURL,
		cfg.ProviderTimeout,
		providerLimiter,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("forecast client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "forecast_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("component", "forecast_api"),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		forecasts.SetCircuitBreaker(cb)
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerFailureThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	pusher, err := push.NewClient(cfg.PushServerKey, cfg.PushAPIURL, cfg.PushPackageName, cfg.PushTimeout)
	if err != nil {
		logger.Fatal("push client", zap.Error(err))
	}

	clock := clockwork.NewRealClock()
	weatherSync := syncjob.New(locations, cursors, forecasts, clock, logger, cfg.PageSize, cfg.SyncWorkers)
	notifier := notify.New(locations, pushQueue, sink, clock, logger)
	dispatcher := dispatch.New(pushQueue, pusher, logger)
	profileSvc := profile.NewService(profiles, locations, clock, logger)

	sched := scheduler.New(weatherSync, notifier, locker, scheduler.Config{
		Offsets:         cfg.Offsets,
		SyncInterval:    cfg.SyncInterval,
		NotifyLocalHour: cfg.NotifyLocalHour,
		LockTTL:         cfg.LockTTL,
	}, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	handler := httphandler.NewHandler(profileSvc, sink, pings, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	apiRouter := router.PathPrefix("/").Subrouter()
	apiRouter.Use(httphandler.RateLimitMiddleware(limiter))
	apiRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	apiRouter.HandleFunc("/users", handler.PostUser).Methods("POST")
	apiRouter.HandleFunc("/analytics/app-activity", handler.PostAnalyticsEvent("app-activity")).Methods("POST")
	apiRouter.HandleFunc("/analytics/sunscreen-scan", handler.PostAnalyticsEvent("sunscreen-scan")).Methods("POST")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	sched.Stop()

	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		logger.Warn("dispatcher did not drain before deadline")
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if kafkaCloser != nil {
		if err := kafkaCloser.Close(); err != nil {
			logger.Error("kafka close", zap.Error(err))
		}
	}
	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	if redisCloser != nil {
		if err := redisCloser.Close(); err != nil {
			logger.Error("redis close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
