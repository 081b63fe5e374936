package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitstudio/internal/api"
	"fitstudio/internal/config"
	"fitstudio/internal/domain"
	"fitstudio/internal/events"
	"fitstudio/internal/logging"
	"fitstudio/internal/metrics"
	"fitstudio/internal/models"
	"fitstudio/internal/repository"
	"fitstudio/internal/service"
	"fitstudio/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 10 * time.Second
	idleClientTTL   = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	classes, err := config.LoadClasses(cfg.Booking.ClassesPath)
	if err != nil {
		logger.Error().Err(err).Str("classes_path", cfg.Booking.ClassesPath).Msg("load classes")
		return err
	}
	store := repository.NewMemoryStore(classes)
	logger.Info().Int("classes", len(classes)).Msg("class catalog seeded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter, redisClient := initThrottle(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	eventWorker := worker.NewEventWorker(auditSink(logging.Component(&logger, "audit")), redisClient,
		repository.RetryPolicy{}, logging.Component(&logger, "event-worker"))
	go eventWorker.Start(ctx)

	bus := events.NewEventBus()
	bus.Subscribe(events.EventBookingCreated, eventWorker.Enqueue)

	svc := service.NewBookingService(store, limiter, bus, service.AttemptLimits{
		Limit:  cfg.Booking.AttemptLimit,
		Window: cfg.Booking.AttemptWindow,
	}, logging.Component(&logger, "booking"))

	startMetrics(ctx, cfg, classes, &logger)

	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)
	if cfg.API.RateLimit.RPS > 0 {
		go purgeIdleClients(ctx, httpServer, &logger)
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initThrottle picks the booking attempt store: Redis with in-memory failover
// when an address is configured, memory only otherwise.
func initThrottle(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.AttemptLimiter, *redis.Client) {
	memory := repository.NewMemoryThrottleRepository()
	go purgeLoop(ctx, memory, cfg.Booking.AttemptWindow, logger)

	if cfg.Booking.AttemptLimit <= 0 || cfg.Redis.Address == "" {
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	policy := repository.RetryPolicy{MaxRetries: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second, BackoffFactor: 2}
	if err := repository.ConnectRedis(ctx, client, policy, logger); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, throttle will start on memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	failover := repository.NewFailoverThrottleRepository(
		repository.NewRedisThrottleRepository(client),
		memory,
		logging.Component(logger, "throttle"),
	)
	return failover, client
}

func purgeLoop(ctx context.Context, memory *repository.MemoryThrottleRepository, window time.Duration, logger *zerolog.Logger) {
	if window <= 0 {
		window = models.DefaultAttemptWindow * time.Second
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := memory.Purge(); n > 0 {
				logger.Debug().Int("removed", n).Msg("purged expired attempt windows")
			}
		}
	}
}

func purgeIdleClients(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) {
	ticker := time.NewTicker(idleClientTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := httpServer.PurgeIdleClients(idleClientTTL); n > 0 {
				logger.Debug().Int("removed", n).Msg("purged idle rate limit buckets")
			}
		}
	}
}

func auditSink(logger *zerolog.Logger) worker.SinkFunc {
	return func(_ context.Context, event *events.Event) error {
		var payload events.BookingEventPayload
		if err := event.Decode(&payload); err != nil {
			return err
		}
		logger.Info().
			Int64("event_id", event.ID).
			Int64("booking_id", payload.BookingID).
			Str("class", payload.ClassName).
			Str("client_email", payload.ClientEmail).
			Int("available_slots", payload.AvailableSlots).
			Msg(event.Type)
		return nil
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, classes []models.FitnessClass, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	for _, c := range classes {
		metrics.SetAvailableSlots(c)
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
