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

	"truckslot/internal/api"
	"truckslot/internal/bot"
	"truckslot/internal/config"
	"truckslot/internal/database"
	"truckslot/internal/domain"
	"truckslot/internal/events"
	"truckslot/internal/google"
	"truckslot/internal/logging"
	"truckslot/internal/metrics"
	"truckslot/internal/models"
	"truckslot/internal/notify"
	"truckslot/internal/repository"
	"truckslot/internal/service"
	"truckslot/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := initStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer (func() { _ = store.Close() })()

	bus := events.NewEventBus()

	tgBot := initTelegram(cfg, &logger)

	dispatcher, cleanup := initNotifications(ctx, cfg, tgBot, &logger)
	defer cleanup()

	// the dispatcher outlives the signal context so queued notifications can drain
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	if dispatcher != nil {
		dispatcher.Subscribe(bus)
		go dispatcher.Start(dispatchCtx)
	}

	svc := service.NewBookingService(store, bus, logging.Component(&logger, "booking-service"))

	startMetrics(ctx, cfg, &logger)

	if tgBot != nil && cfg.Notifications.Telegram.Commands {
		commandBot := bot.NewBot(bot.Wrap(tgBot), svc, cfg.Schedule.Timeslots,
			cfg.Notifications.Telegram.ChatIDs, logging.Component(&logger, "telegram-bot"))
		go commandBot.Start(ctx)
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, svc, cfg.Schedule.Timeslots, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(cfg.API, svc, store, cfg.Schedule.Timeslots, &logger)
	}

	if grpcServer == nil && httpServer == nil {
		logger.Warn().Msg("both HTTP and gRPC APIs are disabled in config")
	}

	startServers(ctx, grpcServer, httpServer, cfg, &logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	if dispatcher != nil {
		if err := dispatcher.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Int("pending", dispatcher.Pending()).Msg("notification queue not drained")
		}
		cancelDispatch()
	}

	logger.Info().Msg("API server stopped")
	return nil
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

// initStore opens the configured backend and wraps it with timeouts and metrics.
func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.BookingStore, error) {
	storeLogger := logging.Component(logger, "store")

	var (
		inner domain.BookingStore
		err   error
	)
	switch cfg.Storage.Driver {
	case models.DriverSQLite:
		var db *database.DB
		db, err = database.NewDB(cfg.Storage.SQLite.Path, storeLogger)
		if err == nil {
			inner = db
			backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
			go backup.Start(ctx)
		}
	case models.DriverPostgres:
		inner, err = repository.NewPostgresStore(ctx, cfg.Storage.Postgres, storeLogger)
	case models.DriverRedis:
		client := repository.NewRedisClient(cfg.Storage.Redis)
		if err = repository.Ping(ctx, client); err != nil {
			_ = client.Close()
			err = fmt.Errorf("redis ping: %w", err)
		} else {
			inner = repository.NewRedisStore(client, cfg.Storage.Redis.KeyPrefix)
		}
	case models.DriverMongo:
		inner, err = repository.NewMongoStore(ctx, cfg.Storage.Mongo, storeLogger)
	case models.DriverMemory:
		logger.Warn().Msg("memory storage driver selected; bookings are lost on restart")
		inner = repository.NewMemoryStore()
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("init storage")
		return nil, err
	}

	logger.Info().Str("driver", cfg.Storage.Driver).Msg("storage ready")
	return repository.NewInstrumentedStore(inner, cfg.Storage.Driver, cfg.Storage.OpTimeout, storeLogger), nil
}

// initNotifications builds the configured sinks. It returns a nil dispatcher
// when no sink is enabled.
func initNotifications(ctx context.Context, cfg *config.Config, tgBot *tgbotapi.BotAPI, logger *zerolog.Logger) (*worker.Dispatcher, func()) {
	n := cfg.Notifications
	var (
		sinks   []worker.Sink
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if tgBot != nil {
		sinks = append(sinks, notify.NewTelegramNotifier(tgBot, n.Telegram.ChatIDs))
	}

	if n.Kafka.Enabled {
		kafkaSink := notify.NewKafkaNotifier(notify.NewKafkaWriter(n.Kafka))
		closers = append(closers, func() { _ = kafkaSink.Close() })
		sinks = append(sinks, kafkaSink)
		logger.Info().Strs("brokers", n.Kafka.Brokers).Str("topic", n.Kafka.Topic).Msg("kafka notifications enabled")
	}

	if n.Google.Enabled {
		sheetsService := initGoogleSheets(ctx, n.Google, logger)
		if sheetsService != nil {
			sinks = append(sinks, sheetsService)
		}
	}

	if len(sinks) == 0 {
		return nil, cleanup
	}

	redisCfg := n.DeadLetterRedis
	if redisCfg.Address == "" && cfg.Storage.Driver == models.DriverRedis {
		redisCfg = cfg.Storage.Redis
	}
	redisClient := initRedis(ctx, redisCfg, logger)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	retry := worker.RetryPolicy{
		MaxRetries:    n.Worker.MaxRetries,
		InitialDelay:  n.Worker.InitialDelay,
		MaxDelay:      n.Worker.MaxDelay,
		BackoffFactor: n.Worker.BackoffFactor,
	}
	dispatcher := worker.NewDispatcher(sinks, n.Worker.QueueSize, redisClient, retry, logging.Component(logger, "notifications"))
	return dispatcher, cleanup
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) *tgbotapi.BotAPI {
	if !cfg.Notifications.Telegram.Enabled {
		return nil
	}

	tgBot, err := notify.NewTelegramBot(cfg.Notifications.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		return nil
	}

	logger.Info().Str("bot", tgBot.Self.UserName).Msg("telegram connected")
	return tgBot
}

func initRedis(ctx context.Context, cfg config.RedisConfig, logger *zerolog.Logger) *redis.Client {
	if cfg.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, dead letters will only be logged")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Address).Msg("redis connected")
	return redisClient
}

func initGoogleSheets(ctx context.Context, cfg config.GoogleConfig, logger *zerolog.Logger) *google.SheetsService {
	sheetsService, err := google.NewSheetsService(ctx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := sheetsService.EnsureHeader(checkCtx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header check failed")
	}

	logger.Info().Str("sheet", cfg.SheetName).Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

// startServers blocks until ctx is cancelled.
func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	if httpServer != nil {
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	event := logger.Info().Str("storage", cfg.Storage.Driver)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	if httpServer != nil {
		event = event.Int("http_port", cfg.API.HTTP.Port)
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
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
