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

	"golang.org/x/sync/errgroup"

	"github.com/BuzzLyutic/shortlink/internal/config"
	"github.com/BuzzLyutic/shortlink/internal/handler"
	"github.com/BuzzLyutic/shortlink/internal/service"
	"github.com/BuzzLyutic/shortlink/internal/storage"
	"github.com/BuzzLyutic/shortlink/internal/sweeper"
)

// Префикс ключей в Redis
const redisKeyPrefix = "shortlink:"

// Время на завершение обрабатываемых запросов
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(args []string) error {
	// Загрузка конфигурации
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	// Установка логгера
	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Starting URL shortener",
		slog.String("address", cfg.ServerAddress),
		slog.String("storage", cfg.StorageType),
		slog.String("base_url", cfg.BaseURL),
	)

	// Инициализация хранилища
	store, err := initStorage(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Инициализация сервиса
	svc := service.New(store, service.Config{
		BaseURL:     cfg.BaseURL,
		DefaultTTL:  cfg.DefaultTTL,
		CodeLength:  cfg.CodeLength,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})

	server, err := newServer(cfg, svc, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, server, sweeper.New(svc, cfg.SweepInterval, logger), logger)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageType {
	case config.StoragePostgres:
		logger.Info("connecting to PostgreSQL", slog.String("url", maskDSN(cfg.DatabaseURL)))
		pgCfg := storage.DefaultPostgresConfig(cfg.DatabaseURL)
		return storage.NewPostgresStorage(pgCfg)
	case config.StorageSQLite:
		logger.Info("opening SQL storage", slog.String("dsn", maskDSN(cfg.DatabaseURL)))
		return storage.NewSQLStorage(cfg.DatabaseURL)
	case config.StorageRedis:
		logger.Info("connecting to Redis", slog.String("url", maskDSN(cfg.DatabaseURL)))
		return storage.NewRedisStorage(cfg.DatabaseURL, redisKeyPrefix)
	case config.StorageMemory:
		logger.Info("using in-memory storage")
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.StorageType)
	}
}

// newServer собирает роутер и middleware
func newServer(cfg *config.Config, svc *service.Shortener, logger *slog.Logger) (*http.Server, error) {
	var opts []handler.Option
	if cfg.RateLimit != "" {
		limit, err := handler.RateLimit(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		opts = append(opts, handler.WithCreateLimiter(limit))
		logger.Info("create rate limit enabled", slog.String("rate", cfg.RateLimit))
	}

	h := handler.New(svc, logger, opts...)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Recovery снаружи, чтобы паника в логировании тоже перехватывалась
	httpHandler := handler.Chain(mux,
		handler.Recovery(logger),
		handler.Logging(logger),
	)

	return &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, nil
}

// serve запускает HTTP сервер и очистку до отмены ctx
func serve(ctx context.Context, server *http.Server, sw *sweeper.Sweeper, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	// Старт сервера
	g.Go(func() error {
		logger.Info("server listening", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sw.Run(gctx)
	})

	// Graceful shutdown по сигналу или ошибке сервера
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Насильное завершение работы
			server.Close()
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

func maskDSN(dsn string) string {
	if dsn == "" {
		return "(empty)"
	}
	return "(set)"
}
