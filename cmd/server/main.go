package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-registry/internal/auth"
	"github.com/iliyamo/seat-registry/internal/config"
	"github.com/iliyamo/seat-registry/internal/database"
	"github.com/iliyamo/seat-registry/internal/handler"
	"github.com/iliyamo/seat-registry/internal/logger"
	"github.com/iliyamo/seat-registry/internal/middleware"
	"github.com/iliyamo/seat-registry/internal/queue"
	"github.com/iliyamo/seat-registry/internal/registry"
	"github.com/iliyamo/seat-registry/internal/repository"
	"github.com/iliyamo/seat-registry/internal/router"
	queue_publisher "github.com/iliyamo/seat-registry/internal/service"
	"github.com/iliyamo/seat-registry/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "seat-registry")
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := database.Open(database.Params{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rcfg := config.LoadRedisConfig()
	rdb, err := config.NewRedisClient(rcfg)
	if err != nil {
		if cfg.StoreBackend == config.BackendRedis {
			return err
		}
		// Rate limiting and caching degrade to pass-through.
		log.Warn("redis unavailable", zap.String("addr", rcfg.Addr), zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	regCfg := config.LoadRegistryConfig()
	st, err := openStore(cfg.StoreBackend, regCfg, db, rdb)
	if err != nil {
		return err
	}

	opts := []registry.Option{
		registry.WithLogger(log.Named("registry")),
		registry.WithInstance(regCfg.ID),
		registry.WithPolicy(registry.Policy{
			MintRequiresAdmin: regCfg.MintRequiresAdmin,
			StrictSeatIndex:   regCfg.StrictSeatIndex,
		}),
	}
	if cfg.EventsEnabled {
		pub := queue_publisher.NewPublisher(cfg.AMQPURL, log.Named("publisher"))
		defer pub.Close()
		opts = append(opts, registry.WithEventSink(pub))

		consumer := queue.NewConsumer(cfg.AMQPURL, "logs", log.Named("consumer"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("seat consumer stopped", zap.Error(err))
			}
		}()
	}
	reg := registry.New(st, auth.ContextAuthorizer{}, opts...)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log.Named("ratelimit"))
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb, regCfg.ID, log.Named("cache"))

	router.RegisterRoutes(e)
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, repository.NewAccountRepo(db), repository.NewTokenRepo(db), log.Named("auth")),
		cfg.JWTSecret, limit)
	router.RegisterRegistry(e, handler.NewRegistryHandler(reg, log.Named("http")), cfg.JWTSecret, limit, cache)

	addr := ":" + cfg.Port
	log.Info("listening",
		zap.String("addr", addr),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreBackend),
		zap.String("registry", regCfg.ID),
		zap.Bool("mint_requires_admin", regCfg.MintRequiresAdmin),
		zap.Bool("strict_seat_index", regCfg.StrictSeatIndex))

	errc := make(chan error, 1)
	go func() { errc <- e.Start(addr) }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

// openStore picks the registry storage backend.
func openStore(backend string, regCfg config.RegistryConfig, db *sql.DB, rdb *redis.Client) (store.Store, error) {
	switch backend {
	case config.BackendRedis:
		return store.NewRedisStore(rdb, regCfg.KeyPrefix, regCfg.ID), nil
	case config.BackendMySQL:
		return store.NewMySQLStore(db, regCfg.ID), nil
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
