// Package app wires the ledger's components from configuration. It is shared
// by the HTTP server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"heliactyl/config"
	"heliactyl/internal/boosts"
	"heliactyl/internal/database"
	"heliactyl/internal/middleware"
	"heliactyl/internal/repository"
	"heliactyl/internal/scheduler"
	"heliactyl/internal/service"
	"heliactyl/internal/ws"
	"heliactyl/pkg/events"
	"heliactyl/pkg/panel"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *gorm.DB
	Catalog   *boosts.Catalog
	Panel     *panel.Client
	Hub       *ws.Hub
	Publisher events.Publisher
	Redis     *redis.Client
	Boosts    *service.BoostService
	Store     *service.StoreService
	Sweeper   *scheduler.Sweeper
}

// New opens the database and connects optional infrastructure. Redis and
// RabbitMQ are optional: without them the sweep lock and rate limiter stay
// process-local and events are not published.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	catalog, err := boosts.Load(cfg.Boosts.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("boost catalog: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Catalog: catalog,
		Panel:   panel.NewClient(cfg.Panel.URL, cfg.Panel.AdminKey, cfg.Panel.Timeout, logger),
		Hub:     ws.NewHub(),
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, using process-local sweep guard and rate limiter", "error", err)
			_ = client.Close()
		} else {
			a.Redis = client
		}
	}

	a.Publisher = events.Connect(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(db), a.Hub, a.Publisher, logger)
	a.Boosts = service.NewBoostService(db, catalog, a.Panel, notifier, cfg.Boosts, logger)
	a.Store = service.NewStoreService(db, cfg.Store, logger)

	var locker scheduler.Locker
	if a.Redis != nil {
		locker = scheduler.NewRedisLocker(a.Redis, cfg.Redis.KeyPrefix)
	}
	a.Sweeper = scheduler.NewSweeper(a.Boosts, locker, cfg.Boosts, logger)
	return a, nil
}

// RateLimiter returns the shared Redis limiter when Redis is connected.
// stop ends the in-memory limiter's cleanup loop.
func (a *App) RateLimiter(stop <-chan struct{}) middleware.Limiter {
	rl := a.Config.RateLimit
	if a.Redis != nil {
		return middleware.NewRedisRateLimiter(a.Redis, a.Config.Redis.KeyPrefix, rl.Requests, rl.Window, a.Logger)
	}
	limiter := middleware.NewInMemoryRateLimiter(rl.Requests, rl.Window)
	go limiter.Cleanup(stop)
	return limiter
}

func (a *App) Close() {
	if a.Publisher != nil {
		a.Publisher.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
