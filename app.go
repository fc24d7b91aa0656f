package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"gofolio/internal/api"
	"gofolio/internal/config"
	"gofolio/internal/content"
	"gofolio/internal/logger"
	"gofolio/internal/notify"
	"gofolio/internal/store"
	"gofolio/internal/telemetry"
)

// App wires the document store, change notifier, repositories and HTTP
// router for one process.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Store     store.Store
	Notifier  *notify.Notifier
	Telemetry *telemetry.Provider
	Catalog   *content.Catalog
	Router    *api.Router

	redis *redis.Client
	relay *notify.RedisRelay
}

// NewApp opens the configured store and builds every component on top of it.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Logger:    log,
		Notifier:  notify.New(log.With(logger.String("component", "notifier"))),
		Telemetry: telemetry.NewProvider(),
	}

	if cfg.Store.Driver == config.DriverRedis || cfg.Notify.Relay.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			return nil, fmt.Errorf("could not connect to redis (%s): %w", cfg.Store.Redis.Addr, err)
		}
	}

	s, err := a.openStore()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = s

	if cfg.Notify.Relay.Enabled {
		a.relay = notify.NewRedisRelay(a.redis, cfg.Notify.Relay.Channel, a.Notifier, log)
		if err := a.relay.Start(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("start notify relay: %w", err)
		}
	}

	a.Catalog = content.NewCatalog(content.Deps{
		Store:     a.Store,
		Notifier:  a.Notifier,
		Logger:    log,
		Telemetry: a.Telemetry,
	})
	a.Telemetry.WatchSignals(a.Notifier, a.Catalog.Categories()...)

	a.Router = api.NewRouter(api.Config{
		APIKeys:           cfg.Server.APIKeys,
		JWTSecret:         cfg.Server.JWTSecret,
		AdminPassword:     cfg.Server.AdminPassword,
		TokenTTL:          cfg.Server.TokenTTL,
		FormRatePerMinute: cfg.Server.FormRatePerMinute,
		FormBurst:         cfg.Server.FormBurst,
	}, api.Deps{
		Catalog:   a.Catalog,
		Notifier:  a.Notifier,
		Store:     a.Store,
		Telemetry: a.Telemetry,
		Logger:    log,
	})

	return a, nil
}

func (a *App) openStore() (store.Store, error) {
	switch a.Config.Store.Driver {
	case config.DriverRedis:
		return store.NewRedisStore(a.redis), nil
	case config.DriverSQLite:
		s, err := store.OpenSQLite(a.Config.Store.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.Store.Driver)
	}
}

// Close releases every resource the App opened. It is safe to call on a
// partially built App.
func (a *App) Close() {
	if a.Router != nil {
		a.Router.Close()
	}
	if a.relay != nil {
		if err := a.relay.Stop(); err != nil {
			a.Logger.Warn("Failed to stop change relay", logger.Error(err))
		}
	}
	// The Redis store shares a.redis, which is closed below.
	if a.Store != nil && a.Config.Store.Driver != config.DriverRedis {
		if err := a.Store.Close(); err != nil {
			a.Logger.Warn("Failed to close store", logger.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
