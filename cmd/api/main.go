package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mediatrack/internal/cache"
	"mediatrack/internal/catalog"
	"mediatrack/internal/config"
	"mediatrack/internal/db"
	"mediatrack/internal/handler"
	"mediatrack/internal/logging"
	"mediatrack/internal/repository"
	"mediatrack/internal/service"
	"mediatrack/internal/store"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	log := logging.Component("api")

	st, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("store init failed")
	}

	if err := cache.InitRedis(cfg); err != nil {
		// the catalog still works uncached
		log.Warn().Err(err).Msg("redis unavailable, catalog cache disabled")
	}

	var provider catalog.Provider
	if cfg.TMDBAPIKey != "" {
		var p catalog.Provider = catalog.NewTMDBClient(cfg.TMDBAPIKey, cfg.TMDBBaseURL, nil)
		p = catalog.NewBreakerProvider(p, catalog.DefaultBreakerSettings())
		if cache.Enabled() {
			p = catalog.NewCachedProvider(p, cache.JSON{}, cfg.CatalogCacheTTL)
		}
		provider = p
	} else {
		log.Info().Msg("TMDB_API_KEY empty, media snapshots are taken from request bodies")
	}

	registry := service.NewRegistry(func() *service.Session { return service.NewStoreSession(st) })

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: handler.NewRouter(handler.RouterConfig{
			Registry:           registry,
			Catalog:            provider,
			JWTSecret:          cfg.JWTSecret,
			CORSOrigins:        cfg.CORSOrigins,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("backend", cfg.StoreBackend).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	registry.Close()
	if err := cache.Close(); err != nil {
		log.Error().Err(err).Msg("redis close")
	}
	if err := closeStore(ctx); err != nil {
		log.Error().Err(err).Msg("store close")
	}
	log.Info().Msg("stopped")
}

// openStore builds the remote document store selected by STORE_BACKEND,
// wrapped with metrics.
func openStore(cfg *config.Config) (store.Store, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case "memory":
		return store.Instrumented(store.NewMemoryStore()), func(context.Context) error { return nil }, nil
	default:
		if err := db.InitMongo(cfg); err != nil {
			return nil, nil, err
		}
		ms := store.NewMongoStore(db.DB())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ms.EnsureIndexes(ctx, repository.FieldVisibility, repository.FieldMoviesWatched); err != nil {
			return nil, nil, err
		}
		return store.Instrumented(ms), db.Close, nil
	}
}
