// Package main is the entry point for the ubikenear server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/randytsao24/ubikenear/internal/api"
	"github.com/randytsao24/ubikenear/internal/app"
	"github.com/randytsao24/ubikenear/internal/config"
	"github.com/randytsao24/ubikenear/internal/favorites"
	"github.com/randytsao24/ubikenear/internal/location"
	"github.com/randytsao24/ubikenear/internal/logger"
	"github.com/randytsao24/ubikenear/internal/stations"
	"github.com/randytsao24/ubikenear/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, err := storage.Open(cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("opening favorites storage: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Error("Failed to close favorites storage", zap.Error(err))
		}
	}()

	store := favorites.NewStore(ctx, kv, cfg.Storage.FavoritesKey, log)

	source, closeSource := buildSource(cfg, log)
	defer closeSource()

	ctrl := app.NewController(source, buildLocator(cfg), store, app.Options{
		GeoTimeout: cfg.Geo.Timeout,
		NearbyCap:  cfg.NearbyCap,
	}, log)

	// A failed first load is not fatal; the status endpoint reports it and
	// POST /stations/refresh can retry.
	if _, err := ctrl.Refresh(ctx); err != nil {
		log.Warn("initial station load failed", zap.Error(err))
	}

	go ctrl.Run(ctx, cfg.Stations.RefreshInterval)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(cfg, ctrl, ctrl, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("ubikenear server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("source", source.Name()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	log.Info("Server shutdown complete")
	return nil
}

// buildSource prefers a local station file over the live feeds
func buildSource(cfg *config.Config, log *zap.Logger) (stations.Source, func()) {
	if cfg.Stations.File != "" {
		return stations.NewFileSource(cfg.Stations.File, ""), func() {}
	}

	feeds := make([]*stations.HTTPSource, 0, len(cfg.Stations.Sources))
	sources := make([]stations.Source, 0, len(cfg.Stations.Sources))
	for _, sc := range cfg.Stations.Sources {
		feed := stations.NewHTTPSource(sc.City, sc.City, sc.URL,
			cfg.HTTPTimeout, cfg.Stations.CacheTTL, cfg.Stations.StaleFor, log)
		feeds = append(feeds, feed)
		sources = append(sources, feed)
	}

	closeAll := func() {
		for _, f := range feeds {
			f.Close()
		}
	}
	if len(sources) == 1 {
		return sources[0], closeAll
	}
	return stations.NewMultiSource(log, sources...), closeAll
}

// buildLocator uses the configured home coordinate, then an IP lookup
func buildLocator(cfg *config.Config) location.Locator {
	if cfg.Geo.Home != nil {
		return location.NewStaticLocator(cfg.Geo.Home)
	}
	if cfg.Geo.ProviderURL != "" {
		return location.NewIPLocator(cfg.Geo.ProviderURL)
	}
	return location.NewStaticLocator(nil)
}
