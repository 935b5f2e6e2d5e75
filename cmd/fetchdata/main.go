// Package main fetches the Taipei and New Taipei YouBike feeds and writes a
// merged station snapshot that the server can load with STATION_FILE.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/randytsao24/ubikenear/internal/config"
	"github.com/randytsao24/ubikenear/internal/logger"
	"github.com/randytsao24/ubikenear/internal/models"
	"github.com/randytsao24/ubikenear/internal/stations"
)

const fetchTimeout = 2 * time.Minute

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

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	n, err := fetchAndWrite(ctx, cfg.Stations.Sources, cfg.HTTPTimeout, cfg.FetchOutput, log)
	if err != nil {
		log.Fatal("fetch failed", zap.Error(err))
	}
	log.Info("saved combined station data",
		zap.String("path", cfg.FetchOutput),
		zap.Int("stations", n),
	)
}

// fetchAndWrite downloads every source, merges them with the first record per
// id winning, and writes the result to path. It fails only when every source
// fails or the file cannot be written.
func fetchAndWrite(ctx context.Context, sources []config.SourceConfig, timeout time.Duration, path string, log *zap.Logger) (int, error) {
	feeds := make([]stations.Source, 0, len(sources))
	for _, sc := range sources {
		feed := stations.NewHTTPSource(sc.City, sc.City, sc.URL, timeout, 0, 0, log)
		defer feed.Close()
		feeds = append(feeds, feed)
	}

	batch, err := stations.NewMultiSource(log, feeds...).Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("all sources failed: %w", err)
	}

	records := stations.StandardizeAll(batch.Records)
	log.Info("merged station feeds",
		zap.Int("raw", len(batch.Records)),
		zap.Int("unique", len(records)),
	)

	if err := writeJSONFile(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func writeJSONFile(path string, records []models.StandardRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding stations: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
