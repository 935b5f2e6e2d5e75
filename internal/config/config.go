// Package config handles application configuration from environment variables
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/randytsao24/ubikenear/internal/models"
)

const (
	TaipeiFeedURL    = "https://tcgbusfs.blob.core.windows.net/dotapp/youbike/v2/youbike_immediate.json"
	NewTaipeiFeedURL = "https://data.ntpc.gov.tw/api/datasets/010e5b15-3823-4b20-b401-b1cf000550c5/json?size=2000"
)

// Config holds all application configuration.
type Config struct {
	Port        string `validate:"required,numeric"`
	Env         string `validate:"oneof=development production test"`
	LogLevel    string
	HTTPTimeout time.Duration `validate:"gt=0"`
	NearbyCap   int           `validate:"min=1,max=200"`
	FetchOutput string
	Stations    StationsConfig
	Geo         GeoConfig
	Storage     StorageConfig
}

// SourceConfig is one upstream station feed.
type SourceConfig struct {
	City string `validate:"required"`
	URL  string `validate:"required,url"`
}

type StationsConfig struct {
	Sources         []SourceConfig `validate:"dive"`
	File            string
	CacheTTL        time.Duration `validate:"gte=0"`
	StaleFor        time.Duration `validate:"gte=0"`
	RefreshInterval time.Duration `validate:"gte=0"`
}

type GeoConfig struct {
	Timeout     time.Duration `validate:"gt=0"`
	ProviderURL string        `validate:"omitempty,url"`
	Home        *models.Coordinate
}

type StorageConfig struct {
	Backend       string `validate:"oneof=memory file redis sqlite postgres"`
	Path          string `validate:"required_if=Backend file,required_if=Backend sqlite"`
	RedisAddr     string `validate:"required_if=Backend redis"`
	RedisPassword string
	RedisDB       int    `validate:"gte=0"`
	DatabaseDSN   string `validate:"required_if=Backend postgres"`
	FavoritesKey  string `validate:"required"`
	KeyPrefix     string
}

var validate = validator.New()

// Load reads configuration with sensible defaults. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	sources, err := parseSources(v.GetString("STATION_SOURCES"))
	if err != nil {
		return nil, err
	}
	home, err := parseHome(v.GetString("HOME_LAT"), v.GetString("HOME_LNG"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Env:         v.GetString("ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTPTimeout: seconds(v, "HTTP_TIMEOUT_SECONDS"),
		NearbyCap:   v.GetInt("NEARBY_CAP"),
		FetchOutput: v.GetString("FETCH_OUTPUT"),
		Stations: StationsConfig{
			Sources:         sources,
			File:            v.GetString("STATION_FILE"),
			CacheTTL:        seconds(v, "CACHE_TTL_SECONDS"),
			StaleFor:        seconds(v, "STALE_FOR_SECONDS"),
			RefreshInterval: seconds(v, "REFRESH_INTERVAL_SECONDS"),
		},
		Geo: GeoConfig{
			Timeout:     seconds(v, "GEO_TIMEOUT_SECONDS"),
			ProviderURL: v.GetString("GEO_PROVIDER_URL"),
			Home:        home,
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Path:          v.GetString("STORAGE_PATH"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			DatabaseDSN:   v.GetString("DATABASE_DSN"),
			FavoritesKey:  v.GetString("FAVORITES_KEY"),
			KeyPrefix:     v.GetString("STORAGE_KEY_PREFIX"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	v.SetDefault("NEARBY_CAP", 10)
	v.SetDefault("FETCH_OUTPUT", "data/stations.json")
	v.SetDefault("STATION_SOURCES", "Taipei="+TaipeiFeedURL+";New Taipei="+NewTaipeiFeedURL)
	v.SetDefault("CACHE_TTL_SECONDS", 60)
	v.SetDefault("STALE_FOR_SECONDS", 0)
	v.SetDefault("REFRESH_INTERVAL_SECONDS", 0)
	v.SetDefault("GEO_TIMEOUT_SECONDS", 10)
	v.SetDefault("STORAGE_BACKEND", "file")
	v.SetDefault("STORAGE_PATH", "data/favorites.json")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("FAVORITES_KEY", "ubike-favorites")
}

// requestSlack is added on top of the slowest upstream chain a request can
// wait on
const requestSlack = 5 * time.Second

// RequestTimeout is the per-request budget. A refresh locates first and then
// downloads, so it must cover the geolocation and feed timeouts back to back.
func (c *Config) RequestTimeout() time.Duration {
	geo := c.Geo.Timeout
	if geo <= 0 {
		geo = 10 * time.Second
	}
	return geo + c.HTTPTimeout + requestSlack
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate checks field constraints and that at least one station source
// or a station file is configured.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(c.Stations.Sources) == 0 && c.Stations.File == "" {
		return errors.New("invalid configuration: no STATION_SOURCES or STATION_FILE set")
	}
	return nil
}

// parseSources reads "City=url;City=url". Entries are separated by ';'
// since feed URLs carry query strings.
func parseSources(s string) ([]SourceConfig, error) {
	var sources []SourceConfig
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		city, url, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid STATION_SOURCES entry %q: want City=url", part)
		}
		sources = append(sources, SourceConfig{
			City: strings.TrimSpace(city),
			URL:  strings.TrimSpace(url),
		})
	}
	return sources, nil
}

func parseHome(latStr, lngStr string) (*models.Coordinate, error) {
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	lat, errLat := strconv.ParseFloat(latStr, 64)
	lng, errLng := strconv.ParseFloat(lngStr, 64)
	coord := models.Coordinate{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !coord.Valid() {
		return nil, fmt.Errorf("invalid HOME_LAT/HOME_LNG %q,%q", latStr, lngStr)
	}
	return &coord, nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}
