package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/randytsao24/ubikenear/internal/api/handlers"
	"github.com/randytsao24/ubikenear/internal/config"
)

const defaultRequestTimeout = 15 * time.Second

// NewRouter creates and configures the HTTP router with all routes and middleware
func NewRouter(
	cfg *config.Config,
	stations handlers.StationService,
	favorites handlers.FavoritesService,
	logger *zap.Logger,
) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(stations)
	rootHandler := handlers.NewRootHandler()
	stationsHandler := handlers.NewStationsHandler(stations, favorites)
	favoritesHandler := handlers.NewFavoritesHandler(favorites)

	// Core routes
	mux.HandleFunc("GET /{$}", rootHandler.Index)
	mux.HandleFunc("GET /api", rootHandler.Index)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /status", stationsHandler.Status)
	mux.HandleFunc("/", rootHandler.NotFound)

	// Station routes
	mux.HandleFunc("GET /stations", stationsHandler.List)
	mux.HandleFunc("GET /stations/cities", stationsHandler.Cities)
	mux.HandleFunc("GET /stations/districts", stationsHandler.Districts)
	mux.HandleFunc("GET /stations/{id}", stationsHandler.Get)
	mux.HandleFunc("POST /stations/refresh", stationsHandler.Refresh)

	// Favorites routes
	mux.HandleFunc("GET /favorites", favoritesHandler.List)
	mux.HandleFunc("GET /favorites/export", favoritesHandler.Export)
	mux.HandleFunc("POST /favorites/import", favoritesHandler.Import)
	mux.HandleFunc("POST /favorites/{id}/toggle", favoritesHandler.Toggle)
	mux.HandleFunc("PUT /favorites/{id}", favoritesHandler.Add)
	mux.HandleFunc("DELETE /favorites/{id}", favoritesHandler.Remove)

	timeout := defaultRequestTimeout
	if cfg != nil && cfg.HTTPTimeout > 0 {
		timeout = cfg.RequestTimeout()
	}

	// Apply middleware stack
	handler := Chain(mux,
		WithRequestID,
		Recovery(logger),
		Logging(logger),
		CORS,
		Timeout(timeout),
	)

	return handler
}
