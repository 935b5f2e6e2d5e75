package handlers

import (
	"net/http"
)

// Version is reported by the root and health endpoints
const Version = "1.0.0"

type RootHandler struct{}

func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

func (h *RootHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "ubikenear",
		"description": "YouBike stations near you, with favorites",
		"version":     Version,
		"endpoints": map[string]string{
			"GET /":                       "API information",
			"GET /health":                 "Health check",
			"GET /status":                 "Last status message",
			"GET /stations":               "Favorites and nearby views (search, city, district, lat, lng)",
			"GET /stations/{id}":          "Single station",
			"GET /stations/cities":        "Cities with stations",
			"GET /stations/districts":     "Districts, optionally for ?city=",
			"POST /stations/refresh":      "Locate and reload station data",
			"GET /favorites":              "Favorite station ids",
			"GET /favorites/export":       "Download favorites as JSON",
			"POST /favorites/import":      "Merge a JSON array of ids into favorites",
			"POST /favorites/{id}/toggle": "Toggle a favorite",
			"PUT /favorites/{id}":         "Add a favorite",
			"DELETE /favorites/{id}":      "Remove a favorite",
		},
	})
}

func (h *RootHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error":   "Route not found",
		"message": "Check the root endpoint (/) for available routes",
	})
}
