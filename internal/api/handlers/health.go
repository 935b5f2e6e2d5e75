// Package handlers contains HTTP request handlers
package handlers

import (
	"net/http"
	"time"
)

type HealthHandler struct {
	startTime time.Time
	stations  StationService
}

func NewHealthHandler(stations StationService) *HealthHandler {
	return &HealthHandler{startTime: time.Now(), stations: stations}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := h.stations.Status()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "OK",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"version":       Version,
		"uptime":        time.Since(h.startTime).String(),
		"station_count": status.StationCount,
	})
}
