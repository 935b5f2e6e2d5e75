package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/models"
)

// parseReference reads an optional lat/lng pair from the query string.
// Both must be present together and form a valid coordinate.
func parseReference(r *http.Request) (*models.Coordinate, error) {
	latStr := strings.TrimSpace(r.URL.Query().Get("lat"))
	lngStr := strings.TrimSpace(r.URL.Query().Get("lng"))

	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, apperrors.ErrInvalidRequest.WithDetails(map[string]any{
			"reason": "lat and lng must be provided together",
		})
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, apperrors.ErrInvalidRequest.WithDetails(map[string]any{"param": "lat"})
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, apperrors.ErrInvalidRequest.WithDetails(map[string]any{"param": "lng"})
	}

	coord := models.Coordinate{Lat: lat, Lng: lng}
	if !coord.Valid() {
		return nil, apperrors.ErrInvalidRequest.WithDetails(map[string]any{
			"reason": "coordinate out of range",
		})
	}
	return &coord, nil
}

func parseCriteria(r *http.Request) models.ViewCriteria {
	q := r.URL.Query()
	return models.ViewCriteria{
		Search:   q.Get("search"),
		City:     q.Get("city"),
		District: q.Get("district"),
	}
}

func parseIntQueryParam(r *http.Request, name string, defaultVal, min, max int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
