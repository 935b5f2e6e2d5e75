package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/models"
)

const (
	mapURLFormat = "https://www.google.com/maps?q=%s,%s"
	maxLimit     = 200
)

// StationView is a station as rendered for one request
type StationView struct {
	models.Station
	IsFavorite bool   `json:"is_favorite"`
	MapURL     string `json:"map_url"`
}

type StationsHandler struct {
	stations  StationService
	favorites FavoritesService
}

func NewStationsHandler(stations StationService, favorites FavoritesService) *StationsHandler {
	return &StationsHandler{stations: stations, favorites: favorites}
}

// List returns the favorites and nearby views for the query's criteria
func (h *StationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ref, err := parseReference(r)
	if err != nil {
		writeError(w, err)
		return
	}

	criteria := parseCriteria(r)
	views := h.stations.Views(criteria, ref)

	// Membership comes from the views themselves so a concurrent toggle
	// cannot split a station's list from its flag.
	nearby := render(views.Nearby, false)
	if limit := parseIntQueryParam(r, "limit", 0, 0, maxLimit); limit > 0 && len(nearby) > limit {
		nearby = nearby[:limit]
	}

	status := h.stations.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"criteria":  criteria,
		"favorites": render(views.Favorites, true),
		"nearby":    nearby,
		"status":    status,
	})
}

// Get returns a single station by id
func (h *StationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref, err := parseReference(r)
	if err != nil {
		writeError(w, err)
		return
	}

	id := r.PathValue("id")
	st, found := h.stations.Station(id, ref)
	if !found {
		writeError(w, apperrors.ErrStationNotFound.WithDetails(map[string]any{"id": id}))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"station": view(st, h.favorites.IsFavorite(st.ID)),
	})
}

func (h *StationsHandler) Cities(w http.ResponseWriter, r *http.Request) {
	cities := h.stations.Cities()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"cities":  cities,
		"count":   len(cities),
	})
}

func (h *StationsHandler) Districts(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	districts := h.stations.Districts(city)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"city":      city,
		"districts": districts,
		"count":     len(districts),
	})
}

// Refresh runs a locate-then-fetch cycle. A failed fetch still reports the
// status, since the previous stations stay in place.
func (h *StationsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.stations.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"refresh": result,
		"status":  h.stations.Status(),
	})
}

func (h *StationsHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  h.stations.Status(),
	})
}

func render(list []models.Station, favorite bool) []StationView {
	out := make([]StationView, 0, len(list))
	for _, st := range list {
		out = append(out, view(st, favorite))
	}
	return out
}

func view(st models.Station, favorite bool) StationView {
	return StationView{
		Station:    st,
		IsFavorite: favorite,
		MapURL:     MapURL(st.Coordinates),
	}
}

// MapURL links a coordinate to Google Maps
func MapURL(c models.Coordinate) string {
	return fmt.Sprintf(mapURLFormat,
		strconv.FormatFloat(c.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.Lng, 'f', -1, 64),
	)
}
