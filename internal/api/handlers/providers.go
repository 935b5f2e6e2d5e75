package handlers

import (
	"context"

	"github.com/randytsao24/ubikenear/internal/app"
	"github.com/randytsao24/ubikenear/internal/models"
)

// StationService serves the canonical station set and its views.
type StationService interface {
	Views(criteria models.ViewCriteria, ref *models.Coordinate) models.Views
	Station(id string, ref *models.Coordinate) (models.Station, bool)
	Cities() []string
	Districts(city string) []string
	Refresh(ctx context.Context) (app.RefreshResult, error)
	Status() models.Status
}

// FavoritesService reads and mutates the favorites set.
type FavoritesService interface {
	IsFavorite(id string) bool
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	AddFavorite(ctx context.Context, id string) error
	RemoveFavorite(ctx context.Context, id string) error
	ExportFavorites() []string
	ImportFavorites(ctx context.Context, data []byte) (int, error)
}
