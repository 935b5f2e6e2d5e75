package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/randytsao24/ubikenear/internal/apperrors"
)

const (
	maxImportBytes = 1 << 20
	exportFilename = "ubike-favorites.json"
)

type FavoritesHandler struct {
	favorites FavoritesService
}

func NewFavoritesHandler(favorites FavoritesService) *FavoritesHandler {
	return &FavoritesHandler{favorites: favorites}
}

// List returns the favorite ids
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids := h.favorites.ExportFavorites()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"favorites": ids,
		"count":     len(ids),
	})
}

// Export serves the favorites as a downloadable JSON array
func (h *FavoritesHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	writeJSON(w, http.StatusOK, h.favorites.ExportFavorites())
}

// Import merges a JSON array of ids from the request body
func (h *FavoritesHandler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperrors.ErrImportValidation.WithDetails(map[string]any{
				"reason": "payload too large",
			}))
			return
		}
		writeError(w, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}

	imported, err := h.favorites.ImportFavorites(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}

	ids := h.favorites.ExportFavorites()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"imported":  imported,
		"favorites": ids,
		"count":     len(ids),
	})
}

// Toggle flips one id in or out of the favorites
func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	favorite, err := h.favorites.ToggleFavorite(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"id":          id,
		"is_favorite": favorite,
	})
}

func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.favorites.AddFavorite(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"id":          id,
		"is_favorite": true,
	})
}

func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.favorites.RemoveFavorite(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"id":          id,
		"is_favorite": false,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, apperrors.ErrInvalidRequest.WithDetails(map[string]any{"param": "id"}))
		return "", false
	}
	return id, true
}
