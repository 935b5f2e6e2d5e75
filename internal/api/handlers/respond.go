package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/randytsao24/ubikenear/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// The status line is already out; an encode failure can only be dropped.
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	body := map[string]any{
		"success": false,
		"error":   "INTERNAL_ERROR",
		"message": err.Error(),
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Code
		body["message"] = appErr.Message
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	}

	writeJSON(w, apperrors.StatusCode(err), body)
}
