// Package apperrors defines the error kinds surfaced through the status
// message and the HTTP API.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeGeolocationUnavailable = "GEOLOCATION_UNAVAILABLE"
	CodeGeolocationTimeout     = "GEOLOCATION_TIMEOUT"
	CodeGeolocationDenied      = "GEOLOCATION_DENIED"
	CodeDataFetchFailed        = "DATA_FETCH_FAILED"
	CodeImportValidation       = "IMPORT_VALIDATION_FAILED"
	CodePersistenceCorrupt     = "PERSISTENCE_READ_CORRUPT"
	CodePersistenceWrite       = "PERSISTENCE_WRITE_FAILED"
	CodeStationNotFound        = "STATION_NOT_FOUND"
	CodeInvalidRequest         = "INVALID_REQUEST"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	cause      error
}

func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches on Code so wrapped copies compare equal to their sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

var (
	ErrGeolocationUnavailable = New(
		CodeGeolocationUnavailable,
		"Geolocation is not available",
		http.StatusServiceUnavailable,
	)

	ErrGeolocationTimeout = New(
		CodeGeolocationTimeout,
		"Geolocation timed out",
		http.StatusGatewayTimeout,
	)

	ErrGeolocationDenied = New(
		CodeGeolocationDenied,
		"Unable to retrieve your location",
		http.StatusForbidden,
	)

	ErrDataFetchFailed = New(
		CodeDataFetchFailed,
		"Unable to load station data, please try again later",
		http.StatusBadGateway,
	)

	ErrImportValidation = New(
		CodeImportValidation,
		"Import failed: expected a JSON array of station ids",
		http.StatusBadRequest,
	)

	ErrPersistenceCorrupt = New(
		CodePersistenceCorrupt,
		"Stored favorites are unreadable",
		http.StatusInternalServerError,
	)

	ErrPersistenceWrite = New(
		CodePersistenceWrite,
		"Could not save favorites",
		http.StatusInternalServerError,
	)

	ErrStationNotFound = New(
		CodeStationNotFound,
		"Station not found",
		http.StatusNotFound,
	)

	ErrInvalidRequest = New(
		CodeInvalidRequest,
		"Invalid request parameters",
		http.StatusBadRequest,
	)
)

// StatusCode maps any error to an HTTP status, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// Code returns the AppError code of err, or an empty string.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsGeolocation reports whether err is one of the geolocation kinds.
func IsGeolocation(err error) bool {
	return errors.Is(err, ErrGeolocationUnavailable) ||
		errors.Is(err, ErrGeolocationTimeout) ||
		errors.Is(err, ErrGeolocationDenied)
}
