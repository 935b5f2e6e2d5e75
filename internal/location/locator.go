package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/models"
)

// DefaultTimeout caps how long a locate attempt may take
const DefaultTimeout = 10 * time.Second

// Locator resolves the caller's current coordinate
type Locator interface {
	Locate(ctx context.Context) (models.Coordinate, error)
}

// StaticLocator always answers with a configured coordinate
type StaticLocator struct {
	coord *models.Coordinate
}

// NewStaticLocator returns a locator for coord. A nil or invalid coord makes
// every Locate call fail with ErrGeolocationUnavailable.
func NewStaticLocator(coord *models.Coordinate) *StaticLocator {
	if coord != nil && !coord.Valid() {
		coord = nil
	}
	return &StaticLocator{coord: coord}
}

func (l *StaticLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	if l.coord == nil {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable
	}
	return *l.coord, nil
}

// IPLocator looks up the server's public address with an IP geolocation
// service that answers {"status","lat","lon","message"}
type IPLocator struct {
	url    string
	client *http.Client
}

// NewIPLocator creates an IP based locator. The client has no timeout of its
// own; callers bound it with LocateWithTimeout.
func NewIPLocator(url string) *IPLocator {
	return &IPLocator{
		url:    url,
		client: &http.Client{},
	}
}

type ipLookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (l *IPLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	if l.url == "" {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable.Wrap(err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable.Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable.Wrap(
			fmt.Errorf("geolocation service returned status %d", resp.StatusCode))
	}

	var result ipLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable.Wrap(
			fmt.Errorf("parsing response: %w", err))
	}

	if result.Status != "success" {
		return models.Coordinate{}, apperrors.ErrGeolocationDenied.Wrap(
			fmt.Errorf("lookup %s: %s", result.Status, result.Message))
	}

	coord := models.Coordinate{Lat: result.Lat, Lng: result.Lon}
	if !coord.Valid() {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable.Wrap(
			fmt.Errorf("invalid coordinate %v,%v", result.Lat, result.Lon))
	}
	return coord, nil
}

// LocateWithTimeout runs l under a deadline of d. An expired deadline is
// reported as ErrGeolocationTimeout; other failures keep their kind.
func LocateWithTimeout(ctx context.Context, l Locator, d time.Duration) (models.Coordinate, error) {
	if l == nil {
		return models.Coordinate{}, apperrors.ErrGeolocationUnavailable
	}
	if d <= 0 {
		d = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		coord models.Coordinate
		err   error
	}
	done := make(chan result, 1)
	go func() {
		c, err := l.Locate(ctx)
		done <- result{c, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return models.Coordinate{}, apperrors.ErrGeolocationTimeout.Wrap(r.err)
		}
		if r.err != nil && !apperrors.IsGeolocation(r.err) {
			return models.Coordinate{}, apperrors.ErrGeolocationUnavailable.Wrap(r.err)
		}
		return r.coord, r.err
	case <-ctx.Done():
		return models.Coordinate{}, apperrors.ErrGeolocationTimeout.Wrap(ctx.Err())
	}
}
