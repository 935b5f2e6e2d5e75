// Package app holds the controller that owns the station snapshot, the
// reference coordinate and the status message.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/favorites"
	"github.com/randytsao24/ubikenear/internal/location"
	"github.com/randytsao24/ubikenear/internal/models"
	"github.com/randytsao24/ubikenear/internal/stations"
)

const (
	msgLocating      = "Locating you..."
	msgUpdating      = "Updating station data..."
	msgReady         = "Station data updated"
	msgStale         = "Showing cached station data, the live feed is unavailable"
	msgNoLocation    = "Location unavailable, distances are not shown"
	msgFetchFailed   = "Unable to load station data, please try again later"
	msgImported      = "Favorites imported"
	msgImportInvalid = "Import failed, check that the code is a JSON array of station ids"
	msgSaveFailed    = "Could not save favorites"
)

// Options tune a Controller
type Options struct {
	GeoTimeout time.Duration
	NearbyCap  int
}

// state is the controller's only mutable data. It is replaced wholesale.
type state struct {
	stations    []models.Station
	reference   *models.Coordinate
	refreshedAt time.Time
	generation  uint64
	status      models.Status
}

// Controller serializes access to the canonical station set. Readers get
// copies; writers swap the whole state under the lock.
type Controller struct {
	source    stations.Source
	locator   location.Locator
	favorites *favorites.Store
	opts      Options
	logger    *zap.Logger

	mu    sync.RWMutex
	state state

	refreshes singleflight.Group
	issued    uint64 // guarded by mu
}

func NewController(source stations.Source, locator location.Locator, favs *favorites.Store, opts Options, logger *zap.Logger) *Controller {
	if opts.GeoTimeout <= 0 {
		opts.GeoTimeout = location.DefaultTimeout
	}
	if opts.NearbyCap < 1 {
		opts.NearbyCap = stations.DefaultNearbyCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		source:    source,
		locator:   locator,
		favorites: favs,
		opts:      opts,
		logger:    logger,
		state: state{
			stations: []models.Station{},
			status:   models.Status{Message: msgLocating},
		},
	}
}

// RefreshResult describes one completed refresh cycle
type RefreshResult struct {
	Stations   int                `json:"stations"`
	Reference  *models.Coordinate `json:"reference,omitempty"`
	Stale      bool               `json:"stale"`
	Generation uint64             `json:"generation"`
	Shared     bool               `json:"shared"`
}

// Refresh runs one locate-then-fetch cycle. Calls that arrive while a cycle
// is in flight wait for it and share its result. Geolocation failures only
// drop the reference coordinate; a fetch failure keeps the previous
// stations and is returned.
func (c *Controller) Refresh(ctx context.Context) (RefreshResult, error) {
	v, err, shared := c.refreshes.Do("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	res, _ := v.(RefreshResult)
	res.Shared = shared
	return res, err
}

func (c *Controller) refresh(ctx context.Context) (RefreshResult, error) {
	c.mu.Lock()
	c.issued++
	gen := c.issued
	c.mu.Unlock()

	c.setStatus(msgLocating, nil)
	ref := c.locate(ctx)

	c.setStatus(msgUpdating, nil)
	batch, err := c.source.Fetch(ctx)
	if err != nil {
		c.logger.Error("station fetch failed", zap.Error(err), zap.Uint64("generation", gen))
		c.mu.Lock()
		if ref != nil {
			c.state.reference = ref
		}
		c.state.status = c.statusLocked(msgFetchFailed, apperrors.ErrDataFetchFailed)
		c.mu.Unlock()
		return RefreshResult{Generation: gen}, apperrors.ErrDataFetchFailed.Wrap(err)
	}

	normalized := stations.Normalize(batch.Records, ref)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.state.generation {
		c.logger.Warn("discarding outdated refresh",
			zap.Uint64("generation", gen),
			zap.Uint64("current", c.state.generation),
		)
		return RefreshResult{Generation: gen, Stations: len(normalized)}, nil
	}

	c.state.stations = normalized
	c.state.reference = ref
	c.state.refreshedAt = batch.FetchedAt
	c.state.generation = gen

	msg := msgReady
	switch {
	case batch.Stale:
		msg = msgStale
	case ref == nil:
		msg = msgNoLocation
	}
	c.state.status = c.statusLocked(msg, nil)

	c.logger.Info("stations refreshed",
		zap.Int("raw", len(batch.Records)),
		zap.Int("stations", len(normalized)),
		zap.Bool("located", ref != nil),
		zap.Bool("stale", batch.Stale),
		zap.Uint64("generation", gen),
	)

	return RefreshResult{
		Stations:   len(normalized),
		Reference:  ref,
		Stale:      batch.Stale,
		Generation: gen,
	}, nil
}

// locate tries the locator under the geolocation timeout. Any failure means
// no reference coordinate.
func (c *Controller) locate(ctx context.Context) *models.Coordinate {
	coord, err := location.LocateWithTimeout(ctx, c.locator, c.opts.GeoTimeout)
	if err != nil {
		c.logger.Warn("continuing without location",
			zap.String("code", apperrors.Code(err)),
			zap.Error(err),
		)
		return nil
	}
	return &coord
}

// Run refreshes every interval until ctx is done
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := c.Refresh(ctx); err != nil {
				c.logger.Warn("scheduled refresh failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Views computes the favorites and nearby lists. A non-nil ref replaces the
// located coordinate for this call only.
func (c *Controller) Views(criteria models.ViewCriteria, ref *models.Coordinate) models.Views {
	list, favs := c.snapshot(ref)
	return stations.ComputeViews(list, favs, criteria, c.opts.NearbyCap)
}

// Station returns one station from the snapshot
func (c *Controller) Station(id string, ref *models.Coordinate) (models.Station, bool) {
	list, _ := c.snapshot(ref)
	return stations.FindByID(list, id)
}

// Cities lists the city tags present in the snapshot
func (c *Controller) Cities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return stations.Cities(c.state.stations)
}

// Districts lists the areas present in the snapshot, optionally for one city
func (c *Controller) Districts(city string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return stations.Districts(c.state.stations, city)
}

// Status returns the current status message
func (c *Controller) Status() models.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.status
}

// IsFavorite reports favorite membership
func (c *Controller) IsFavorite(id string) bool {
	return c.favorites.Contains(id)
}

// ToggleFavorite flips id and returns the new membership
func (c *Controller) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	member, err := c.favorites.Toggle(ctx, id)
	if err != nil {
		c.setStatus(msgSaveFailed, err)
	}
	return member, err
}

func (c *Controller) AddFavorite(ctx context.Context, id string) error {
	err := c.favorites.Add(ctx, id)
	if err != nil {
		c.setStatus(msgSaveFailed, err)
	}
	return err
}

func (c *Controller) RemoveFavorite(ctx context.Context, id string) error {
	err := c.favorites.Remove(ctx, id)
	if err != nil {
		c.setStatus(msgSaveFailed, err)
	}
	return err
}

// ExportFavorites returns the favorite ids in stable order
func (c *Controller) ExportFavorites() []string {
	return c.favorites.ExportAll()
}

// ImportFavorites merges a JSON array of ids into the favorites
func (c *Controller) ImportFavorites(ctx context.Context, data []byte) (int, error) {
	n, err := c.favorites.ImportJSON(ctx, data)
	switch {
	case errors.Is(err, apperrors.ErrImportValidation):
		c.setStatus(msgImportInvalid, err)
	case err != nil:
		c.setStatus(msgSaveFailed, err)
	default:
		c.setStatus(msgImported, nil)
	}
	return n, err
}

func (c *Controller) snapshot(ref *models.Coordinate) ([]models.Station, models.IDSet) {
	c.mu.RLock()
	list := c.state.stations
	if ref == nil {
		ref = c.state.reference
	}
	c.mu.RUnlock()

	return stations.WithDistances(list, ref), c.favorites.Snapshot()
}

func (c *Controller) setStatus(msg string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.status = c.statusLocked(msg, err)
}

func (c *Controller) statusLocked(msg string, err error) models.Status {
	return models.Status{
		Message:      msg,
		IsError:      err != nil,
		Code:         apperrors.Code(err),
		StationCount: len(c.state.stations),
		Reference:    c.state.reference,
		RefreshedAt:  c.state.refreshedAt,
		Generation:   c.state.generation,
	}
}
