package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/favorites"
	"github.com/randytsao24/ubikenear/internal/location"
	"github.com/randytsao24/ubikenear/internal/models"
	"github.com/randytsao24/ubikenear/internal/stations"
	"github.com/randytsao24/ubikenear/internal/storage"
)

type fakeSource struct {
	mu      sync.Mutex
	records []models.RawStationRecord
	err     error
	stale   bool
	calls   atomic.Int32
	gate    chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context) (stations.Batch, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return stations.Batch{}, f.err
	}
	return stations.Batch{Records: f.records, FetchedAt: time.Now(), Stale: f.stale}, nil
}

func (f *fakeSource) set(records []models.RawStationRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.err = err
}

type failingLocator struct{ err error }

func (l failingLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	return models.Coordinate{}, l.err
}

type hangingLocator struct{}

func (hangingLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	<-ctx.Done()
	return models.Coordinate{}, ctx.Err()
}

func raw(id string, lat, lng float64, area string) models.RawStationRecord {
	return models.RawStationRecord{ID: id, Name: "Station " + id, Lat: lat, Lng: lng, Area: area, City: "Taipei", Active: "1"}
}

var home = models.Coordinate{Lat: 25.0, Lng: 121.5}

func sampleRecords() []models.RawStationRecord {
	return []models.RawStationRecord{
		raw("far", 25.0306, 121.5, "大安區"),
		raw("near", 25.0108, 121.5, "大安區"),
		raw("mid", 25.02, 121.5, "信義區"),
	}
}

func newController(t *testing.T, src stations.Source, loc location.Locator) *Controller {
	t.Helper()
	favs := favorites.NewStore(context.Background(), storage.NewMemoryKV(), "", zap.NewNop())
	return NewController(src, loc, favs, Options{GeoTimeout: 50 * time.Millisecond, NearbyCap: 10}, zap.NewNop())
}

func ids(list []models.Station) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestRefreshWithLocation(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	c := newController(t, src, location.NewStaticLocator(&home))

	res, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stations)
	assert.Equal(t, &home, res.Reference)

	views := c.Views(models.ViewCriteria{}, nil)
	assert.Equal(t, []string{"near", "mid", "far"}, ids(views.Nearby))

	status := c.Status()
	assert.False(t, status.IsError)
	assert.Equal(t, msgReady, status.Message)
	assert.Equal(t, 3, status.StationCount)
	assert.Equal(t, res.Generation, status.Generation)
}

func TestRefreshDegradesWithoutLocation(t *testing.T) {
	tests := []struct {
		name    string
		locator location.Locator
	}{
		{"denied", failingLocator{err: apperrors.ErrGeolocationDenied}},
		{"unavailable", location.NewStaticLocator(nil)},
		{"timeout", hangingLocator{}},
		{"nil locator", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{records: sampleRecords()}
			c := newController(t, src, tt.locator)

			res, err := c.Refresh(context.Background())
			require.NoError(t, err)
			assert.Nil(t, res.Reference)
			assert.EqualValues(t, 1, src.calls.Load(), "fetch runs regardless of geolocation")

			views := c.Views(models.ViewCriteria{}, nil)
			assert.Equal(t, []string{"far", "near", "mid"}, ids(views.Nearby), "source order without distances")
			for _, s := range views.Nearby {
				assert.Nil(t, s.DistanceKm)
			}
			assert.Equal(t, msgNoLocation, c.Status().Message)
		})
	}
}

func TestRefreshFailureKeepsPreviousStations(t *testing.T) {
	src := &fakeSource{err: errors.New("network down")}
	c := newController(t, src, location.NewStaticLocator(&home))

	_, err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrDataFetchFailed)
	assert.Empty(t, c.Views(models.ViewCriteria{}, nil).Nearby)
	status := c.Status()
	assert.True(t, status.IsError)
	assert.Equal(t, apperrors.CodeDataFetchFailed, status.Code)
	assert.Equal(t, msgFetchFailed, status.Message)

	src.set(sampleRecords(), nil)
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, c.Views(models.ViewCriteria{}, nil).Nearby, 3)

	src.set(nil, errors.New("network down again"))
	_, err = c.Refresh(context.Background())
	assert.Error(t, err)
	assert.Len(t, c.Views(models.ViewCriteria{}, nil).Nearby, 3, "stale set survives a failed refresh")
	assert.True(t, c.Status().IsError)
}

func TestRefreshReportsStaleData(t *testing.T) {
	src := &fakeSource{records: sampleRecords(), stale: true}
	c := newController(t, src, location.NewStaticLocator(&home))

	res, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, msgStale, c.Status().Message)
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	src := &fakeSource{records: sampleRecords(), gate: make(chan struct{})}
	c := newController(t, src, location.NewStaticLocator(&home))

	var wg sync.WaitGroup
	results := make([]RefreshResult, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Refresh(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	// Let both callers reach singleflight before releasing the fetch.
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
	assert.Equal(t, results[0].Generation, results[1].Generation)
	assert.True(t, results[0].Shared || results[1].Shared)
}

func TestSequentialRefreshesAdvanceGeneration(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	c := newController(t, src, nil)

	first, err := c.Refresh(context.Background())
	require.NoError(t, err)
	second, err := c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)
	assert.Equal(t, second.Generation, c.Status().Generation)
}

func TestViewsRequestReferenceOverrides(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	c := newController(t, src, nil)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	north := models.Coordinate{Lat: 25.04, Lng: 121.5}
	views := c.Views(models.ViewCriteria{}, &north)
	assert.Equal(t, []string{"far", "mid", "near"}, ids(views.Nearby))

	s, ok := c.Station("near", &home)
	require.True(t, ok)
	require.NotNil(t, s.DistanceKm)
	assert.InDelta(t, 1.2, *s.DistanceKm, 0.05)

	_, ok = c.Station("ghost", nil)
	assert.False(t, ok)
}

func TestFavoritesFlowThroughViews(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	c := newController(t, src, location.NewStaticLocator(&home))
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)
	ctx := context.Background()

	member, err := c.ToggleFavorite(ctx, "far")
	require.NoError(t, err)
	assert.True(t, member)
	assert.True(t, c.IsFavorite("far"))

	views := c.Views(models.ViewCriteria{District: "信義區"}, nil)
	assert.Equal(t, []string{"far"}, ids(views.Favorites), "district does not narrow favorites")
	assert.Equal(t, []string{"mid"}, ids(views.Nearby))

	require.NoError(t, c.AddFavorite(ctx, "near"))
	require.NoError(t, c.RemoveFavorite(ctx, "far"))
	assert.Equal(t, []string{"near"}, c.ExportFavorites())

	n, err := c.ImportFavorites(ctx, []byte(`["mid","far"]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, msgImported, c.Status().Message)
	assert.Equal(t, []string{"far", "mid", "near"}, c.ExportFavorites())

	views = c.Views(models.ViewCriteria{}, nil)
	assert.Equal(t, []string{"near", "mid", "far"}, ids(views.Favorites))
	assert.Empty(t, views.Nearby)

	_, err = c.ImportFavorites(ctx, []byte(`["x", 5]`))
	assert.ErrorIs(t, err, apperrors.ErrImportValidation)
	status := c.Status()
	assert.True(t, status.IsError)
	assert.Equal(t, apperrors.CodeImportValidation, status.Code)
	assert.Equal(t, []string{"far", "mid", "near"}, c.ExportFavorites())
}

func TestCitiesAndDistricts(t *testing.T) {
	recs := sampleRecords()
	ntpc := raw("bq", 25.01, 121.46, "板橋區")
	ntpc.City = "New Taipei"
	recs = append(recs, ntpc)

	c := newController(t, &fakeSource{records: recs}, nil)
	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"New Taipei", "Taipei"}, c.Cities())
	assert.Equal(t, []string{"信義區", "大安區"}, c.Districts("Taipei"))
	assert.Len(t, c.Districts(""), 3)
}

func TestRunStopsWithContext(t *testing.T) {
	src := &fakeSource{records: sampleRecords()}
	c := newController(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	c.Run(context.Background(), 0)
}
