package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/models"
)

type blockingLocator struct{}

func (blockingLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	<-ctx.Done()
	return models.Coordinate{}, ctx.Err()
}

// stuckLocator ignores its context entirely
type stuckLocator struct{ release chan struct{} }

func (l stuckLocator) Locate(ctx context.Context) (models.Coordinate, error) {
	<-l.release
	return models.Coordinate{Lat: 1, Lng: 1}, nil
}

func TestStaticLocator(t *testing.T) {
	coord := &models.Coordinate{Lat: 25.0, Lng: 121.5}
	got, err := NewStaticLocator(coord).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, *coord, got)

	_, err = NewStaticLocator(nil).Locate(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrGeolocationUnavailable)

	_, err = NewStaticLocator(&models.Coordinate{Lat: 120, Lng: 0}).Locate(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrGeolocationUnavailable)
}

func TestIPLocator(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    models.Coordinate
		wantErr error
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"status":"success","lat":25.05,"lon":121.53}`,
			want:   models.Coordinate{Lat: 25.05, Lng: 121.53},
		},
		{
			name:    "lookup refused",
			status:  http.StatusOK,
			body:    `{"status":"fail","message":"private range"}`,
			wantErr: apperrors.ErrGeolocationDenied,
		},
		{
			name:    "upstream error",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			wantErr: apperrors.ErrGeolocationUnavailable,
		},
		{
			name:    "garbage",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: apperrors.ErrGeolocationUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewIPLocator(srv.URL).Locate(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIPLocatorWithoutURL(t *testing.T) {
	_, err := NewIPLocator("").Locate(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrGeolocationUnavailable)
}

func TestLocateWithTimeout(t *testing.T) {
	_, err := LocateWithTimeout(context.Background(), blockingLocator{}, 20*time.Millisecond)
	assert.ErrorIs(t, err, apperrors.ErrGeolocationTimeout)

	release := make(chan struct{})
	defer close(release)
	start := time.Now()
	_, err = LocateWithTimeout(context.Background(), stuckLocator{release: release}, 20*time.Millisecond)
	assert.ErrorIs(t, err, apperrors.ErrGeolocationTimeout)
	assert.Less(t, time.Since(start), time.Second)

	coord := models.Coordinate{Lat: 25, Lng: 121}
	got, err := LocateWithTimeout(context.Background(), NewStaticLocator(&coord), time.Second)
	require.NoError(t, err)
	assert.Equal(t, coord, got)

	_, err = LocateWithTimeout(context.Background(), nil, time.Second)
	assert.ErrorIs(t, err, apperrors.ErrGeolocationUnavailable)
}
