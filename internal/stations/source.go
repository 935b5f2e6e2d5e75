package stations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/cache"
	"github.com/randytsao24/ubikenear/internal/models"
)

// maxBodyBytes caps a single feed download
const maxBodyBytes = 32 << 20

// Batch is one fetch result
type Batch struct {
	Records   []models.RawStationRecord
	FetchedAt time.Time
	// Stale is set when the records come from an earlier successful fetch
	// because the upstream could not be reached.
	Stale bool
}

// Source supplies raw station records
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Batch, error)
}

// HTTPSource downloads a station feed over HTTP
type HTTPSource struct {
	name   string
	city   string
	url    string
	client *http.Client
	cache  *cache.Cache[Batch]
	logger *zap.Logger
}

// NewHTTPSource creates a feed source. Records without a city tag get city.
// Responses are reused for cacheTTL and served stale for up to
// staleFor when the upstream fails.
func NewHTTPSource(name, city, url string, timeout, cacheTTL, staleFor time.Duration, logger *zap.Logger) *HTTPSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSource{
		name:   name,
		city:   city,
		url:    url,
		client: &http.Client{Timeout: timeout},
		cache:  cache.New[Batch](cacheTTL, staleFor),
		logger: logger.With(zap.String("source", name)),
	}
}

func (s *HTTPSource) Name() string { return s.name }

// Close stops the source's cache janitor
func (s *HTTPSource) Close() {
	s.cache.Close()
}

// Fetch returns the feed, from cache when fresh
func (s *HTTPSource) Fetch(ctx context.Context) (Batch, error) {
	if cached, ok := s.cache.Get(s.url); ok {
		s.logger.Debug("feed cache hit")
		return cached, nil
	}

	records, err := s.download(ctx)
	if err != nil {
		if stale, _, found := s.cache.GetStale(s.url); found {
			s.logger.Warn("feed unavailable, serving stale copy",
				zap.Error(err),
				zap.Time("fetched_at", stale.FetchedAt),
			)
			stale.Stale = true
			return stale, nil
		}
		return Batch{}, apperrors.ErrDataFetchFailed.Wrap(err)
	}

	batch := Batch{Records: records, FetchedAt: time.Now()}
	s.cache.Set(s.url, batch)
	s.logger.Info("feed fetched", zap.Int("records", len(records)))
	return batch, nil
}

func (s *HTTPSource) download(ctx context.Context) ([]models.RawStationRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching stations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("station feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return tagCity(DecodeRecords(body), s.city), nil
}

// FileSource reads a feed snapshot from disk
type FileSource struct {
	path string
	city string
}

func NewFileSource(path, city string) *FileSource {
	return &FileSource{path: path, city: city}
}

func (s *FileSource) Name() string { return "file:" + s.path }

func (s *FileSource) Fetch(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, apperrors.ErrDataFetchFailed.Wrap(err)
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return Batch{}, apperrors.ErrDataFetchFailed.Wrap(fmt.Errorf("opening station file: %w", err))
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Batch{}, apperrors.ErrDataFetchFailed.Wrap(fmt.Errorf("reading station file: %w", err))
	}

	return Batch{
		Records:   tagCity(DecodeRecords(data), s.city),
		FetchedAt: info.ModTime(),
	}, nil
}

// MultiSource queries several sources concurrently and concatenates their
// records in configuration order
type MultiSource struct {
	sources []Source
	logger  *zap.Logger
}

func NewMultiSource(logger *zap.Logger, sources ...Source) *MultiSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiSource{sources: sources, logger: logger}
}

func (m *MultiSource) Name() string { return "multi" }

// Fetch succeeds when at least one source does. The batch is stale if any
// contributing source was stale.
func (m *MultiSource) Fetch(ctx context.Context) (Batch, error) {
	if len(m.sources) == 0 {
		return Batch{}, apperrors.ErrDataFetchFailed.Wrap(errors.New("no station sources configured"))
	}

	batches := make([]Batch, len(m.sources))
	errs := make([]error, len(m.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, src := range m.sources {
		g.Go(func() error {
			batch, err := src.Fetch(gctx)
			if err != nil {
				m.logger.Warn("station source failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				errs[i] = fmt.Errorf("%s: %w", src.Name(), err)
				return nil
			}
			batches[i] = batch
			return nil
		})
	}
	_ = g.Wait()

	var merged Batch
	ok := 0
	for i, b := range batches {
		if errs[i] != nil {
			continue
		}
		ok++
		merged.Records = append(merged.Records, b.Records...)
		merged.Stale = merged.Stale || b.Stale
		if merged.FetchedAt.IsZero() || b.FetchedAt.Before(merged.FetchedAt) {
			merged.FetchedAt = b.FetchedAt
		}
	}

	if ok == 0 {
		return Batch{}, apperrors.ErrDataFetchFailed.Wrap(errors.Join(errs...))
	}
	return merged, nil
}

func tagCity(records []models.RawStationRecord, city string) []models.RawStationRecord {
	if city == "" {
		return records
	}
	for i := range records {
		if asString(records[i].City) == "" {
			records[i].City = city
		}
	}
	return records
}
