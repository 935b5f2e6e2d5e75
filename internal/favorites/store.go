// Package favorites owns the persisted set of favorite station ids
package favorites

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/models"
	"github.com/randytsao24/ubikenear/internal/storage"
)

// DefaultKey is the storage key the set lives under
const DefaultKey = "ubike-favorites"

// Store keeps the favorites set in memory and writes the whole set back to
// storage after every mutation. A mutation only takes effect in memory once
// the write succeeded. Writes are always sorted, so toggling an id twice
// restores the stored set, and restores the stored bytes once they have
// been written by the store at least once.
type Store struct {
	kv     storage.KV
	key    string
	logger *zap.Logger

	mu  sync.Mutex
	ids models.IDSet
}

// NewStore creates a store over kv and loads the persisted set
func NewStore(ctx context.Context, kv storage.KV, key string, logger *zap.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{kv: kv, key: key, logger: logger}
	s.Load(ctx)
	return s
}

// Load re-reads the persisted set. Missing or unreadable data yields an
// empty set; Load never fails.
func (s *Store) Load(ctx context.Context) models.IDSet {
	ids, err := s.read(ctx)
	if err != nil {
		s.logger.Warn("favorites unreadable, starting empty", zap.Error(err))
		ids = models.IDSet{}
	}

	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()
	return ids.Clone()
}

// Save replaces the persisted set with ids
func (s *Store) Save(ctx context.Context, ids models.IDSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, ids.Clone())
}

// Contains reports membership
func (s *Store) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Has(id)
}

// Snapshot returns a copy of the current set
func (s *Store) Snapshot() models.IDSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Clone()
}

// Toggle flips membership of id and returns the new membership
func (s *Store) Toggle(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.ids.Clone()
	member := !next.Has(id)
	if member {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}

	if err := s.commit(ctx, next); err != nil {
		return !member, err
	}
	return member, nil
}

// Add makes id a favorite
func (s *Store) Add(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids.Has(id) {
		return nil
	}
	next := s.ids.Clone()
	next[id] = struct{}{}
	return s.commit(ctx, next)
}

// Remove drops id from the favorites
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ids.Has(id) {
		return nil
	}
	next := s.ids.Clone()
	delete(next, id)
	return s.commit(ctx, next)
}

// ExportAll returns the ids in ascending order
func (s *Store) ExportAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids.Sorted()
}

// ExportJSON renders the set as a JSON array of strings
func (s *Store) ExportJSON() ([]byte, error) {
	return json.Marshal(s.ExportAll())
}

// ImportMerge unions ids into the set. Every element must be a non-empty
// string; otherwise nothing changes and ErrImportValidation is returned.
// It returns the number of distinct ids supplied.
func (s *Store) ImportMerge(ctx context.Context, ids []any) (int, error) {
	valid, err := validateImport(ids)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.ids.Clone()
	for _, id := range valid {
		next[id] = struct{}{}
	}
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	return len(models.NewIDSet(valid...)), nil
}

// ImportJSON parses data as a JSON array of strings and merges it
func (s *Store) ImportJSON(ctx context.Context, data []byte) (int, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return 0, apperrors.ErrImportValidation
	}

	var ids []any
	if err := json.Unmarshal(data, &ids); err != nil {
		return 0, apperrors.ErrImportValidation.Wrap(err)
	}
	return s.ImportMerge(ctx, ids)
}

func validateImport(ids []any) ([]string, error) {
	if ids == nil {
		return nil, apperrors.ErrImportValidation
	}
	out := make([]string, 0, len(ids))
	for i, v := range ids {
		id, ok := v.(string)
		if !ok || strings.TrimSpace(id) == "" {
			return nil, apperrors.ErrImportValidation.WithDetails(map[string]any{
				"index": i,
				"value": v,
			})
		}
		out = append(out, id)
	}
	return out, nil
}

// commit persists next and installs it. Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next models.IDSet) error {
	data, err := json.Marshal(next.Sorted())
	if err != nil {
		return apperrors.ErrPersistenceWrite.Wrap(err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		s.logger.Error("could not save favorites", zap.Error(err))
		return apperrors.ErrPersistenceWrite.Wrap(err)
	}
	s.ids = next
	return nil
}

func (s *Store) read(ctx context.Context) (models.IDSet, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, apperrors.ErrPersistenceCorrupt.Wrap(err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return models.IDSet{}, nil
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, apperrors.ErrPersistenceCorrupt.Wrap(fmt.Errorf("decoding %q: %w", s.key, err))
	}
	return models.NewIDSet(ids...), nil
}
