package favorites

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/randytsao24/ubikenear/internal/apperrors"
	"github.com/randytsao24/ubikenear/internal/models"
	"github.com/randytsao24/ubikenear/internal/storage"
)

// flakyKV wraps a KV and can be told to fail reads or writes
type flakyKV struct {
	storage.KV
	failGet bool
	failSet bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("disk on fire")
	}
	return f.KV.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, key, value)
}

func newStore(t *testing.T, initial string) (*Store, storage.KV) {
	t.Helper()
	kv := storage.NewMemoryKV()
	if initial != "" {
		require.NoError(t, kv.Set(context.Background(), DefaultKey, initial))
	}
	return NewStore(context.Background(), kv, "", zap.NewNop()), kv
}

func persisted(t *testing.T, kv storage.KV) string {
	t.Helper()
	v, _, err := kv.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	return v
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		want    []string
	}{
		{"missing", "", []string{}},
		{"valid", `["B","A"]`, []string{"A", "B"}},
		{"not json", `{oops`, []string{}},
		{"wrong element type", `["A", 5]`, []string{}},
		{"object", `{"A":true}`, []string{}},
		{"null", `null`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newStore(t, tt.initial)
			assert.Equal(t, tt.want, store.ExportAll())
		})
	}
}

func TestLoadReadErrorDegradesToEmpty(t *testing.T) {
	kv := &flakyKV{KV: storage.NewMemoryKV(), failGet: true}
	store := NewStore(context.Background(), kv, "", nil)
	assert.Empty(t, store.ExportAll())
	assert.Empty(t, store.Load(context.Background()))
}

func TestToggleIsItsOwnInverse(t *testing.T) {
	store, kv := newStore(t, `["A"]`)
	ctx := context.Background()

	before := persisted(t, kv)
	require.Equal(t, `["A"]`, before)

	member, err := store.Toggle(ctx, "B")
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, `["A","B"]`, persisted(t, kv))

	member, err = store.Toggle(ctx, "B")
	require.NoError(t, err)
	assert.False(t, member)
	assert.Equal(t, before, persisted(t, kv))
	assert.False(t, store.Contains("B"))

	member, err = store.Toggle(ctx, "A")
	require.NoError(t, err)
	assert.False(t, member)
	member, err = store.Toggle(ctx, "A")
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, before, persisted(t, kv))
}

func TestAddRemove(t *testing.T) {
	store, kv := newStore(t, "")
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "X"))
	require.NoError(t, store.Add(ctx, "X"))
	assert.True(t, store.Contains("X"))
	assert.Equal(t, `["X"]`, persisted(t, kv))

	require.NoError(t, store.Remove(ctx, "X"))
	require.NoError(t, store.Remove(ctx, "never-there"))
	assert.False(t, store.Contains("X"))
	assert.Equal(t, `[]`, persisted(t, kv))
}

func TestImportMerge(t *testing.T) {
	store, kv := newStore(t, `["A"]`)

	n, err := store.ImportMerge(context.Background(), []any{"B", "C", "B"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A", "B", "C"}, store.ExportAll())
	assert.Equal(t, `["A","B","C"]`, persisted(t, kv))
}

func TestImportMergeRejectsAtomically(t *testing.T) {
	store, kv := newStore(t, `["A"]`)
	before := persisted(t, kv)

	bad := [][]any{
		{"B", 5},
		{"B", nil},
		{"B", ""},
		{[]any{"C"}},
		nil,
	}
	for _, ids := range bad {
		_, err := store.ImportMerge(context.Background(), ids)
		assert.ErrorIs(t, err, apperrors.ErrImportValidation, "%v", ids)
		assert.Equal(t, []string{"A"}, store.ExportAll())
		assert.Equal(t, before, persisted(t, kv))
	}
}

func TestImportJSON(t *testing.T) {
	store, kv := newStore(t, `["A"]`)
	ctx := context.Background()
	before := persisted(t, kv)

	for _, body := range []string{``, `   `, `"A"`, `{"ids":["B"]}`, `["B", 5]`, `["B"`, `null`} {
		_, err := store.ImportJSON(ctx, []byte(body))
		assert.ErrorIs(t, err, apperrors.ErrImportValidation, body)
		assert.Equal(t, before, persisted(t, kv), body)
	}

	n, err := store.ImportJSON(ctx, []byte(` ["B","C"] `))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A", "B", "C"}, store.ExportAll())

	n, err = store.ImportJSON(ctx, []byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExportRoundTrip(t *testing.T) {
	store, _ := newStore(t, `["s2","s1","s3"]`)

	data, err := store.ExportJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `["s1","s2","s3"]`, string(data))

	other, _ := newStore(t, "")
	_, err = other.ImportJSON(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, store.ExportAll(), other.ExportAll())
}

func TestWriteFailureKeepsPreviousState(t *testing.T) {
	kv := &flakyKV{KV: storage.NewMemoryKV()}
	require.NoError(t, kv.KV.Set(context.Background(), DefaultKey, `["A"]`))
	store := NewStore(context.Background(), kv, "", zap.NewNop())
	kv.failSet = true
	ctx := context.Background()

	member, err := store.Toggle(ctx, "B")
	assert.ErrorIs(t, err, apperrors.ErrPersistenceWrite)
	assert.False(t, member)
	assert.False(t, store.Contains("B"))

	assert.ErrorIs(t, store.Add(ctx, "C"), apperrors.ErrPersistenceWrite)
	assert.ErrorIs(t, store.Remove(ctx, "A"), apperrors.ErrPersistenceWrite)
	_, err = store.ImportMerge(ctx, []any{"D"})
	assert.ErrorIs(t, err, apperrors.ErrPersistenceWrite)

	assert.Equal(t, []string{"A"}, store.ExportAll())
}

func TestSnapshotIsCopy(t *testing.T) {
	store, _ := newStore(t, `["A"]`)
	snap := store.Snapshot()
	snap["Z"] = struct{}{}
	assert.False(t, store.Contains("Z"))
	assert.Equal(t, models.NewIDSet("A"), store.Snapshot())
}

func TestToggleInverseHoldsUpToOrdering(t *testing.T) {
	store, kv := newStore(t, `["C","A"]`)
	ctx := context.Background()

	_, err := store.Toggle(ctx, "B")
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "B")
	require.NoError(t, err)

	assert.Equal(t, `["A","C"]`, persisted(t, kv))
	assert.Equal(t, []string{"A", "C"}, store.ExportAll())
}
