package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuyChahine/deeplogs/internal/record"
	"github.com/GuyChahine/deeplogs/internal/storage"
	"github.com/GuyChahine/deeplogs/internal/storage/sqlstore"
)

func openTestStore(t *testing.T, dsn string) *sqlstore.Store {
	t.Helper()
	store, err := sqlstore.Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	t.Parallel()

	_, err := sqlstore.Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestPutGetList(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, "sqlite://"+filepath.Join(t.TempDir(), "logs.db"))
	assert.Equal(t, "sqlite", store.Dialect())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "b/.log", []byte("one")))
	require.NoError(t, store.Put(ctx, "b/.log", []byte("two")))
	require.NoError(t, store.Put(ctx, "a/.log", []byte{}))
	require.NoError(t, store.Put(ctx, "a/images/x_0.png", []byte{0x89}))

	got, err := store.Get(ctx, "b/.log")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	keys, err := store.List(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/.log", "a/images/x_0.png"}, keys)

	names, err := storage.Sessions(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestGetMissingAndBadKeys(t *testing.T) {
	t.Parallel()

	store := openTestStore(t, filepath.Join(t.TempDir(), "bare.db"))
	ctx := context.Background()

	_, err := store.Get(ctx, "missing/.log")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.ErrorIs(t, store.Put(ctx, "../x", nil), storage.ErrInvalidKey)
}

func TestRecordSurvivesReopen(t *testing.T) {
	t.Parallel()

	dsn := "sqlite://" + filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	rec := record.New("run", "desc", map[string]record.Param{"lr": record.FloatParam(0.1)})
	rec.Append(0, map[string]float64{"loss": 1})
	rec.Append(1, map[string]float64{"loss": 0.5, "acc": 0.9})

	first, err := sqlstore.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, storage.SaveRecord(ctx, first, rec))
	require.NoError(t, first.Close())

	second := openTestStore(t, dsn)
	loaded, err := storage.LoadRecord(ctx, second, "run")
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}
