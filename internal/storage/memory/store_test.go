package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GuyChahine/deeplogs/internal/storage"
)

func TestStorePutCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte("content")
	require.NoError(t, store.Put(context.Background(), "run/.log", payload))
	payload[0] = 'C'

	got, err := store.Get(context.Background(), "run/.log")
	require.NoError(t, err)
	require.Equal(t, "content", string(got))

	got[0] = 'X'
	again, err := store.Get(context.Background(), "run/.log")
	require.NoError(t, err)
	require.Equal(t, "content", string(again))
	require.Equal(t, 1, store.Puts())
}

func TestStoreGetMissing(t *testing.T) {
	t.Parallel()

	_, err := New().Get(context.Background(), "nope/.log")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreListPrefix(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	for _, key := range []string{"b/.log", "a/.log", "a/images/x_0.png"} {
		require.NoError(t, store.Put(ctx, key, []byte("x")))
	}

	keys, err := store.List(ctx, "a/")
	require.NoError(t, err)
	require.Equal(t, []string{"a/.log", "a/images/x_0.png"}, keys)

	names, err := storage.Sessions(ctx, store)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)
}

func TestStoreRejectsBadKeys(t *testing.T) {
	t.Parallel()

	store := New()
	for _, key := range []string{"", "/abs", "a/../b", "a//b"} {
		require.ErrorIs(t, store.Put(context.Background(), key, nil), storage.ErrInvalidKey, key)
	}
}

func TestStorePutHonoursCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, New().Put(ctx, "a/.log", nil), context.Canceled)
}
