package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBufferStoreRoundTrip(t *testing.T) {
	store := NewMemoryBufferStore(time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("payload")))
	data, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrBufferNotFound)

	require.NoError(t, store.Delete(ctx, "k1"))
	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrBufferNotFound)
}

func TestMemoryBufferStoreSweepEvictsExpired(t *testing.T) {
	store := NewMemoryBufferStore(time.Hour)
	ctx := context.Background()

	base := time.Now()
	store.now = func() time.Time { return base.Add(-2 * time.Hour) }
	require.NoError(t, store.Set(ctx, "old", []byte("stale")))

	store.now = func() time.Time { return base }
	require.NoError(t, store.Set(ctx, "fresh", []byte("live")))

	evicted, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrBufferNotFound)
	_, err = store.Get(ctx, "fresh")
	assert.NoError(t, err)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
