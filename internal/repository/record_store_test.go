package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sku-media-api/internal/models"
)

func TestRecordStoreLifecycle(t *testing.T) {
	store := NewRecordStore()
	store.Create(&models.ProcessingRecord{ID: "a", ServerName: "SKU_001.jpg", Status: models.StatusQueued})

	store.MarkProcessing("a")
	rec, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, models.StatusProcessing, rec.Status)

	store.MarkDone("a", 800, 600, 1234, "/preview/a")
	rec, _ = store.Get("a")
	assert.Equal(t, models.StatusDone, rec.Status)
	assert.Equal(t, 800, rec.Width)
	assert.Equal(t, "/preview/a", rec.PreviewURL)

	// done is terminal
	store.MarkFailed("a", "late failure")
	rec, _ = store.Get("a")
	assert.Equal(t, models.StatusDone, rec.Status)
	assert.Empty(t, rec.Error)
}

func TestRecordStoreNoStatusRegression(t *testing.T) {
	store := NewRecordStore()
	store.Create(&models.ProcessingRecord{ID: "b", Status: models.StatusQueued})
	store.MarkProcessing("b")
	store.MarkFailed("b", "processing error")

	store.MarkProcessing("b")
	rec, _ := store.Get("b")
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Equal(t, "processing error", rec.Error)
}

func TestRecordStoreSnapshotOrder(t *testing.T) {
	store := NewRecordStore()
	for _, id := range []string{"one", "two", "three"} {
		store.Create(&models.ProcessingRecord{ID: id, Status: models.StatusQueued})
	}
	snap := store.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "one", snap[0].ID)
	assert.Equal(t, "three", snap[2].ID)
}

func TestRecordStoreDuplicateCreateIgnored(t *testing.T) {
	store := NewRecordStore()
	store.Create(&models.ProcessingRecord{ID: "dup", OriginalName: "first.jpg", Status: models.StatusQueued})
	store.Create(&models.ProcessingRecord{ID: "dup", OriginalName: "second.jpg", Status: models.StatusQueued})

	rec, ok := store.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "first.jpg", rec.OriginalName)
	assert.Len(t, store.Snapshot(), 1)
}
