package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sku-media-api/internal/models"
)

func TestWebhookLogStoreMostRecentFirst(t *testing.T) {
	store := NewWebhookLogStore(10)
	store.Append(models.WebhookLogEntry{Status: 200, Body: "first"})
	store.Append(models.WebhookLogEntry{Status: 500, Body: "second"})

	logs := store.List()
	require.Len(t, logs, 2)
	assert.Equal(t, "second", logs[0].Body)
	assert.Equal(t, "first", logs[1].Body)
	assert.Equal(t, 2, store.Total())
	assert.False(t, logs[0].Timestamp.IsZero())
}

func TestWebhookLogStoreBounded(t *testing.T) {
	store := NewWebhookLogStore(100)
	for i := 0; i < 150; i++ {
		store.Append(models.WebhookLogEntry{Status: 200, Body: fmt.Sprintf("entry-%d", i)})
	}
	assert.Equal(t, 100, store.Total())

	logs := store.List()
	assert.Equal(t, "entry-149", logs[0].Body)
	assert.Equal(t, "entry-50", logs[99].Body)
}
