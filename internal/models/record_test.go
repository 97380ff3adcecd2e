package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusQueued.CanTransitionTo(StatusProcessing))
	assert.True(t, StatusProcessing.CanTransitionTo(StatusDone))
	assert.True(t, StatusProcessing.CanTransitionTo(StatusFailed))
	assert.True(t, StatusQueued.CanTransitionTo(StatusDone))

	assert.False(t, StatusProcessing.CanTransitionTo(StatusQueued))
	assert.False(t, StatusDone.CanTransitionTo(StatusFailed))
	assert.False(t, StatusFailed.CanTransitionTo(StatusProcessing))
	assert.False(t, StatusDone.CanTransitionTo(StatusDone))
}

func TestServerFileName(t *testing.T) {
	assert.Equal(t, "ABC123_001.jpg", ServerFileName("ABC123", 0))
	assert.Equal(t, "ABC123_010.jpg", ServerFileName("ABC123", 9))
	assert.Equal(t, "ABC123_100.jpg", ServerFileName("ABC123", 99))
}
