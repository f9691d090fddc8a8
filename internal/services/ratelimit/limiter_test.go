package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_AllowsUpToMaxEventsThenBlocks(t *testing.T) {
	l := New(3, time.Minute)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("a"))
}

func TestLimiter_ResetClearsHistory(t *testing.T) {
	l := New(1, time.Minute)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	l.Reset("a")
	assert.True(t, l.Allow("a"))
}

func TestLimiter_RemainingCountsDownAndFloorsAtZero(t *testing.T) {
	l := New(2, time.Minute)
	assert.Equal(t, 2, l.Remaining("a"))
	l.Allow("a")
	assert.Equal(t, 1, l.Remaining("a"))
	l.Allow("a")
	assert.Equal(t, 0, l.Remaining("a"))
	l.Allow("a")
	assert.Equal(t, 0, l.Remaining("a"))
}

func TestLimiter_EventsOutsideWindowExpire(t *testing.T) {
	l := New(1, 10*time.Millisecond)
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, l.Allow("a"))
}
