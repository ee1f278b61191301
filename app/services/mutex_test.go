package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocalMutexAcquireRelease(t *testing.T) {
	m := NewLocalMutex()
	ctx := context.Background()

	assert.True(t, m.Acquire(ctx, "content-lock", time.Second))

	// Second acquire on the same name times out while held
	assert.False(t, m.Acquire(ctx, "content-lock", 50*time.Millisecond))

	// Different names do not contend
	assert.True(t, m.Acquire(ctx, "other-lock", time.Second))
	m.Release(ctx, "other-lock")

	m.Release(ctx, "content-lock")
	assert.True(t, m.Acquire(ctx, "content-lock", time.Second))
	m.Release(ctx, "content-lock")
}

func TestLocalMutexReleaseWithoutAcquire(t *testing.T) {
	m := NewLocalMutex()
	ctx := context.Background()

	// Releasing an unheld lock must not block or panic
	m.Release(ctx, "never-held")
	assert.True(t, m.Acquire(ctx, "never-held", time.Second))
	m.Release(ctx, "never-held")
}

func TestLocalMutexContextCancellation(t *testing.T) {
	m := NewLocalMutex()
	ctx := context.Background()

	assert.True(t, m.Acquire(ctx, "content-lock", time.Second))

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, m.Acquire(cancelled, "content-lock", time.Second))

	m.Release(ctx, "content-lock")
}
