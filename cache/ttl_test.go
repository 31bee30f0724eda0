package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)}
}

func TestGetEmpty(t *testing.T) {
	c := NewTTL[string](time.Minute, nil)
	_, ok := c.Get()
	assert.False(t, ok, "an empty cache returned a value")
}

func TestSetAndExpire(t *testing.T) {
	assert := assert.New(t)
	clock := newFakeClock()
	c := NewTTL[string](time.Minute, clock.Now)

	c.Set("value")
	value, ok := c.Get()
	assert.True(ok)
	assert.Equal("value", value)

	clock.Advance(59 * time.Second)
	_, ok = c.Get()
	assert.True(ok, "the value expired early")

	clock.Advance(time.Second)
	_, ok = c.Get()
	assert.False(ok, "the value did not expire")
}

func TestInvalidate(t *testing.T) {
	c := NewTTL[int](time.Hour, newFakeClock().Now)
	c.Set(42)
	c.Invalidate()
	_, ok := c.Get()
	assert.False(t, ok, "the value survived invalidation")
}

func TestGetOrLoad(t *testing.T) {
	assert := assert.New(t)
	clock := newFakeClock()
	c := NewTTL[int](time.Minute, clock.Now)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	value, err := c.GetOrLoad(ctx, load)
	assert.NoError(err)
	assert.Equal(1, value)

	value, err = c.GetOrLoad(ctx, load)
	assert.NoError(err)
	assert.Equal(1, value, "the loader was called for a fresh value")

	clock.Advance(time.Minute)
	value, err = c.GetOrLoad(ctx, load)
	assert.NoError(err)
	assert.Equal(2, value, "the loader was not called for an expired value")
	assert.Equal(2, calls)
}

func TestGetOrLoadError(t *testing.T) {
	assert := assert.New(t)
	c := NewTTL[int](time.Minute, newFakeClock().Now)

	_, err := c.GetOrLoad(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(err)

	_, ok := c.Get()
	assert.False(ok, "a failed load populated the cache")
}
