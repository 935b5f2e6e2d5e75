package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestCache(ttl, retention time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newWithClock[string](ttl, retention, clock.Now), clock
}

func TestFreshAndStale(t *testing.T) {
	c, clock := newTestCache(time.Minute, time.Hour)
	defer c.Close()

	c.Set("taipei", "payload")

	v, ok := c.Get("taipei")
	assert.True(t, ok)
	assert.Equal(t, "payload", v)

	clock.Advance(2 * time.Minute)

	_, ok = c.Get("taipei")
	assert.False(t, ok, "expired entry must not be served fresh")

	v, fresh, found := c.GetStale("taipei")
	assert.True(t, found)
	assert.False(t, fresh)
	assert.Equal(t, "payload", v)
}

func TestEvictHonorsRetention(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10*time.Minute)
	defer c.Close()

	c.Set("a", "1")
	clock.Advance(5 * time.Minute)
	c.Set("b", "2")
	clock.Advance(7 * time.Minute)

	c.evict()

	_, _, found := c.GetStale("a")
	assert.False(t, found, "a is past ttl+retention")
	_, _, found = c.GetStale("b")
	assert.True(t, found)
	assert.Equal(t, 1, c.Size())
}

func TestDeleteAndMissing(t *testing.T) {
	c, _ := newTestCache(time.Minute, 0)
	defer c.Close()

	_, _, found := c.GetStale("nope")
	assert.False(t, found)

	c.Set("k", "v")
	c.Delete("k")
	assert.Equal(t, 0, c.Size())
}

func TestCloseTwice(t *testing.T) {
	c := New[int](time.Millisecond, 0)
	c.Close()
	assert.NotPanics(t, c.Close)
}

func TestNoRetentionMeansNoStaleReads(t *testing.T) {
	c, clock := newTestCache(time.Minute, 0)
	defer c.Close()

	c.Set("k", "v")
	clock.Advance(time.Minute)

	_, _, found := c.GetStale("k")
	assert.False(t, found)
}
