package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

type countingFetcher struct {
	calls int
	err   error
}

func (f *countingFetcher) Current(ctx context.Context, lat, lon float64) (*Reading, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Reading{Location: "Lahore", TemperatureC: float64(f.calls)}, nil
}

func TestNewCacheDefaults(t *testing.T) {
	c := NewCache(0, 0, clocktesting.NewFakePassiveClock(time.Now()))
	assert.Equal(t, defaultCacheTTL, c.ttl)
	assert.Equal(t, defaultCacheMaxAge, c.maxAge)

	c = NewCache(2*time.Hour, time.Minute, clocktesting.NewFakePassiveClock(time.Now()))
	assert.Equal(t, 2*time.Hour, c.maxAge, "max age never undercuts ttl")
}

func TestCacheExpiry(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
	c := NewCache(5*time.Minute, time.Hour, clk)

	_, ok := c.Get(31.5497, 74.3436)
	assert.False(t, ok)

	c.Set(31.5497, 74.3436, &Reading{Location: "Lahore"})
	reading, ok := c.Get(31.54971, 74.34359)
	require.True(t, ok, "coordinates are keyed to four decimals")
	assert.Equal(t, "Lahore", reading.Location)

	clk.Step(6 * time.Minute)
	_, ok = c.Get(31.5497, 74.3436)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size(), "stale entries stay until max age")

	clk.Step(time.Hour)
	c.Set(0, 0, &Reading{})
	assert.Equal(t, 1, c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
}

func TestCachedFetcher(t *testing.T) {
	clk := clocktesting.NewFakeClock(time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC))
	inner := &countingFetcher{}
	f := NewCachedFetcher(inner, NewCache(time.Minute, time.Hour, clk))

	first, err := f.Current(context.Background(), 31.5, 74.3)
	require.NoError(t, err)
	second, err := f.Current(context.Background(), 31.5, 74.3)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, inner.calls)

	clk.Step(2 * time.Minute)
	third, err := f.Current(context.Background(), 31.5, 74.3)
	require.NoError(t, err)
	assert.Equal(t, 2.0, third.TemperatureC)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedFetcherDoesNotCacheErrors(t *testing.T) {
	clk := clocktesting.NewFakePassiveClock(time.Now())
	inner := &countingFetcher{err: errors.New("rate limit exceeded")}
	f := NewCachedFetcher(inner, NewCache(time.Minute, time.Hour, clk))

	_, err := f.Current(context.Background(), 1, 2)
	assert.Error(t, err)
	_, err = f.Current(context.Background(), 1, 2)
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
