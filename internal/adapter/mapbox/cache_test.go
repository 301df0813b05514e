package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghdsi/case-slicer/internal/domain"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	calls  int
	result domain.GeocodingResult
	err    error
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func newCached(t *testing.T, inner domain.Geocoder, size int) *CachedGeocoder {
	t.Helper()
	cached, err := NewCachedGeocoder(inner, size, testMetrics())
	require.NoError(t, err)
	return cached
}

func TestCachedGeocoder_CacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{PlaceName: "Lyon", FormattedAddress: "Lyon, Rhône, France"},
	}
	cached := newCached(t, inner, 10)

	r1, err := cached.ReverseGeocode(context.Background(), 45.764043, 4.835659)
	require.NoError(t, err)
	assert.Equal(t, "Lyon", r1.PlaceName)

	r2, err := cached.ReverseGeocode(context.Background(), 45.764043, 4.835659)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
	assert.Equal(t, float64(1), testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("miss")))
}

func TestCachedGeocoder_SameGeoIDShares(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Lyon"}}
	cached := newCached(t, inner, 10)

	// Differ only beyond the fourth decimal place.
	_, _ = cached.ReverseGeocode(context.Background(), 45.76401, 4.83571)
	_, _ = cached.ReverseGeocode(context.Background(), 45.76404, 4.83569)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "Place"}}
	cached := newCached(t, inner, 10)

	_, _ = cached.ReverseGeocode(context.Background(), 45.7640, 4.8357)
	_, _ = cached.ReverseGeocode(context.Background(), 41.9000, 12.4900)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedGeocoder_EmptyAndErrorsNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := newCached(t, inner, 10)

	_, _ = cached.ReverseGeocode(context.Background(), 1, 1)
	_, _ = cached.ReverseGeocode(context.Background(), 1, 1)
	assert.Equal(t, 2, inner.calls, "empty results are retried")

	inner.err = errors.New("boom")
	_, err := cached.ReverseGeocode(context.Background(), 2, 2)
	require.Error(t, err)
	assert.Equal(t, 0, cached.Len())
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	inner := &countingGeocoder{result: domain.GeocodingResult{PlaceName: "P"}}
	cached := newCached(t, inner, 2)

	_, _ = cached.ReverseGeocode(context.Background(), 1, 1)
	_, _ = cached.ReverseGeocode(context.Background(), 2, 2)
	_, _ = cached.ReverseGeocode(context.Background(), 3, 3) // evicts 1,1
	assert.Equal(t, 3, inner.calls)

	_, _ = cached.ReverseGeocode(context.Background(), 3, 3)
	assert.Equal(t, 3, inner.calls)

	_, _ = cached.ReverseGeocode(context.Background(), 1, 1)
	assert.Equal(t, 4, inner.calls, "1,1 should have been evicted")
}

func TestNewCachedGeocoder_InvalidSize(t *testing.T) {
	_, err := NewCachedGeocoder(&countingGeocoder{}, 0, testMetrics())
	assert.Error(t, err)
}
