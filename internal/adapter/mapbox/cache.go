package mapbox

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ghdsi/case-slicer/internal/domain"
	"github.com/ghdsi/case-slicer/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by geo id,
// so every case at one location costs at most one lookup.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	cache, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

// ReverseGeocode returns a cached result for the coordinates' geo id or asks
// the wrapped geocoder.
func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := domain.MakeGeoID(lat, lon)
	if v, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return v.(domain.GeocodingResult), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if result.PlaceName != "" {
		c.cache.Add(key, result)
	}
	return result, nil
}

// Len returns the number of cached locations.
func (c *CachedGeocoder) Len() int { return c.cache.Len() }
