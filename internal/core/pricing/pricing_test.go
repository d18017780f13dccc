package pricing_test

import (
	"testing"

	"github.com/shiporbit/shiporbit/internal/core/pricing"
	"github.com/stretchr/testify/assert"
)

func TestDistanceSamePoint(t *testing.T) {
	p := pricing.Point{Latitude: 41.88, Longitude: -87.63}
	assert.Equal(t, 0.0, pricing.Distance(p, p))
}

func TestDistanceKnownRoute(t *testing.T) {
	// Chicago to Dallas is roughly 805 miles as the crow flies.
	chicago := pricing.Point{Latitude: 41.8781, Longitude: -87.6298}
	dallas := pricing.Point{Latitude: 32.7767, Longitude: -96.7970}

	d := pricing.Distance(chicago, dallas)
	assert.InDelta(t, 804.66, d, 0.01)
	assert.Equal(t, d, pricing.Distance(dallas, chicago), "distance must be symmetric")
}

func TestBasePrice(t *testing.T) {
	tests := []struct {
		miles     float64
		equipment string
		want      string
	}{
		{0, "dryVan", "500.00"},
		{100, "dryVan", "750.00"},
		{100, "reefer", "825.00"},
		{100, "flatbed", "750.00"},
		{123.45, "dryVan", "808.63"}, // the float sits just above 123.45
		{10.01, "reefer", "532.53"},
		{100.01, "dryVan", "750.03"},
		{12.05, "dryVan", "530.13"},
		{250.07, "dryVan", "1125.17"},
		{0.25, "dryVan", "500.62"}, // exactly 500.625, half to even
	}
	for _, tt := range tests {
		got := pricing.BasePrice(tt.miles, tt.equipment)
		assert.Equal(t, tt.want, got.StringFixed(2), "miles=%v equipment=%s", tt.miles, tt.equipment)
	}
}

func TestTransitDays(t *testing.T) {
	assert.Equal(t, int64(1), pricing.TransitDays(0))
	assert.Equal(t, int64(1), pricing.TransitDays(1))
	assert.Equal(t, int64(1), pricing.TransitDays(500))
	assert.Equal(t, int64(2), pricing.TransitDays(500.01))
	assert.Equal(t, int64(5), pricing.TransitDays(2233.4))
}
