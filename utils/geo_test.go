package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var site = Coordinate{Latitude: 37.2253811, Longitude: 127.0706423}

func TestDistanceZeroForSamePoint(t *testing.T) {
	assert.Zero(t, Distance(site, site))
}

func TestDistanceIsSymmetric(t *testing.T) {
	p := Coordinate{Latitude: 37.23, Longitude: 127.08}
	assert.InDelta(t, Distance(site, p), Distance(p, site), 1e-9)
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of latitude is about 111.19km on the sphere used here.
	a := Coordinate{Latitude: 37, Longitude: 127}
	b := Coordinate{Latitude: 38, Longitude: 127}
	assert.InDelta(t, 111195, Distance(a, b), 50)
}

func TestWithinRadiusBoundary(t *testing.T) {
	// Offsets chosen to land just inside and just outside a 300m circle.
	inside := Coordinate{Latitude: site.Latitude + 0.0026, Longitude: site.Longitude}
	outside := Coordinate{Latitude: site.Latitude + 0.0028, Longitude: site.Longitude}

	assert.InDelta(t, 289, Distance(site, inside), 5)
	assert.InDelta(t, 311, Distance(site, outside), 5)

	assert.True(t, WithinRadius(inside, site, 300))
	assert.False(t, WithinRadius(outside, site, 300))
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "0m", FormatDistance(0))
	assert.Equal(t, "250m", FormatDistance(250.4))
	assert.Equal(t, "1.2km", FormatDistance(1234))
	assert.Equal(t, "1.0km", FormatDistance(1000))
}
