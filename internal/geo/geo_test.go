package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mr1hm/fixr/internal/models"
)

func TestApplyApproxLocation_Disabled(t *testing.T) {
	loc := models.LngLat{Lng: -122.266812, Lat: 37.808234}
	assert.Equal(t, loc, ApplyApproxLocation(loc, false))
}

func TestApplyApproxLocation_Rounds(t *testing.T) {
	tests := []struct {
		name string
		in   models.LngLat
		want models.LngLat
	}{
		{"plain", models.LngLat{Lng: -122.2668, Lat: 37.8082}, models.LngLat{Lng: -122.267, Lat: 37.808}},
		{"already rounded", models.LngLat{Lng: -122.27, Lat: 37.8}, models.LngLat{Lng: -122.27, Lat: 37.8}},
		{"half away from zero positive", models.LngLat{Lng: 0.0125, Lat: 1.2346}, models.LngLat{Lng: 0.013, Lat: 1.235}},
		{"half away from zero negative", models.LngLat{Lng: -0.0125, Lat: -45.0006}, models.LngLat{Lng: -0.013, Lat: -45.001}},
		{"bounds", models.LngLat{Lng: 180, Lat: -90}, models.LngLat{Lng: 180, Lat: -90}},
		{"decimal half below binary half", models.LngLat{Lng: 0.5005, Lat: -0.5005}, models.LngLat{Lng: 0.501, Lat: -0.501}},
		{"decimal half in a city coordinate", models.LngLat{Lng: -122.2675, Lat: 37.8005}, models.LngLat{Lng: -122.268, Lat: 37.801}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyApproxLocation(tt.in, true)
			assert.InDelta(t, tt.want.Lng, got.Lng, 1e-9)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1e-9)
		})
	}
}

func TestApplyApproxLocation_Idempotent(t *testing.T) {
	inputs := []models.LngLat{
		{Lng: -122.266812, Lat: 37.808234},
		{Lng: 139.6503, Lat: 35.6762},
		{Lng: -0.0004999, Lat: 0.0005},
		{Lng: 179.9996, Lat: -89.9995},
	}
	for _, in := range inputs {
		once := ApplyApproxLocation(in, true)
		twice := ApplyApproxLocation(once, true)
		if once != twice {
			t.Errorf("rounding not idempotent for %+v: %+v != %+v", in, once, twice)
		}
	}
}

func TestValidRanges(t *testing.T) {
	assert.True(t, ValidLng(-180))
	assert.True(t, ValidLng(180))
	assert.False(t, ValidLng(-200))
	assert.False(t, ValidLng(math.NaN()))
	assert.True(t, ValidLat(90))
	assert.False(t, ValidLat(91))
	assert.False(t, ValidLat(math.NaN()))
}

func TestToGeoPoint_LngFirst(t *testing.T) {
	p := ToGeoPoint(-122.27, 37.8)
	assert.Equal(t, "Point", p.Type)
	assert.Equal(t, [2]float64{-122.27, 37.8}, p.Coordinates)
	assert.Equal(t, -122.27, ToOrb(p).Lon())
	assert.Equal(t, 37.8, ToOrb(p).Lat())
}

func TestContains_EdgesInclusive(t *testing.T) {
	b := NewBound(-122.3, 37.7, -122.2, 37.8)

	assert.True(t, Contains(b, ToGeoPoint(-122.25, 37.75)))
	assert.True(t, Contains(b, ToGeoPoint(-122.3, 37.7)))
	assert.True(t, Contains(b, ToGeoPoint(-122.2, 37.8)))
	assert.False(t, Contains(b, ToGeoPoint(-122.1, 37.75)))
	assert.False(t, Contains(b, ToGeoPoint(-122.25, 37.9)))

	assert.Equal(t, [2][2]float64{{-122.3, 37.7}, {-122.2, 37.8}}, BoxCorners(b))
}
