// Package geo holds the coordinate helpers shared by validation, storage and the map feed.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/shopspring/decimal"

	"github.com/mr1hm/fixr/internal/models"
)

// ApproxPrecision is the number of decimals kept when a reporter asks for an approximate location.
// Three decimals is roughly 111m of latitude.
const ApproxPrecision = 3

func ValidLng(lng float64) bool {
	return !math.IsNaN(lng) && lng >= -180 && lng <= 180
}

func ValidLat(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// ToGeoPoint wraps an already validated pair in the stored point shape.
func ToGeoPoint(lng, lat float64) models.GeoPoint {
	return models.GeoPoint{
		Type:        "Point",
		Coordinates: [2]float64{lng, lat},
	}
}

func ToOrb(p models.GeoPoint) orb.Point {
	return orb.Point{p.Lng(), p.Lat()}
}

// ApplyApproxLocation rounds both coordinates to ApproxPrecision decimals when approx is set.
// The transform is one-way and idempotent.
func ApplyApproxLocation(loc models.LngLat, approx bool) models.LngLat {
	if !approx {
		return loc
	}
	return models.LngLat{
		Lng: Round(loc.Lng, ApproxPrecision),
		Lat: Round(loc.Lat, ApproxPrecision),
	}
}

// Round rounds the shortest decimal form of v half away from zero, so 0.5005
// becomes 0.501 even though its binary value sits just below the half.
func Round(v float64, places int) float64 {
	f, _ := decimal.NewFromFloat(v).Round(int32(places)).Float64()
	return f
}

// NewBound builds the map query rectangle from its two corners.
func NewBound(minLng, minLat, maxLng, maxLat float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{minLng, minLat},
		Max: orb.Point{maxLng, maxLat},
	}
}

// BoxCorners returns the bottom-left and top-right corners in (lng, lat) order,
// the shape expected by a $box containment query.
func BoxCorners(b orb.Bound) [2][2]float64 {
	return [2][2]float64{
		{b.Min.Lon(), b.Min.Lat()},
		{b.Max.Lon(), b.Max.Lat()},
	}
}

// Contains reports whether p lies inside b, edges included.
func Contains(b orb.Bound, p models.GeoPoint) bool {
	return b.Contains(ToOrb(p))
}
