package api

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mr1hm/fixr/internal/models"
)

func toGeoJSON(pins []models.Pin) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, p := range pins {
		f := geojson.NewFeature(orb.Point{p.Location.Lng, p.Location.Lat})
		f.ID = p.ID
		f.Properties = geojson.Properties{
			"id":        p.ID,
			"issueType": string(p.IssueType),
			"severity":  string(p.Severity),
			"createdAt": p.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		fc.Append(f)
	}

	return fc
}
