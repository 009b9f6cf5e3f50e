// Package seed holds the demo reports loaded by fixr-seed.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr1hm/fixr/internal/draft"
	"github.com/mr1hm/fixr/internal/geo"
	"github.com/mr1hm/fixr/internal/models"
	"github.com/mr1hm/fixr/internal/repository"
	"github.com/mr1hm/fixr/internal/worker"
)

const locationHint = "seeded pin"

type Input struct {
	IssueType      models.IssueType
	Severity       models.Severity
	Note           string
	ApproxLocation bool
	Coords         models.LngLat
	HoursAgo       int
}

var Inputs = []Input{
	{models.IssueTypePothole, models.SeverityHigh, "Broadway & Grand - deep pothole in right lane.", false, models.LngLat{Lng: -122.2668, Lat: 37.8082}, 6},
	{models.IssueTypeIllegalDumping, models.SeverityMedium, "Bags of trash by curb near 14th Ave.", false, models.LngLat{Lng: -122.2401, Lat: 37.7846}, 12},
	{models.IssueTypeBrokenStreetlight, models.SeverityMedium, "Dim / flickering light along Park St bridge.", false, models.LngLat{Lng: -122.2445, Lat: 37.7709}, 20},
	{models.IssueTypeFlooding, models.SeverityHigh, "Standing water covering bike lane after rain.", false, models.LngLat{Lng: -122.2552, Lat: 37.7951}, 26},
	{models.IssueTypeBlockedSidewalk, models.SeverityMedium, "Scooter blocking curb cut near Webster.", false, models.LngLat{Lng: -122.2731, Lat: 37.7932}, 30},
	{models.IssueTypeOther, models.SeverityLow, "Graffiti on utility box by Lake Merritt.", false, models.LngLat{Lng: -122.2557, Lat: 37.8063}, 36},
	{models.IssueTypePothole, models.SeverityMedium, "Series of small potholes near Broadway/20th.", false, models.LngLat{Lng: -122.2659, Lat: 37.8126}, 40},
	{models.IssueTypeIllegalDumping, models.SeverityLow, "Broken chair and boxes by bus stop.", false, models.LngLat{Lng: -122.2379, Lat: 37.7784}, 48},
	{models.IssueTypeBrokenStreetlight, models.SeverityHigh, "Light fully out on quiet block; safety concern.", false, models.LngLat{Lng: -122.2498, Lat: 37.7663}, 54},
	{models.IssueTypeBlockedSidewalk, models.SeverityHigh, "Construction materials blocking sidewalk.", false, models.LngLat{Lng: -122.2715, Lat: 37.7895}, 60},
	{models.IssueTypeFlooding, models.SeverityMedium, "Drain appears clogged; water pooling.", false, models.LngLat{Lng: -122.2488, Lat: 37.7984}, 72},
	{models.IssueTypePothole, models.SeverityLow, "Shallow dip near bike lane marking.", false, models.LngLat{Lng: -122.2782, Lat: 37.8019}, 80},
	{models.IssueTypeOther, models.SeverityMedium, "Damaged signpost leaning over sidewalk.", false, models.LngLat{Lng: -122.2589, Lat: 37.7837}, 88},
	{models.IssueTypeIllegalDumping, models.SeverityMedium, "Pile of cardboard left after move-out.", true, models.LngLat{Lng: -122.2344, Lat: 37.7751}, 96},
	{models.IssueTypeBrokenStreetlight, models.SeverityLow, "Light cycles on/off every few minutes.", false, models.LngLat{Lng: -122.2471, Lat: 37.8088}, 108},
	{models.IssueTypeBlockedSidewalk, models.SeverityMedium, "Overgrown bushes narrowing sidewalk.", false, models.LngLat{Lng: -122.2595, Lat: 37.7742}, 120},
	{models.IssueTypeFlooding, models.SeverityMedium, "Recurring puddle near crosswalk.", false, models.LngLat{Lng: -122.2661, Lat: 37.7991}, 130},
	{models.IssueTypeOther, models.SeverityLow, "Loose utility cover rattles when cars pass.", false, models.LngLat{Lng: -122.2468, Lat: 37.7878}, 144},
}

// Build renders one seed into a report. Drafts come from the template, so output
// depends only on the input and now.
func Build(in Input, now time.Time) models.Report {
	createdAt := now.Add(-time.Duration(in.HoursAgo) * time.Hour).UTC()
	loc := geo.ApplyApproxLocation(in.Coords, in.ApproxLocation)

	descriptionFinal := draft.BuildTemplate(draft.Request{
		IssueType:      in.IssueType,
		Severity:       in.Severity,
		Notes:          in.Note,
		LocationText:   locationHint,
		ApproxLocation: in.ApproxLocation,
	})

	return models.Report{
		IssueType:        in.IssueType,
		Severity:         in.Severity,
		DescriptionUser:  repository.SeedMarker + " " + in.Note,
		DescriptionFinal: descriptionFinal,
		Location:         geo.ToGeoPoint(loc.Lng, loc.Lat),
		ApproxLocation:   in.ApproxLocation,
		Photo:            models.DefaultPhoto,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

type Result struct {
	Deleted  int64
	Inserted int64
	Failed   int64
}

// Run replaces previously seeded reports with a fresh set.
func Run(ctx context.Context, repo repository.ReportRepository, now time.Time, workers int) (Result, error) {
	deleted, err := repo.DeleteSeeded(ctx, repository.SeedMarker)
	if err != nil {
		return Result{}, fmt.Errorf("error clearing seed data: %w", err)
	}

	pool := worker.NewPool(workers, len(Inputs), func(ctx context.Context, r models.Report) error {
		_, err := repo.Add(ctx, &r)
		return err
	})
	pool.OnError(func(r models.Report, err error) {
		slog.Warn("seed insert failed", "issue_type", r.IssueType, "error", err)
	})

	pool.Start(ctx)
	for _, in := range Inputs {
		pool.Submit(Build(in, now))
	}
	pool.Stop()

	inserted, failed := pool.Stats()
	return Result{Deleted: deleted, Inserted: inserted, Failed: failed}, nil
}
