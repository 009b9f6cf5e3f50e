package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/fixr/internal/geo"
	"github.com/mr1hm/fixr/internal/models"
	"github.com/mr1hm/fixr/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestInputs(t *testing.T) {
	require.Len(t, Inputs, 18)
	for _, in := range Inputs {
		assert.True(t, in.IssueType.Valid())
		assert.True(t, in.Severity.Valid())
		assert.True(t, geo.ValidLng(in.Coords.Lng) && geo.ValidLat(in.Coords.Lat))
	}
}

func TestBuild_Deterministic(t *testing.T) {
	for _, in := range Inputs {
		assert.Equal(t, Build(in, now), Build(in, now))
	}
}

func TestBuild_ApproxSeed(t *testing.T) {
	var approx Input
	for _, in := range Inputs {
		if in.ApproxLocation {
			approx = in
		}
	}

	r := Build(approx, now)
	assert.Equal(t, [2]float64{-122.234, 37.775}, r.Location.Coordinates)
	assert.True(t, strings.HasPrefix(r.DescriptionUser, repository.SeedMarker+" "))
	assert.Contains(t, r.DescriptionFinal, "Location: seeded pin.")
	assert.Contains(t, r.DescriptionFinal, "Location was rounded for privacy")
	assert.Equal(t, now.Add(-96*time.Hour), r.CreatedAt)
}

func TestRun_ReplacesSeedData(t *testing.T) {
	repo, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	defer repo.Close()
	ctx := context.Background()

	kept := &models.Report{
		IssueType:        models.IssueTypePothole,
		Severity:         models.SeverityHigh,
		DescriptionUser:  "real resident report",
		DescriptionFinal: "final",
		Location:         geo.ToGeoPoint(0, 0),
		Photo:            models.DefaultPhoto,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err = repo.Add(ctx, kept)
	require.NoError(t, err)

	first, err := Run(ctx, repo, now, 4)
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 0, Inserted: 18}, first)

	second, err := Run(ctx, repo, now, 4)
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 18, Inserted: 18}, second)

	all, err := repo.ListReports(ctx, repository.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 19)
}
