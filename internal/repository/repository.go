package repository

import (
	"context"
	"time"

	"github.com/paulmach/orb"

	"github.com/mr1hm/fixr/internal/models"
)

const SeedMarker = "[seed]"

type Filter struct {
	Bounds           *orb.Bound // inclusive on every edge
	Type             *models.IssueType
	Since            *time.Time // createdAt >= Since
	Limit            int        // 0 means no limit
	OmitDescriptions bool       // leave DescriptionUser/DescriptionFinal empty in results
}

// ReportRepository is the document store boundary. Implementations assign ids on Add
// and return results newest first.
type ReportRepository interface {
	Add(ctx context.Context, r *models.Report) (string, error)
	GetByID(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, opts Filter) ([]models.Report, error)
	DeleteSeeded(ctx context.Context, marker string) (int64, error)
	Close() error
}
