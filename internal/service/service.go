// Package service orchestrates report creation, retrieval and map listing.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mr1hm/fixr/internal/draft"
	"github.com/mr1hm/fixr/internal/geo"
	"github.com/mr1hm/fixr/internal/logging"
	"github.com/mr1hm/fixr/internal/metrics"
	"github.com/mr1hm/fixr/internal/models"
	"github.com/mr1hm/fixr/internal/ratelimit"
	"github.com/mr1hm/fixr/internal/repository"
	"github.com/mr1hm/fixr/internal/validation"
)

const (
	DefaultDays  = 30
	MaxDays      = 365
	DefaultLimit = 200
	MaxLimit     = 200
)

// Drafter produces report narratives. *draft.Generator is the production implementation.
type Drafter interface {
	Generate(ctx context.Context, req draft.Request, mode draft.Mode) draft.Result
}

// Publisher receives the pin of every created report.
type Publisher interface {
	Broadcast(p models.Pin)
}

type Config struct {
	PublicBaseURL string
	Clock         func() time.Time
}

type Service struct {
	repo    repository.ReportRepository
	drafts  Drafter
	limiter *ratelimit.Limiter
	pins    Publisher
	baseURL string
	now     func() time.Time
}

// New wires the service. pins may be nil when no live feed is running.
func New(repo repository.ReportRepository, drafts Drafter, limiter *ratelimit.Limiter, pins Publisher, cfg Config) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    repo,
		drafts:  drafts,
		limiter: limiter,
		pins:    pins,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:     now,
	}
}

type CreateResult struct {
	ID       string                `json:"id"`
	ShareURL string                `json:"shareUrl"`
	Report   models.ReportResponse `json:"report"`
}

// ReportView is the single-report projection plus its share actions.
type ReportView struct {
	models.ReportResponse
	ShareURL string `json:"shareUrl"`
	Mailto   string `json:"mailto"`
}

// Create admits, validates, drafts when needed, rounds and persists one report.
// Nothing is written unless every step succeeds.
func (s *Service) Create(ctx context.Context, caller string, raw []byte) (*CreateResult, error) {
	return s.CreateFrom(ctx, caller, bytes.NewReader(raw))
}

// CreateFrom is Create reading the body only after the caller is admitted, so
// unreadable or oversized bodies still count against the caller's quota.
func (s *Service) CreateFrom(ctx context.Context, caller string, r io.Reader) (*CreateResult, error) {
	if d := s.limiter.Allow(caller); !d.OK {
		metrics.RateLimited()
		logging.FromContext(ctx).Info("report creation rate limited", "caller", caller)
		return nil, &RateLimitError{Decision: d}
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &validation.Error{Field: "body", Message: "Invalid JSON"}
	}

	body, err := decodeBody(raw)
	if err != nil {
		return nil, err
	}

	input, err := validation.ValidateReportBody(body)
	if err != nil {
		return nil, err
	}

	descriptionFinal := input.DescriptionFinal
	if descriptionFinal == "" {
		res := s.drafts.Generate(ctx, draft.Request{
			IssueType:      input.IssueType,
			Severity:       input.Severity,
			Notes:          input.DescriptionUser,
			LocationText:   input.LocationText,
			ApproxLocation: input.ApproxLocation,
		}, draft.ModeText)
		descriptionFinal = res.Draft
	}

	descriptionFinal = validation.EnsureDescription(descriptionFinal, input.DescriptionUser)
	if descriptionFinal == "" {
		return nil, &validation.Error{Field: "descriptionFinal", Message: "descriptionFinal is required"}
	}

	loc := geo.ApplyApproxLocation(input.Location, input.ApproxLocation)
	now := s.now().UTC()

	report := &models.Report{
		IssueType:        input.IssueType,
		Severity:         input.Severity,
		DescriptionUser:  input.DescriptionUser,
		DescriptionFinal: descriptionFinal,
		Location:         geo.ToGeoPoint(loc.Lng, loc.Lat),
		ApproxLocation:   input.ApproxLocation,
		Photo:            models.DefaultPhoto,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	id, err := s.repo.Add(ctx, report)
	if err != nil {
		return nil, fmt.Errorf("error saving report: %w", err)
	}
	report.ID = id

	metrics.ReportCreated()
	if s.pins != nil {
		s.pins.Broadcast(report.ToPin())
	}
	logging.FromContext(ctx).Info("report created", "id", id, "issue_type", report.IssueType, "approx", report.ApproxLocation)

	return &CreateResult{
		ID:       id,
		ShareURL: s.ShareURL(id),
		Report:   report.ToResponse(),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ReportView, error) {
	r, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	share := s.ShareURL(r.ID)
	return &ReportView{
		ReportResponse: r.ToResponse(),
		ShareURL:       share,
		Mailto:         Mailto(r.IssueType, r.DescriptionFinal, share),
	}, nil
}

// Exists applies the same id and not-found rules as Get without building a view.
func (s *Service) Exists(ctx context.Context, id string) error {
	_, err := s.lookup(ctx, id)
	return err
}

func (s *Service) lookup(ctx context.Context, id string) (*models.Report, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, ErrInvalidID
	}

	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting report: %w", err)
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// ListQuery carries the raw query parameters of a map listing.
type ListQuery struct {
	BBox  string
	Type  string
	Days  string
	Limit string
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]models.Pin, error) {
	filter, err := s.ListFilter(q)
	if err != nil {
		return nil, err
	}

	reports, err := s.repo.ListReports(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing reports: %w", err)
	}

	pins := make([]models.Pin, 0, len(reports))
	for i := range reports {
		pins = append(pins, reports[i].ToPin())
	}
	return pins, nil
}

// ListFilter turns query parameters into a store filter. Only the bbox can be rejected;
// an unknown type is ignored and unusable days or limit values fall back to defaults.
func (s *Service) ListFilter(q ListQuery) (repository.Filter, error) {
	bounds, err := validation.ParseBBox(q.BBox)
	if err != nil {
		return repository.Filter{}, err
	}

	filter := repository.Filter{
		Bounds:           &bounds,
		Limit:            parseLimit(q.Limit),
		OmitDescriptions: true,
	}

	if t := models.IssueType(q.Type); t.Valid() {
		filter.Type = &t
	}

	if days, ok := parseDays(q.Days); ok {
		since := s.now().Add(-time.Duration(days * float64(24*time.Hour)))
		filter.Since = &since
	}
	return filter, nil
}

// PinInBounds is used by live subscribers that asked for a bbox.
func PinInBounds(p models.Pin, b *orb.Bound) bool {
	if b == nil {
		return true
	}
	return geo.Contains(*b, geo.ToGeoPoint(p.Location.Lng, p.Location.Lat))
}

func (s *Service) SharePath(id string) string {
	return "/r/" + id
}

// ShareURL is the share path, absolute when a public base URL is configured.
func (s *Service) ShareURL(id string) string {
	return s.baseURL + s.SharePath(id)
}

func (s *Service) HasPublicBaseURL() bool {
	return s.baseURL != ""
}

// Mailto builds the "email draft" link for a report.
func Mailto(issueType models.IssueType, description, shareURL string) string {
	subject := "Fixr report: " + string(issueType)
	body := description + "\n\nView: " + shareURL
	return "mailto:?subject=" + uriComponent(subject) + "&body=" + uriComponent(body)
}

func uriComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func decodeBody(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, &validation.Error{Field: "body", Message: "Invalid JSON"}
	}
	return body, nil
}

// parseDays returns the recency window in days. Absent means the default;
// non-numeric or non-positive values disable the window.
func parseDays(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultDays, true
	}
	days, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(days) || math.IsInf(days, 0) || days <= 0 {
		return 0, false
	}
	return math.Min(days, MaxDays), true
}

func parseLimit(raw string) int {
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 1 {
		return DefaultLimit
	}
	return int(math.Min(math.Floor(n), MaxLimit))
}
