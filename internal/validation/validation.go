// Package validation turns untrusted request input into typed values.
// Every function reports failure through an *Error; none of them panic on malformed input.
package validation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mr1hm/fixr/internal/geo"
	"github.com/mr1hm/fixr/internal/models"
)

type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(field, msg string) *Error {
	return &Error{Field: field, Message: msg}
}

// ReportInput is a validated report creation payload. Empty description fields mean absent.
type ReportInput struct {
	IssueType        models.IssueType
	Severity         models.Severity
	DescriptionUser  string
	DescriptionFinal string
	LocationText     string
	Location         models.LngLat
	ApproxLocation   bool
}

func ValidateReportBody(body any) (ReportInput, error) {
	m, ok := body.(map[string]any)
	if !ok || m == nil {
		return ReportInput{}, newError("body", "Invalid JSON body")
	}

	issueType, ok := NormalizeIssueType(m["issueType"])
	if !ok {
		return ReportInput{}, newError("issueType", "issueType is required")
	}

	severity, ok := NormalizeSeverity(m["severity"])
	if !ok {
		return ReportInput{}, newError("severity", "severity is required")
	}

	location, err := ParseLocation(m["location"])
	if err != nil {
		return ReportInput{}, err
	}

	return ReportInput{
		IssueType:        issueType,
		Severity:         severity,
		DescriptionUser:  SanitizeString(m["descriptionUser"]),
		DescriptionFinal: SanitizeString(m["descriptionFinal"]),
		LocationText:     SanitizeString(m["locationText"]),
		Location:         location,
		ApproxLocation:   Truthy(m["approxLocation"]),
	}, nil
}

func ParseLocation(v any) (models.LngLat, error) {
	m, ok := v.(map[string]any)
	if !ok || m == nil {
		return models.LngLat{}, newError("location", "location is required")
	}

	lng, ok := toNumber(m["lng"])
	if !ok || !geo.ValidLng(lng) {
		return models.LngLat{}, newError("location.lng", "lng must be between -180 and 180")
	}
	lat, ok := toNumber(m["lat"])
	if !ok || !geo.ValidLat(lat) {
		return models.LngLat{}, newError("location.lat", "lat must be between -90 and 90")
	}

	return models.LngLat{Lng: lng, Lat: lat}, nil
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat" into a query rectangle.
func ParseBBox(s string) (orb.Bound, error) {
	if strings.TrimSpace(s) == "" {
		return orb.Bound{}, newError("bbox", "bbox is required")
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, newError("bbox", "bbox must be minLng,minLat,maxLng,maxLat")
	}
	var vals [4]float64
	for i, p := range parts {
		f, ok := parseFinite(p)
		if !ok {
			return orb.Bound{}, newError("bbox", "bbox must be minLng,minLat,maxLng,maxLat")
		}
		vals[i] = f
	}

	minLng, minLat, maxLng, maxLat := vals[0], vals[1], vals[2], vals[3]
	if minLng >= maxLng || minLat >= maxLat {
		return orb.Bound{}, newError("bbox", "bbox bounds are invalid")
	}
	if !geo.ValidLng(minLng) || !geo.ValidLng(maxLng) {
		return orb.Bound{}, newError("bbox", "bbox lng out of range")
	}
	if !geo.ValidLat(minLat) || !geo.ValidLat(maxLat) {
		return orb.Bound{}, newError("bbox", "bbox lat out of range")
	}

	return geo.NewBound(minLng, minLat, maxLng, maxLat), nil
}

// NormalizeIssueType accepts only an exact, case-sensitive match.
func NormalizeIssueType(v any) (models.IssueType, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	it := models.IssueType(s)
	return it, it.Valid()
}

func NormalizeSeverity(v any) (models.Severity, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	sv := models.Severity(s)
	return sv, sv.Valid()
}

// SanitizeString trims string input. Non-strings and blank strings come back as "".
func SanitizeString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// EnsureDescription picks the first non-blank of description and fallback.
func EnsureDescription(description, fallback string) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	return strings.TrimSpace(fallback)
}

// Truthy reads a loosely typed flag. Strings go through strconv.ParseBool first
// so "false" and "0" stay false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
		return t != ""
	default:
		return true
	}
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case json.Number:
		return parseFinite(t.String())
	case string:
		return parseFinite(t)
	default:
		return 0, false
	}
}

func parseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// DraftInput is a validated draft request. Location pieces stay separate so callers can
// build the hint however they present it.
type DraftInput struct {
	IssueType      models.IssueType
	Severity       models.Severity
	Notes          string
	LocationText   string
	CrossStreet    string
	Landmark       string
	ApproxLocation bool
	Mode           string
}

func ValidateDraftBody(body any) (DraftInput, error) {
	m, ok := body.(map[string]any)
	if !ok || m == nil {
		return DraftInput{}, newError("body", "Invalid JSON body")
	}

	issueType, okType := NormalizeIssueType(m["issueType"])
	severity, okSeverity := NormalizeSeverity(m["severity"])
	if !okType || !okSeverity {
		return DraftInput{}, newError("issueType", "issueType and severity are required")
	}

	return DraftInput{
		IssueType:      issueType,
		Severity:       severity,
		Notes:          firstNonEmpty(SanitizeString(m["notes"]), SanitizeString(m["descriptionUser"])),
		LocationText:   firstNonEmpty(SanitizeString(m["locationText"]), SanitizeString(m["location"])),
		CrossStreet:    SanitizeString(m["crossStreet"]),
		Landmark:       SanitizeString(m["landmark"]),
		ApproxLocation: Truthy(m["approxLocation"]),
		Mode:           SanitizeString(m["mode"]),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
