package models

import "time"

type IssueType string

const (
	IssueTypePothole           IssueType = "pothole"
	IssueTypeIllegalDumping    IssueType = "illegal_dumping"
	IssueTypeBrokenStreetlight IssueType = "broken_streetlight"
	IssueTypeFlooding          IssueType = "flooding"
	IssueTypeBlockedSidewalk   IssueType = "blocked_sidewalk"
	IssueTypeOther             IssueType = "other"
)

// IssueTypes lists every accepted issue type in display order.
var IssueTypes = []IssueType{
	IssueTypePothole,
	IssueTypeIllegalDumping,
	IssueTypeBrokenStreetlight,
	IssueTypeFlooding,
	IssueTypeBlockedSidewalk,
	IssueTypeOther,
}

func (t IssueType) Valid() bool {
	for _, it := range IssueTypes {
		if t == it {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

func (s Severity) Valid() bool {
	for _, sv := range Severities {
		if s == sv {
			return true
		}
	}
	return false
}

// GeoPoint is the stored point shape. Coordinates are [lng, lat].
type GeoPoint struct {
	Type        string     `json:"type" bson:"type"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

type LngLat struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// Photo is always the empty placeholder; photos are never persisted.
type Photo struct {
	URL    *string `json:"url" bson:"url"`
	Stored bool    `json:"stored" bson:"stored"`
}

var DefaultPhoto = Photo{URL: nil, Stored: false}

type Report struct {
	ID               string // ObjectID hex, assigned by the store
	IssueType        IssueType
	Severity         Severity
	DescriptionUser  string // empty means not provided
	DescriptionFinal string
	Location         GeoPoint
	ApproxLocation   bool // Location already rounded to 3 decimals
	Photo            Photo
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r *Report) Coordinates() LngLat {
	return LngLat{
		Lng: r.Location.Lng(),
		Lat: r.Location.Lat(),
	}
}

// ReportResponse is the full projection returned for a single report.
type ReportResponse struct {
	ID               string    `json:"id"`
	IssueType        IssueType `json:"issueType"`
	Severity         Severity  `json:"severity"`
	DescriptionUser  string    `json:"descriptionUser,omitempty"`
	DescriptionFinal string    `json:"descriptionFinal"`
	Location         LngLat    `json:"location"`
	ApproxLocation   bool      `json:"approxLocation"`
	Photo            Photo     `json:"photo"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Pin is the map projection. It never carries description text.
type Pin struct {
	ID        string    `json:"id"`
	IssueType IssueType `json:"issueType"`
	Severity  Severity  `json:"severity"`
	Location  LngLat    `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Report) ToResponse() ReportResponse {
	return ReportResponse{
		ID:               r.ID,
		IssueType:        r.IssueType,
		Severity:         r.Severity,
		DescriptionUser:  r.DescriptionUser,
		DescriptionFinal: r.DescriptionFinal,
		Location:         r.Coordinates(),
		ApproxLocation:   r.ApproxLocation,
		Photo:            r.Photo,
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func (r *Report) ToPin() Pin {
	return Pin{
		ID:        r.ID,
		IssueType: r.IssueType,
		Severity:  r.Severity,
		Location:  r.Coordinates(),
		CreatedAt: r.CreatedAt.UTC(),
	}
}
