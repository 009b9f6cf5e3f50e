package draft

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mr1hm/fixr/internal/models"
)

const maxTags = 6

const (
	noPhotoSentence   = "Please inspect and address; photo not stored with this report."
	privacyRounded    = "Location was rounded for privacy; crews may need to confirm on arrival."
	privacyExact      = "Location is as pinned by the reporter."
	safetyNoteText    = "Reporter notes mention a possible hazard; if anyone is in immediate danger, contact emergency services first."
	approxLocationTag = "approx-location"
)

// emergencyTerms trigger the safety note when found anywhere in the notes, ignoring case.
var emergencyTerms = []string{
	"fire",
	"smoke",
	"gas leak",
	"smell of gas",
	"sparking",
	"live wire",
	"downed wire",
	"power line",
	"injur",
	"bleeding",
	"unconscious",
	"trapped",
	"collapse",
	"sinkhole",
	"emergency",
}

// Request is the input shared by every draft path.
type Request struct {
	IssueType      models.IssueType
	Severity       models.Severity
	Notes          string
	LocationText   string
	ApproxLocation bool
}

func readableIssue(t models.IssueType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func notesClause(notes string) string {
	if notes != "" {
		return "Reporter notes: " + notes
	}
	return "Reporter notes: none provided."
}

func locationClause(text string) string {
	if text != "" {
		return "Location: " + text + "."
	}
	return "Location: see pinned coordinates."
}

func privacyClause(approx bool) string {
	if approx {
		return privacyRounded
	}
	return privacyExact
}

// BuildTemplate renders the plain narrative. It is pure: the same Request always yields the same bytes.
func BuildTemplate(req Request) string {
	return strings.Join([]string{
		"Report of " + readableIssue(req.IssueType) + " at the pinned location.",
		"Severity marked as " + string(req.Severity) + ".",
		notesClause(req.Notes),
		locationClause(req.LocationText),
		noPhotoSentence,
		privacyClause(req.ApproxLocation),
	}, " ")
}

// BuildStructuredTemplate renders the same information set as BuildTemplate as separate fields.
func BuildStructuredTemplate(req Request) Structured {
	readable := readableIssue(req.IssueType)

	where := "the pinned coordinates"
	if req.LocationText != "" {
		where = req.LocationText
	}

	s := Structured{
		Title:              cases.Title(language.English).String(readable) + " report (" + string(req.Severity) + " severity)",
		Summary:            "Reported: " + readable + ", " + string(req.Severity) + " severity, at " + where + ".",
		Details:            strings.Join([]string{notesClause(req.Notes), locationClause(req.LocationText), privacyClause(req.ApproxLocation)}, " "),
		RequestedAction:    noPhotoSentence,
		SuggestedIssueType: string(req.IssueType),
		SuggestedSeverity:  string(req.Severity),
		Tags:               templateTags(req),
	}
	if NeedsSafetyNote(req.Notes) {
		s.SafetyNote = safetyNoteText
	}
	return s
}

// NeedsSafetyNote reports whether notes contain any emergency-indicating term.
func NeedsSafetyNote(notes string) bool {
	lower := strings.ToLower(notes)
	for _, term := range emergencyTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func templateTags(req Request) []string {
	tags := []string{string(req.IssueType), string(req.Severity)}
	if req.ApproxLocation {
		tags = append(tags, approxLocationTag)
	}
	return capTags(tags)
}

func capTags(tags []string) []string {
	if len(tags) > maxTags {
		return tags[:maxTags]
	}
	return tags
}
