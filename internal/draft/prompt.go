package draft

import (
	"strings"
)

const textSystemPrompt = "You write concise, city-ready incident reports. Use only the provided details. " +
	"Do not invent measurements. If information is missing, say it is approximate or unspecified. " +
	"Keep to 3-6 sentences, respectful and actionable."

const structuredSystemPrompt = "You write concise, city-ready incident reports for a municipal public works queue. " +
	"Use only the provided details and never invent measurements, names or addresses. " +
	"Respond with a single JSON object and nothing else, using exactly these keys: " +
	`"title" (short headline), "summary" (one sentence naming the issue type, severity and location), ` +
	`"details" (reporter notes restated plainly, say "unspecified" when missing), ` +
	`"requested_action" (one sentence asking the city to inspect and address), ` +
	`"safety_note" (only when the notes describe a danger to people, otherwise an empty string), ` +
	`"suggested_issue_type" (one of pothole, illegal_dumping, broken_streetlight, flooding, blocked_sidewalk, other), ` +
	`"suggested_severity" (one of low, medium, high), "tags" (at most 6 short lowercase tags).`

// Prompt is a provider-neutral completion request.
type Prompt struct {
	System      string
	User        string
	JSON        bool
	Temperature float32
	MaxTokens   int
}

func buildPrompt(req Request, mode Mode) Prompt {
	notes := req.Notes
	if notes == "" {
		notes = "unspecified"
	}
	location := req.LocationText
	if location == "" {
		location = "pin provided on map"
	}
	approx := "no"
	if req.ApproxLocation {
		approx = "yes"
	}

	user := strings.Join([]string{
		"Issue type: " + string(req.IssueType),
		"Severity: " + string(req.Severity),
		"Notes from reporter: " + notes,
		"Location hint: " + location,
		"Approximate location: " + approx,
	}, "\n")

	if mode == ModeStructured {
		return Prompt{
			System:      structuredSystemPrompt,
			User:        user,
			JSON:        true,
			Temperature: 0.3,
			MaxTokens:   500,
		}
	}
	return Prompt{
		System:      textSystemPrompt,
		User:        user,
		Temperature: 0.4,
		MaxTokens:   240,
	}
}

// LocationHint joins the free-form location pieces a reporter may send.
func LocationHint(location, crossStreet, landmark string) string {
	parts := make([]string, 0, 3)
	if location != "" {
		parts = append(parts, location)
	}
	if crossStreet != "" {
		parts = append(parts, "near "+crossStreet)
	}
	if landmark != "" {
		parts = append(parts, "by "+landmark)
	}
	return strings.Join(parts, ", ")
}
