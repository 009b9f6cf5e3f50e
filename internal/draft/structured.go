package draft

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Structured is the field-by-field draft. AI output is decoded into it and validated before use.
type Structured struct {
	Title              string   `json:"title" validate:"required,max=160"`
	Summary            string   `json:"summary" validate:"required,max=600"`
	Details            string   `json:"details" validate:"required,max=2000"`
	RequestedAction    string   `json:"requested_action" validate:"required,max=600"`
	SafetyNote         string   `json:"safety_note,omitempty" validate:"omitempty,max=600"`
	SuggestedIssueType string   `json:"suggested_issue_type,omitempty" validate:"omitempty,oneof=pothole illegal_dumping broken_streetlight flooding blocked_sidewalk other"`
	SuggestedSeverity  string   `json:"suggested_severity,omitempty" validate:"omitempty,oneof=low medium high"`
	Tags               []string `json:"tags" validate:"max=6,dive,required,max=40"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStructured checks a decoded draft against the schema.
func ValidateStructured(s *Structured) error {
	if err := structValidator().Struct(s); err != nil {
		return fmt.Errorf("structured draft failed validation: %w", err)
	}
	return nil
}

// ParseStructured decodes model output, tolerating a surrounding markdown code fence.
func ParseStructured(raw string) (*Structured, error) {
	var s Structured
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &s); err != nil {
		return nil, fmt.Errorf("error decoding structured draft: %w", err)
	}
	s.trim()
	if err := ValidateStructured(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Flatten projects a structured draft into a single narrative.
func Flatten(s Structured) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{s.Summary, s.Details, s.RequestedAction, s.SafetyNote} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (s *Structured) trim() {
	s.Title = strings.TrimSpace(s.Title)
	s.Summary = strings.TrimSpace(s.Summary)
	s.Details = strings.TrimSpace(s.Details)
	s.RequestedAction = strings.TrimSpace(s.RequestedAction)
	s.SafetyNote = strings.TrimSpace(s.SafetyNote)
	s.SuggestedIssueType = strings.TrimSpace(s.SuggestedIssueType)
	s.SuggestedSeverity = strings.TrimSpace(s.SuggestedSeverity)
	if s.Tags == nil {
		s.Tags = []string{}
	}
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
