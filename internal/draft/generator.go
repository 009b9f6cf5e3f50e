// Package draft produces report narratives. An AI provider is tried under a deadline when one is
// configured; any failure degrades to a deterministic template so callers always get text.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr1hm/fixr/internal/logging"
	"github.com/mr1hm/fixr/internal/metrics"
)

const DefaultTimeout = 10 * time.Second

type Mode string

const (
	ModeText       Mode = "text"
	ModeStructured Mode = "structured"
)

func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeStructured)) {
		return ModeStructured
	}
	return ModeText
}

type Source string

const (
	SourceAI       Source = "ai"
	SourceTemplate Source = "template"
)

type FallbackReason string

const (
	ReasonTimeout FallbackReason = "timeout"
	ReasonAIError FallbackReason = "ai_error"
)

// Completer is an AI text service. Implementations must abort their I/O when ctx is done.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Model() string
}

type Result struct {
	Draft          string         `json:"draft"`
	Source         Source         `json:"source"`
	FallbackReason FallbackReason `json:"fallbackReason,omitempty"`
	Model          string         `json:"model,omitempty"`
	Structured     *Structured    `json:"structured,omitempty"`
}

type Generator struct {
	client  Completer
	timeout time.Duration
}

// NewGenerator builds a generator. A nil client means template-only.
func NewGenerator(client Completer, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{
		client:  client,
		timeout: timeout,
	}
}

func (g *Generator) AIEnabled() bool {
	return g.client != nil
}

// Generate never fails. The only caller-visible outcomes are the text and which path produced it.
func (g *Generator) Generate(ctx context.Context, req Request, mode Mode) Result {
	if g.client == nil {
		res := templateResult(req, mode, "")
		metrics.ObserveDraft(string(res.Source), "")
		return res
	}

	res, err := g.generateAI(ctx, req, mode)
	if err == nil {
		metrics.ObserveDraft(string(res.Source), "")
		return res
	}

	reason := ReasonAIError
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	logging.FromContext(ctx).Warn("AI draft failed, falling back to template",
		"reason", reason, "model", g.client.Model(), "error", err)

	res = templateResult(req, mode, reason)
	metrics.ObserveDraft(string(res.Source), string(reason))
	return res
}

func (g *Generator) generateAI(ctx context.Context, req Request, mode Mode) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	out, err := g.client.Complete(ctx, buildPrompt(req, mode))
	if err != nil {
		// Some transports surface a deadline as a plain I/O error.
		if ctx.Err() == context.DeadlineExceeded && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return Result{}, err
	}

	res := Result{
		Source: SourceAI,
		Model:  g.client.Model(),
	}
	if mode == ModeStructured {
		s, err := ParseStructured(out)
		if err != nil {
			return Result{}, err
		}
		res.Structured = s
		res.Draft = Flatten(*s)
	} else {
		res.Draft = strings.TrimSpace(out)
	}

	if res.Draft == "" {
		return Result{}, errors.New("AI returned an empty draft")
	}
	return res, nil
}

func templateResult(req Request, mode Mode, reason FallbackReason) Result {
	res := Result{
		Source:         SourceTemplate,
		FallbackReason: reason,
	}
	if mode == ModeStructured {
		s := BuildStructuredTemplate(req)
		res.Structured = &s
		res.Draft = Flatten(s)
	} else {
		res.Draft = BuildTemplate(req)
	}
	return res
}
