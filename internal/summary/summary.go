// Package summary produces the natural-language paragraph shown next to each
// enriched object. Summaries are best effort: a Summarizer never returns an
// error, failures become placeholder text instead.
package summary

import (
	"context"
	"fmt"

	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/model"
)

const (
	// ErrorText replaces the summary when the model call fails.
	ErrorText = "Error generating AI summary. Please check API configuration."
	// EmptyText replaces the summary when the model returns nothing.
	EmptyText = "No summary generated."
)

// Summarizer writes a summary for one merged object.
type Summarizer interface {
	Summarize(ctx context.Context, obj *model.AstroObject) string
}

// Options selects and tunes the summarizer implementation.
type Options struct {
	APIKey   string
	Model    string
	Endpoint string
	RPS      float64
}

// New returns the Gemini client when an API key is configured and the
// templated fallback otherwise.
func New(ctx context.Context, opts Options, log *logger.Logger) (Summarizer, error) {
	if opts.APIKey == "" {
		log.Warn("summarizer API key not configured, using template summaries")
		return Template{}, nil
	}
	g, err := NewGemini(ctx, opts, log)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Template renders a deterministic summary from the object's own fields.
type Template struct{}

func (Template) Summarize(_ context.Context, obj *model.AstroObject) string {
	objectType := "unknown object"
	if obj.ObjectType != nil {
		objectType = *obj.ObjectType
	}
	return fmt.Sprintf(
		"[Mock Summary] %s is a fascinating astronomical object located at RA %s, Dec %s. Data indicates it is likely a %s. (Add API_KEY to enable AI summaries)",
		obj.DisplayName(), fixed(obj.RA, 4), fixed(obj.Dec, 4), objectType,
	)
}

// Safe converts panics raised by s into ErrorText.
func Safe(s Summarizer, log *logger.Logger) Summarizer {
	return safeSummarizer{next: s, log: log}
}

type safeSummarizer struct {
	next Summarizer
	log  *logger.Logger
}

func (s safeSummarizer) Summarize(ctx context.Context, obj *model.AstroObject) (out string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("summarizer panic", "object_id", obj.ID, "panic", r)
			out = ErrorText
		}
	}()
	return s.next.Summarize(ctx, obj)
}

func fixed(v *float64, prec int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.*f", prec, *v)
}

func orUnknown(v *string) string {
	if v == nil || *v == "" {
		return "Unknown"
	}
	return *v
}
