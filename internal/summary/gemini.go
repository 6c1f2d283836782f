package summary

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/dharsanguruparan/skypulse/internal/logger"
	"github.com/dharsanguruparan/skypulse/internal/model"
)

const (
	defaultModel      = "gemini-3-pro-preview"
	defaultAPIVersion = "v1beta"
	defaultRPS        = 1
)

// Gemini asks a Gemini model for each summary through the genai SDK.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewGemini builds a client. Zero options fall back to defaults; an empty
// Endpoint keeps the SDK's public endpoint.
func NewGemini(ctx context.Context, opts Options, log *logger.Logger) (*Gemini, error) {
	modelName := opts.Model
	if modelName == "" {
		modelName = defaultModel
	}
	rps := opts.RPS
	if rps <= 0 {
		rps = defaultRPS
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    opts.Endpoint,
			APIVersion: defaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   modelName,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log.With("component", "GeminiSummarizer"),
	}, nil
}

// Summarize never fails; errors are logged and replaced with ErrorText.
func (g *Gemini) Summarize(ctx context.Context, obj *model.AstroObject) string {
	text, err := g.generate(ctx, Prompt(obj))
	if err != nil {
		g.log.Error("generate summary failed", "object_id", obj.ID, "error", err)
		return ErrorText
	}
	if strings.TrimSpace(text) == "" {
		return EmptyText
	}
	return text
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// Prompt builds the instruction sent to the model for obj.
func Prompt(obj *model.AstroObject) string {
	distance := "Unknown"
	if obj.Distance != nil {
		distance = fmt.Sprintf("%g pc", *obj.Distance)
	}
	temperature := "Unknown"
	if obj.Temperature != nil {
		temperature = fmt.Sprintf("%g K", *obj.Temperature)
	}
	magnitude := "Unknown"
	if obj.Magnitude != nil {
		magnitude = fmt.Sprintf("%g", *obj.Magnitude)
	}
	band := ""
	if obj.MagBand != nil {
		band = *obj.MagBand
	}
	return fmt.Sprintf(`Act as an expert astronomer.
Generate a concise, scientific summary paragraph (approx 80-100 words) for the astronomical object with the following data:

Name: %s
Type: %s
Coordinates: RA %s, Dec %s
Distance: %s
Spectral Type: %s
Temperature: %s
Magnitude: %s (%s)

Focus on the physical nature of the object and its context in the galaxy.`,
		obj.DisplayName(), orUnknown(obj.ObjectType), fixed(obj.RA, 6), fixed(obj.Dec, 6),
		distance, orUnknown(obj.SpectralType), temperature, magnitude, band)
}
