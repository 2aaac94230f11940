// Package generate is the boundary to the external generative service. A
// Gateway sends one structured-output request per call: no retries, no
// cached state, and a bounded deadline. Failures come back as *Error.
package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"pulseboard/internal/schema"
)

const (
	DefaultModel   = "gemini-3-flash-preview"
	DefaultTimeout = 120 * time.Second
)

// Error is a generation failure: network or service error, or an empty
// response body. It is surfaced to the caller unchanged.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Generator produces a raw structured-text response for a prompt. The engine
// depends on this interface so tests can substitute a canned service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gateway calls the Gemini API with the report contract as a response
// schema, so field names and enum domains are enforced at generation time
// rather than by prompt wording alone.
type Gateway struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("generation api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{client: client, model: model, timeout: timeout}, nil
}

// Generate performs a single attempt. Calls run for several seconds; the
// deadline bounds them so a stalled service cannot hang the pipeline.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.ResponseSchema(),
	})
	if err != nil {
		return "", &Error{Message: "generation request failed", Err: err}
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &Error{Message: "generation returned an empty response"}
	}
	return text, nil
}
