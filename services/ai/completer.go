// Package ai wraps the LLM providers used to score calls, tweets and
// websites behind a single Completer interface.
package ai

import (
	"context"
	"errors"
	"strings"
)

var ErrNotConfigured = errors.New("ai provider not configured")

type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a JSON-only response where it supports that.
	JSON bool
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Router dispatches a request to a provider based on the model name:
// claude* goes to Anthropic, gemini* (optionally "google/" prefixed) to
// Gemini, anything else to OpenRouter.
type Router struct {
	Anthropic  Completer
	Gemini     Completer
	OpenRouter Completer
}

func (r *Router) For(model string) (Completer, error) {
	m := strings.ToLower(model)
	var c Completer
	switch {
	case strings.Contains(m, "claude") && !strings.Contains(m, "/"):
		c = r.Anthropic
	case strings.HasPrefix(strings.TrimPrefix(m, "google/"), "gemini"):
		c = r.Gemini
	default:
		c = r.OpenRouter
	}
	if c == nil {
		return nil, ErrNotConfigured
	}
	return c, nil
}

func (r *Router) Complete(ctx context.Context, req Request) (string, error) {
	c, err := r.For(req.Model)
	if err != nil {
		return "", err
	}
	return c.Complete(ctx, req)
}
