package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenRouterClient talks to any OpenAI-compatible chat completions endpoint.
type OpenRouterClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   retryPolicy
}

func NewOpenRouter(apiKey, baseURL string, timeout time.Duration, maxRetries int, retryDelay time.Duration) *OpenRouterClient {
	return &OpenRouterClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retry:   retryPolicy{maxRetries: uint64(maxRetries), delay: retryDelay},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenRouterClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body := chatRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	var resp chatResponse
	if err := postJSON(ctx, c.http, c.baseURL+"/chat/completions", headers, body, &resp, c.retry); err != nil {
		return "", fmt.Errorf("openrouter: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openrouter: no response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
