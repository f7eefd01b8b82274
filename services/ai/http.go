package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type retryPolicy struct {
	maxRetries uint64
	delay      time.Duration
}

// postJSON sends body as JSON and decodes a 200 response into out. Network
// errors, 429 and 5xx are retried with exponential backoff; other statuses
// fail immediately.
func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, body, out any, p retryPolicy) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			err := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse response: %w", err))
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.delay
	eb.MaxElapsedTime = 0
	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(eb, p.maxRetries), ctx))
}
