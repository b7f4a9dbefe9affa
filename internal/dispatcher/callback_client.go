package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// errPermanent marks a callback failure that retrying will not fix.
var errPermanent = errors.New("permanent callback failure")

// CallbackConfig configures the callback HTTP client.
type CallbackConfig struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// CallbackClient posts payloads to the external evaluation endpoint.
type CallbackClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewCallbackClient creates a new callback client.
func NewCallbackClient(cfg CallbackConfig, logger *zap.Logger) *CallbackClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &CallbackClient{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// Send posts the payload, retrying transient failures with a linear backoff.
// It returns the number of attempts made.
func (c *CallbackClient) Send(ctx context.Context, payload *models.CallbackPayload) (int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			c.logger.Warn("Retrying callback",
				zap.String("session_id", payload.SessionID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.maxRetries))
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt-1)):
			case <-ctx.Done():
				return attempt - 1, fmt.Errorf("callback cancelled: %w", ctx.Err())
			}
		}

		lastErr = c.post(ctx, jsonData)
		if lastErr == nil {
			return attempt, nil
		}
		if errors.Is(lastErr, errPermanent) {
			return attempt, lastErr
		}
		c.logger.Error("Callback attempt failed",
			zap.String("session_id", payload.SessionID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	return c.maxRetries, fmt.Errorf("callback failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *CallbackClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w: %w", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("%w: callback endpoint returned status %d: %s", errPermanent, resp.StatusCode, string(respBody))
	}
	return fmt.Errorf("callback endpoint returned status %d: %s", resp.StatusCode, string(respBody))
}
