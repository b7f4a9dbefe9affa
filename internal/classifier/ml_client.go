package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// MLClient talks to an external scam classification service.
type MLClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClassifyRequest is the body sent to the ML service.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse is the ML service result.
type ClassifyResponse struct {
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	CategoryID       int      `json:"category_id"`
	Confidence       float64  `json:"confidence"`
	IsAttack         bool     `json:"is_attack"`
	ScamTypes        []string `json:"scam_types,omitempty"`
	ProcessingTimeMs float64  `json:"processing_time_ms,omitempty"`
}

// NewMLClient creates a new ML service client.
func NewMLClient(baseURL string, timeout time.Duration, logger *zap.Logger) *MLClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MLClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Classify sends text to the ML service and converts its answer into a Verdict.
func (c *MLClient) Classify(ctx context.Context, text string) (Verdict, error) {
	jsonData, err := json.Marshal(ClassifyRequest{Text: text})
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/classify/single", bytes.NewBuffer(jsonData))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Verdict{}, fmt.Errorf("ML service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Verdict{}, fmt.Errorf("failed to decode response: %w", err)
	}

	types := result.ScamTypes
	if len(types) == 0 && result.IsAttack && result.Category != "" {
		types = []string{result.Category}
	}

	c.logger.Debug("ML classification received",
		zap.String("category", result.Category),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("is_attack", result.IsAttack))

	return Verdict{
		IsScam:     result.IsAttack,
		Confidence: clamp01(result.Confidence),
		ScamTypes:  types,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
