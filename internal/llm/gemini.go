// Package llm enriches callback notes with a generative model.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/obiwankenobi699/HoneyPot/internal/models"
)

// Config for the Gemini notes writer
type Config struct {
	APIKey            string
	ModelName         string // Default: "gemini-2.0-flash"
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerMinute int
}

// generator is the single model call the enricher needs.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
	close() error
}

// NotesEnricher rewrites template notes into an analyst summary.
type NotesEnricher struct {
	gen        generator
	limiter    *RateLimiter
	logger     *zap.Logger
	modelName  string
	maxRetries int
	retryDelay time.Duration
}

// NewGeminiEnricher creates a Gemini-backed enricher.
func NewGeminiEnricher(cfg Config, logger *zap.Logger) (*NotesEnricher, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.ModelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(SystemInstruction)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](0.2),
		TopP:            genai.Ptr[float32](0.9),
		MaxOutputTokens: genai.Ptr[int32](300),
	}

	logger.Info("Gemini notes enricher initialized",
		zap.String("model", cfg.ModelName),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute))

	return newEnricher(&geminiGenerator{client: client, model: model}, cfg, logger), nil
}

func newEnricher(gen generator, cfg Config, logger *zap.Logger) *NotesEnricher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &NotesEnricher{
		gen:        gen,
		limiter:    NewRateLimiter(cfg.RequestsPerMinute),
		logger:     logger,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Close closes the underlying client
func (e *NotesEnricher) Close() error {
	return e.gen.close()
}

// EnrichNotes asks the model for a summary of s. The draft is passed along as
// grounding and is what callers keep on error.
func (e *NotesEnricher) EnrichNotes(ctx context.Context, s *models.Session, draft string) (string, error) {
	prompt := BuildPrompt(s, draft)

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Warn("Retrying notes request",
				zap.String("session_id", s.ID),
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", e.maxRetries))
			select {
			case <-time.After(e.retryDelay):
			case <-ctx.Done():
				return "", fmt.Errorf("notes request cancelled: %w", ctx.Err())
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait cancelled: %w", err)
		}

		text, err := e.gen.generate(ctx, prompt)
		if err != nil {
			lastErr = err
			e.logger.Error("Notes model error", zap.Error(err), zap.Int("attempt", attempt+1))
			continue
		}

		notes := cleanNotes(text)
		if notes == "" {
			lastErr = fmt.Errorf("empty response from %s", e.modelName)
			continue
		}

		e.logger.Debug("Notes enriched", zap.String("session_id", s.ID), zap.Int("attempt", attempt+1))
		return notes, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", e.maxRetries, lastErr)
}

// cleanNotes strips markdown fences and collapses whitespace.
func cleanNotes(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.Join(strings.Fields(text), " ")
}

type geminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func (g *geminiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

func (g *geminiGenerator) close() error {
	return g.client.Close()
}
