// Package gemini implements generation.Generator directly against
// Google's Gemini API, as an alternative to the hosted content
// generation service for deployments that author question sets in-house.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"time"

	"google.golang.org/genai"

	"github.com/examhive/examhive-api/internal/generation"
)

// Config holds the Gemini generator settings.
type Config struct {
	APIKey            string
	Model             string
	MaxRetries        int
	RetryDelaySeconds int
}

// Generator implements generation.Generator using the genai client.
type Generator struct {
	client *genai.Client
	config Config
	logger *slog.Logger
}

// NewGenerator validates the config and creates the genai client.
func NewGenerator(ctx context.Context, cfg Config, logger *slog.Logger) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelaySeconds < 1 {
		cfg.RetryDelaySeconds = 2
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Generator{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// GenerateExamSet prompts the model for a complete question set and
// parses the JSON payload it returns.
func (g *Generator) GenerateExamSet(
	ctx context.Context,
	exam string,
	subjects []string,
	questionsPerSubject int,
) (*generation.QuestionSet, error) {
	prompt, err := buildExamPrompt(exam, subjects, questionsPerSubject)
	if err != nil {
		return nil, err
	}

	text, err := g.callWithRetry(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}

	questions, warnings, err := parseQuestionPayload(text)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "gemini exam set generated",
		"exam", exam,
		"question_count", len(questions))

	return &generation.QuestionSet{Exam: exam, Questions: questions, Warnings: warnings}, nil
}

// ExtractFromPDF sends the uploaded paper (and optional answer key) to
// the model as inline PDF parts alongside the extraction prompt.
func (g *Generator) ExtractFromPDF(
	ctx context.Context,
	req generation.ExtractionRequest,
) (*generation.ExtractionResult, error) {
	pdfBytes, err := os.ReadFile(req.PDFPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded PDF: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(buildExtractionPrompt(req)),
		genai.NewPartFromBytes(pdfBytes, "application/pdf"),
	}
	if req.AnswerKeyPath != "" {
		keyBytes, err := os.ReadFile(req.AnswerKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read answer key: %w", err)
		}
		parts = append(parts, genai.NewPartFromBytes(keyBytes, "application/pdf"))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	text, err := g.callWithRetry(ctx, contents)
	if err != nil {
		return nil, err
	}

	questions, warnings, err := parseQuestionPayload(text)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "gemini pdf extraction finished",
		"exam", req.Exam,
		"subject", req.Subject,
		"question_count", len(questions),
		"warning_count", len(warnings))

	return &generation.ExtractionResult{
		Questions: questions,
		Warnings:  warnings,
		Report:    fmt.Sprintf("Model extraction of %s %s (%s): %d questions.",
			req.Exam, req.Year, req.Subject, len(questions)),
	}, nil
}

// Ping issues a minimal generation call to confirm the API is reachable
// with the configured credentials.
func (g *Generator) Ping(ctx context.Context) error {
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: 1}
	_, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text("ping"), cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", generation.ErrServiceUnavailable, err)
	}
	return nil
}

// callWithRetry calls the model with exponential backoff and jitter,
// retrying only transient failures. Safety blocks and malformed payloads
// return immediately.
func (g *Generator) callWithRetry(ctx context.Context, contents []*genai.Content) (string, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		resp, err := g.client.Models.GenerateContent(ctx, g.config.Model, contents, cfg)
		if err == nil {
			if len(resp.Candidates) > 0 &&
				resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
				return "", fmt.Errorf("%w: finish reason safety", generation.ErrContentBlocked)
			}
			text := resp.Text()
			if text == "" {
				return "", fmt.Errorf("%w: empty model response", generation.ErrInvalidResponse)
			}
			return text, nil
		}

		lastErr = err
		g.logger.WarnContext(ctx, "gemini call failed",
			"attempt", attempt+1,
			"max_attempts", g.config.MaxRetries+1,
			"error", err)

		if attempt == g.config.MaxRetries {
			break
		}

		select {
		case <-time.After(retryDelay(g.config.RetryDelaySeconds, attempt)):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", generation.ErrServiceUnavailable, ctx.Err())
		}
	}

	return "", fmt.Errorf("%w: %v", generation.ErrServiceUnavailable, lastErr)
}

// retryDelay computes base * 2^attempt seconds, scaled by jitter in
// [0.5, 1.0). The rand source is created per call; rand.Rand is not safe
// for use by concurrent retries.
func retryDelay(baseSeconds, attempt int) time.Duration {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	backoff := float64(baseSeconds) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rng.Float64()*0.5
	return time.Duration(backoff * jitter * float64(time.Second))
}

// questionPayload is the JSON schema the prompts instruct the model to
// produce.
type questionPayload struct {
	Questions []generation.Question `json:"questions"`
	Warnings  []string              `json:"warnings"`
}

func parseQuestionPayload(text string) ([]generation.Question, []string, error) {
	var payload questionPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	if len(payload.Questions) == 0 {
		return nil, nil, fmt.Errorf("%w: model returned no questions", generation.ErrInvalidResponse)
	}
	for i, q := range payload.Questions {
		if q.Text == "" || len(q.Options) < 2 {
			return nil, nil, fmt.Errorf("%w: question %d is malformed",
				generation.ErrInvalidResponse, i+1)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return nil, nil, fmt.Errorf("%w: question %d has out-of-range answer index",
				generation.ErrInvalidResponse, i+1)
		}
	}
	return payload.Questions, payload.Warnings, nil
}
