// Package genservice is the HTTP client for the hosted content
// generation service: the external system that authors exam question
// sets and extracts questions from uploaded PDFs. The dispatcher treats
// it as a black box with a single success-or-failure outcome per call.
package genservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/examhive/examhive-api/internal/generation"
)

// Config holds the client settings.
type Config struct {
	// BaseURL of the content generation service, without trailing slash.
	BaseURL string

	// RequestTimeout bounds a single HTTP exchange. The dispatcher's
	// execution ceiling is enforced separately through ctx; this guards
	// against connections that hang below it.
	RequestTimeout time.Duration
}

// Client implements generation.Generator over the service's HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient validates the config and returns a Client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: service base URL cannot be empty", generation.ErrInvalidConfig)
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// examSetResponse mirrors the service's generation payload.
type examSetResponse struct {
	Questions []generation.Question `json:"questions"`
	Warnings  []string              `json:"warnings"`
}

// extractionResponse mirrors the service's extraction payload.
type extractionResponse struct {
	Questions []generation.Question `json:"questions"`
	Warnings  []string              `json:"warnings"`
	Report    string                `json:"report"`
}

// errorResponse mirrors the service's error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// GenerateExamSet calls POST /v1/generate-exam.
func (c *Client) GenerateExamSet(
	ctx context.Context,
	exam string,
	subjects []string,
	questionsPerSubject int,
) (*generation.QuestionSet, error) {
	body := map[string]any{
		"exam_name":             exam,
		"subjects":              subjects,
		"questions_per_subject": questionsPerSubject,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/generate-exam", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed examSetResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}
	if len(parsed.Questions) == 0 {
		return nil, fmt.Errorf("%w: service returned no questions", generation.ErrInvalidResponse)
	}

	c.logger.Info("exam set generated",
		"exam", exam,
		"question_count", len(parsed.Questions),
		"elapsed_ms", time.Since(start).Milliseconds())

	return &generation.QuestionSet{
		Exam:      exam,
		Questions: parsed.Questions,
		Warnings:  parsed.Warnings,
	}, nil
}

// ExtractFromPDF calls POST /v1/extract with a multipart upload of the
// question paper and optional answer key.
func (c *Client) ExtractFromPDF(
	ctx context.Context,
	extractReq generation.ExtractionRequest,
) (*generation.ExtractionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"exam_name": extractReq.Exam,
		"year":      extractReq.Year,
		"subject":   extractReq.Subject,
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	if err := attachFile(mw, "pdf_file", extractReq.PDFPath); err != nil {
		return nil, err
	}
	if extractReq.AnswerKeyPath != "" {
		if err := attachFile(mw, "answer_key_file", extractReq.AnswerKeyPath); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsed extractionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
	}

	c.logger.Info("pdf extraction finished",
		"exam", extractReq.Exam,
		"subject", extractReq.Subject,
		"question_count", len(parsed.Questions),
		"warning_count", len(parsed.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds())

	return &generation.ExtractionResult{
		Questions: parsed.Questions,
		Warnings:  parsed.Warnings,
		Report:    parsed.Report,
	}, nil
}

// Ping calls GET /healthz with a short deadline.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", generation.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d",
			generation.ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

// do executes the request and maps transport and status failures onto
// the generation sentinel errors.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrServiceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v",
			generation.ErrInvalidResponse, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := serviceErrorMessage(raw)
		return nil, fmt.Errorf("%w: service returned %d: %s",
			generation.ErrGenerationFailed, resp.StatusCode, message)
	}
	return raw, nil
}

// serviceErrorMessage pulls the error string out of an error payload,
// falling back to the raw body for non-JSON responses.
func serviceErrorMessage(raw []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg == "" {
		msg = "no error detail provided"
	}
	return msg
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open upload %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file %s: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to copy upload %s: %w", path, err)
	}
	return nil
}
