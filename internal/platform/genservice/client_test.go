package genservice

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examhive/examhive-api/internal/generation"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewClient(Config{BaseURL: baseURL}, logger)
	require.NoError(t, err)
	return client
}

func TestClient_GenerateExamSet(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/generate-exam", r.URL.Path)

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "JEE", body["exam_name"])
			assert.InDelta(t, 40, body["questions_per_subject"], 0)

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"questions": []map[string]any{
					{
						"subject":        "Physics",
						"text":           "What is inertia?",
						"options":        []string{"a", "b", "c", "d"},
						"correct_answer": 0,
					},
				},
				"warnings": []string{"one subject trimmed"},
			})
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		set, err := client.GenerateExamSet(context.Background(), "JEE", []string{"Physics"}, 40)
		require.NoError(t, err)
		assert.Equal(t, "JEE", set.Exam)
		require.Len(t, set.Questions, 1)
		assert.Equal(t, "Physics", set.Questions[0].Subject)
		assert.Equal(t, []string{"one subject trimmed"}, set.Warnings)
	})

	t.Run("service error response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unsupported exam"})
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.GenerateExamSet(context.Background(), "JEE", []string{"Physics"}, 40)
		assert.ErrorIs(t, err, generation.ErrGenerationFailed)
		assert.Contains(t, err.Error(), "unsupported exam")
	})

	t.Run("unreachable service", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t, "http://127.0.0.1:1")
		_, err := client.GenerateExamSet(context.Background(), "JEE", []string{"Physics"}, 40)
		assert.ErrorIs(t, err, generation.ErrServiceUnavailable)
	})

	t.Run("empty question list", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"questions": []any{}})
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.GenerateExamSet(context.Background(), "JEE", []string{"Physics"}, 40)
		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})
}

func TestClient_ExtractFromPDF(t *testing.T) {
	t.Parallel()

	pdfPath := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 fake"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "NEET", r.FormValue("exam_name"))
		assert.Equal(t, "2023", r.FormValue("year"))
		assert.Equal(t, "Physics", r.FormValue("subject"))

		file, header, err := r.FormFile("pdf_file")
		require.NoError(t, err)
		defer func() { _ = file.Close() }()
		assert.Equal(t, "paper.pdf", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"questions": []map[string]any{
				{"subject": "Physics", "text": "Q1", "options": []string{"a", "b"}, "correct_answer": 1},
			},
			"warnings": []string{"page 3 skipped"},
			"report":   "Parsed 1 question.",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.ExtractFromPDF(context.Background(), generation.ExtractionRequest{
		Exam:    "NEET",
		Year:    "2023",
		Subject: "Physics",
		PDFPath: pdfPath,
	})
	require.NoError(t, err)
	require.Len(t, result.Questions, 1)
	assert.Equal(t, []string{"page 3 skipped"}, result.Warnings)
	assert.Equal(t, "Parsed 1 question.", result.Report)
}

func TestClient_Ping(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/healthz", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		assert.ErrorIs(t, client.Ping(context.Background()), generation.ErrServiceUnavailable)
	})
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(Config{}, logger)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewClient(Config{BaseURL: "http://localhost:9000"}, nil)
	assert.Error(t, err)
}
