package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examhive/examhive-api/internal/artifact"
	"github.com/examhive/examhive-api/internal/domain"
	"github.com/examhive/examhive-api/internal/generation"
	"github.com/examhive/examhive-api/internal/job"
)

// mockGenerator lets each test override the generation calls.
type mockGenerator struct {
	GenerateFn func(ctx context.Context, exam string, subjects []string, perSubject int) (*generation.QuestionSet, error)
	ExtractFn  func(ctx context.Context, req generation.ExtractionRequest) (*generation.ExtractionResult, error)
	PingFn     func(ctx context.Context) error
}

func (m *mockGenerator) GenerateExamSet(
	ctx context.Context,
	exam string,
	subjects []string,
	perSubject int,
) (*generation.QuestionSet, error) {
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, exam, subjects, perSubject)
	}
	return fullQuestionSet(exam, subjects, perSubject), nil
}

func (m *mockGenerator) ExtractFromPDF(
	ctx context.Context,
	req generation.ExtractionRequest,
) (*generation.ExtractionResult, error) {
	if m.ExtractFn != nil {
		return m.ExtractFn(ctx, req)
	}
	return &generation.ExtractionResult{
		Questions: fullQuestionSet(req.Exam, []string{req.Subject}, 5).Questions,
	}, nil
}

func (m *mockGenerator) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn(ctx)
	}
	return nil
}

// fullQuestionSet fabricates perSubject questions for every subject.
func fullQuestionSet(exam string, subjects []string, perSubject int) *generation.QuestionSet {
	set := &generation.QuestionSet{Exam: exam}
	for _, subject := range subjects {
		for i := 0; i < perSubject; i++ {
			set.Questions = append(set.Questions, generation.Question{
				Subject:       subject,
				Text:          fmt.Sprintf("%s question %d", subject, i+1),
				Options:       []string{"a", "b", "c", "d"},
				CorrectAnswer: i % 4,
			})
		}
	}
	return set
}

type testHarness struct {
	registry   *job.MemoryRegistry
	store      *artifact.FilesystemStore
	dispatcher *Dispatcher
}

func newHarness(t *testing.T, gen generation.Generator, cfg Config) *testHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := job.NewMemoryRegistry()
	store, err := artifact.NewFilesystemStore(t.TempDir(), logger)
	require.NoError(t, err)

	dispatcher, err := NewDispatcher(registry, store, gen, cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(ctx)
	})

	return &testHarness{registry: registry, store: store, dispatcher: dispatcher}
}

// waitForTerminal polls the registry until the job reaches a terminal
// state, the way a real client would.
func waitForTerminal(t *testing.T, registry job.Registry, id uuid.UUID) domain.Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		j, err := registry.Get(context.Background(), id)
		require.NoError(t, err)
		if j.State.Terminal() {
			return j
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return domain.Job{}
}

func writeTempPDF(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "upload.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubmitExamGeneration_ReturnsImmediately(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{
		GenerateFn: func(ctx context.Context, exam string, subjects []string, perSubject int) (*generation.QuestionSet, error) {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return fullQuestionSet(exam, subjects, perSubject), nil
		},
	}
	h := newHarness(t, gen, Config{ExecutionCeiling: 5 * time.Second})

	start := time.Now()
	id, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
		ExamName:            "JEE",
		QuestionsPerSubject: 40,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	// Submission must not wait on the generation call.
	assert.Less(t, elapsed, 100*time.Millisecond)
}

func TestSubmitExamGeneration_HappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mockGenerator{}, Config{})

	id, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
		ExamName:            "JEE",
		QuestionsPerSubject: 40,
	})
	require.NoError(t, err)

	done := waitForTerminal(t, h.registry, id)
	require.Equal(t, domain.JobStateCompleted, done.State)
	require.NotNil(t, done.Result)

	// JEE fans out over 3 subjects.
	assert.Equal(t, 120, done.Result.TotalQuestions)
	assert.Equal(t, 100, done.Progress)

	var csvName string
	for _, name := range done.Result.ArtifactFilenames {
		if strings.HasSuffix(name, ".csv") {
			csvName = name
		}
	}
	require.NotEmpty(t, csvName, "expected a CSV artifact, got %v", done.Result.ArtifactFilenames)

	// Artifact round-trip: bytes read back match the listed size.
	rc, info, err := h.store.Get(context.Background(), csvName)
	require.NoError(t, err)
	defer func() { require.NoError(t, rc.Close()) }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, info.SizeBytes, int64(len(data)))

	infos, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 2) // CSV + XLSX workbook
}

func TestSubmitExamGeneration_Validation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mockGenerator{}, Config{})

	t.Run("unknown exam", func(t *testing.T) {
		_, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
			ExamName:            "INVALID",
			QuestionsPerSubject: 40,
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("count below bound", func(t *testing.T) {
		_, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
			ExamName:            "JEE",
			QuestionsPerSubject: 5,
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("count above bound", func(t *testing.T) {
		_, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
			ExamName:            "JEE",
			QuestionsPerSubject: 500,
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	// A rejected submission must not leave a job behind.
	assert.Equal(t, 0, h.registry.Len())
}

func TestSubmitExamGeneration_Timeout(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{
		GenerateFn: func(ctx context.Context, exam string, subjects []string, perSubject int) (*generation.QuestionSet, error) {
			// External call that never returns on its own.
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	h := newHarness(t, gen, Config{ExecutionCeiling: 50 * time.Millisecond})

	id, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
		ExamName:            "GATE",
		QuestionsPerSubject: 20,
	})
	require.NoError(t, err)

	done := waitForTerminal(t, h.registry, id)
	require.Equal(t, domain.JobStateFailed, done.State)
	require.NotNil(t, done.Error)
	assert.Equal(t, domain.ErrorKindTimeout, done.Error.Kind)
}

// slowPutStore delegates to a real store but holds every write open
// until the run context expires.
type slowPutStore struct {
	*artifact.FilesystemStore
}

func (s *slowPutStore) Put(ctx context.Context, filename string, r io.Reader) (artifact.Info, error) {
	<-ctx.Done()
	return artifact.Info{}, ctx.Err()
}

func TestSubmitExamGeneration_ArtifactWriteTimeout(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := job.NewMemoryRegistry()
	fs, err := artifact.NewFilesystemStore(t.TempDir(), logger)
	require.NoError(t, err)

	dispatcher, err := NewDispatcher(registry, &slowPutStore{FilesystemStore: fs},
		&mockGenerator{}, Config{ExecutionCeiling: 50 * time.Millisecond}, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(ctx)
	})

	id, err := dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
		ExamName:            "JEE",
		QuestionsPerSubject: 40,
	})
	require.NoError(t, err)

	done := waitForTerminal(t, registry, id)
	require.Equal(t, domain.JobStateFailed, done.State)
	require.NotNil(t, done.Error)

	// A write cut off by the ceiling is a timeout, not a storage fault.
	assert.Equal(t, domain.ErrorKindTimeout, done.Error.Kind)
}

func TestSubmitExamGeneration_ConcurrentIsolation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mockGenerator{}, Config{})

	idA, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
		ExamName:            "JEE",
		QuestionsPerSubject: 40,
	})
	require.NoError(t, err)

	idB, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
		ExamName:            "NMMS",
		QuestionsPerSubject: 10,
	})
	require.NoError(t, err)

	assert.NotEqual(t, idA, idB)

	doneA := waitForTerminal(t, h.registry, idA)
	doneB := waitForTerminal(t, h.registry, idB)

	require.Equal(t, domain.JobStateCompleted, doneA.State)
	require.Equal(t, domain.JobStateCompleted, doneB.State)

	// 3 subjects x 40 vs 2 subjects x 10: no cross-contamination.
	assert.Equal(t, 120, doneA.Result.TotalQuestions)
	assert.Equal(t, 20, doneB.Result.TotalQuestions)
}

func TestSubmitPDFExtraction_HappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mockGenerator{
		ExtractFn: func(ctx context.Context, req generation.ExtractionRequest) (*generation.ExtractionResult, error) {
			return &generation.ExtractionResult{
				Questions: fullQuestionSet(req.Exam, []string{req.Subject}, 5).Questions,
				Warnings:  []string{"question 3 had ambiguous options"},
				Report:    "Parsed 5 questions from 2 pages.",
			}, nil
		},
	}, Config{})

	pdfPath := writeTempPDF(t, "%PDF-1.4 paper")
	id, err := h.dispatcher.SubmitPDFExtraction(context.Background(), domain.PDFExtractionRequest{
		ExamName: "NEET",
		Year:     "2023",
		Subject:  "Physics",
		PDFPath:  pdfPath,
	})
	require.NoError(t, err)

	done := waitForTerminal(t, h.registry, id)
	require.Equal(t, domain.JobStateCompleted, done.State)
	require.NotNil(t, done.Result)
	assert.Equal(t, 5, done.Result.TotalQuestions)
	assert.Equal(t, []string{"question 3 had ambiguous options"}, done.Result.Warnings)
	require.Len(t, done.Result.ArtifactFilenames, 2)
	assert.True(t, strings.HasSuffix(done.Result.ArtifactFilenames[0], ".csv"))
	assert.True(t, strings.HasSuffix(done.Result.ArtifactFilenames[1], "_report.txt"))

	// The uploaded temp file is consumed on success.
	_, statErr := os.Stat(pdfPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSubmitPDFExtraction_ServiceFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mockGenerator{
		ExtractFn: func(ctx context.Context, req generation.ExtractionRequest) (*generation.ExtractionResult, error) {
			return nil, fmt.Errorf("%w: unparseable PDF", generation.ErrGenerationFailed)
		},
	}, Config{})

	pdfPath := writeTempPDF(t, "not really a pdf")
	id, err := h.dispatcher.SubmitPDFExtraction(context.Background(), domain.PDFExtractionRequest{
		ExamName: "UPSC",
		Year:     "2022",
		Subject:  "Polity",
		PDFPath:  pdfPath,
	})
	require.NoError(t, err)

	done := waitForTerminal(t, h.registry, id)
	require.Equal(t, domain.JobStateFailed, done.State)
	require.NotNil(t, done.Error)
	assert.Equal(t, domain.ErrorKindExternalService, done.Error.Kind)
	assert.Contains(t, done.Error.Message, "unparseable PDF")
	assert.Nil(t, done.Result)

	// No artifact is created for a failed job.
	infos, err := h.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, infos)

	// The temp upload is removed on failure too.
	_, statErr := os.Stat(pdfPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSubmitPDFExtraction_Validation(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &mockGenerator{}, Config{})

	t.Run("missing fields", func(t *testing.T) {
		_, err := h.dispatcher.SubmitPDFExtraction(context.Background(), domain.PDFExtractionRequest{
			ExamName: "NEET",
			PDFPath:  writeTempPDF(t, "x"),
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("missing upload", func(t *testing.T) {
		_, err := h.dispatcher.SubmitPDFExtraction(context.Background(), domain.PDFExtractionRequest{
			ExamName: "NEET",
			Year:     "2023",
			Subject:  "Physics",
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("empty upload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.pdf")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		_, err := h.dispatcher.SubmitPDFExtraction(context.Background(), domain.PDFExtractionRequest{
			ExamName: "NEET",
			Year:     "2023",
			Subject:  "Physics",
			PDFPath:  path,
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	assert.Equal(t, 0, h.registry.Len())
}

func TestDispatcher_MonotonicStateObservation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	gen := &mockGenerator{
		GenerateFn: func(ctx context.Context, exam string, subjects []string, perSubject int) (*generation.QuestionSet, error) {
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return fullQuestionSet(exam, subjects, perSubject), nil
		},
	}
	h := newHarness(t, gen, Config{})

	id, err := h.dispatcher.SubmitExamGeneration(context.Background(), domain.ExamGenerationRequest{
		ExamName:            "NEET",
		QuestionsPerSubject: 10,
	})
	require.NoError(t, err)

	rank := map[domain.JobState]int{
		domain.JobStateQueued:     0,
		domain.JobStateProcessing: 1,
		domain.JobStateCompleted:  2,
		domain.JobStateFailed:     2,
	}

	highest := -1
	deadline := time.Now().Add(5 * time.Second)
	released := false
	for time.Now().Before(deadline) {
		j, err := h.registry.Get(context.Background(), id)
		require.NoError(t, err)

		require.GreaterOrEqual(t, rank[j.State], highest,
			"state %s regressed from rank %d", j.State, highest)
		highest = rank[j.State]

		if !released && j.State == domain.JobStateProcessing {
			close(release)
			released = true
		}
		if j.State.Terminal() {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, 2, highest, "job never reached a terminal state")
}
