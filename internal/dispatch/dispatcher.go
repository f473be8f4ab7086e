package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/examhive/examhive-api/internal/artifact"
	"github.com/examhive/examhive-api/internal/domain"
	"github.com/examhive/examhive-api/internal/generation"
	"github.com/examhive/examhive-api/internal/job"
)

// Config holds dispatcher settings.
type Config struct {
	// ExecutionCeiling bounds a single background run. A run that exceeds
	// it fails with the timeout error kind. If zero, defaults to 10m.
	ExecutionCeiling time.Duration
}

// Dispatcher validates submissions and drives background execution.
type Dispatcher struct {
	registry  job.Registry
	artifacts artifact.Store
	generator generation.Generator
	config    Config
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
	wg       sync.WaitGroup
}

// NewDispatcher wires a Dispatcher. All dependencies are required.
func NewDispatcher(
	registry job.Registry,
	artifacts artifact.Store,
	generator generation.Generator,
	config Config,
	logger *slog.Logger,
) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	if artifacts == nil {
		return nil, errors.New("artifact store cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if config.ExecutionCeiling == 0 {
		config.ExecutionCeiling = 10 * time.Minute
	}
	return &Dispatcher{
		registry:  registry,
		artifacts: artifacts,
		generator: generator,
		config:    config,
		logger:    logger,
		inFlight:  make(map[uuid.UUID]struct{}),
	}, nil
}

// SubmitExamGeneration validates the request, creates a queued job, and
// schedules background execution. It returns the job ID immediately; the
// generation outcome is only observable through status polling.
func (d *Dispatcher) SubmitExamGeneration(
	ctx context.Context,
	req domain.ExamGenerationRequest,
) (uuid.UUID, error) {
	if !domain.SupportedExam(req.ExamName) {
		return uuid.Nil, fmt.Errorf("%w: unsupported exam %q", ErrInvalidRequest, req.ExamName)
	}
	if req.QuestionsPerSubject < domain.MinQuestionsPerSubject ||
		req.QuestionsPerSubject > domain.MaxQuestionsPerSubject {
		return uuid.Nil, fmt.Errorf("%w: questions_per_subject must be between %d and %d",
			ErrInvalidRequest, domain.MinQuestionsPerSubject, domain.MaxQuestionsPerSubject)
	}

	created, err := d.registry.Create(ctx, domain.JobKindExamGeneration, domain.JobRequest{
		Exam: &req,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job record: %w", err)
	}

	d.launch(created.ID, func(runCtx context.Context, logger *slog.Logger) {
		d.runExamGeneration(runCtx, created.ID, req, logger)
	})
	return created.ID, nil
}

// SubmitPDFExtraction validates the request, creates a queued job, and
// schedules background execution. The dispatcher takes ownership of the
// uploaded temp files and removes them on every exit path.
func (d *Dispatcher) SubmitPDFExtraction(
	ctx context.Context,
	req domain.PDFExtractionRequest,
) (uuid.UUID, error) {
	if req.ExamName == "" || req.Year == "" || req.Subject == "" {
		removeUploads(req, d.logger)
		return uuid.Nil, fmt.Errorf("%w: exam_name, year, and subject are required", ErrInvalidRequest)
	}
	if err := validateUpload(req.PDFPath); err != nil {
		removeUploads(req, d.logger)
		return uuid.Nil, err
	}

	created, err := d.registry.Create(ctx, domain.JobKindPDFExtraction, domain.JobRequest{
		PDF: &req,
	})
	if err != nil {
		removeUploads(req, d.logger)
		return uuid.Nil, fmt.Errorf("failed to create job record: %w", err)
	}

	d.launch(created.ID, func(runCtx context.Context, logger *slog.Logger) {
		d.runPDFExtraction(runCtx, created.ID, req, logger)
	})
	return created.ID, nil
}

// Shutdown waits for in-flight background runs to finish or ctx to
// expire. Each run is already bounded by the execution ceiling.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown interrupted: %w", ctx.Err())
	}
}

// launch starts the background goroutine for a job exactly once. Job IDs
// are freshly minted, so a second launch for the same ID means an
// internal retry; it is dropped to preserve at-most-once dispatch.
func (d *Dispatcher) launch(id uuid.UUID, run func(ctx context.Context, logger *slog.Logger)) {
	d.mu.Lock()
	if _, dup := d.inFlight[id]; dup {
		d.mu.Unlock()
		d.logger.Warn("duplicate dispatch suppressed", "job_id", id)
		return
	}
	d.inFlight[id] = struct{}{}
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			d.mu.Lock()
			delete(d.inFlight, id)
			d.mu.Unlock()
		}()

		// The run gets its own context: the submitter's request context
		// ends at the 202 response and must not cancel background work.
		runCtx, cancel := context.WithTimeout(context.Background(), d.config.ExecutionCeiling)
		defer cancel()

		run(runCtx, d.logger.With("job_id", id))
	}()
}

func (d *Dispatcher) runExamGeneration(
	ctx context.Context,
	id uuid.UUID,
	req domain.ExamGenerationRequest,
	logger *slog.Logger,
) {
	logger = logger.With("job_kind", domain.JobKindExamGeneration, "exam", req.ExamName)
	logger.Info("starting exam generation job")

	if !d.advance(id, 10, "calling content generation service", logger) {
		return
	}

	subjects, _ := domain.SubjectsFor(req.ExamName)
	set, err := d.generator.GenerateExamSet(ctx, req.ExamName, subjects, req.QuestionsPerSubject)
	if err != nil {
		d.fail(id, classifyGenerationError(ctx, err), logger)
		return
	}

	if !d.advance(id, 60, "encoding question set artifacts", logger) {
		return
	}

	base := fmt.Sprintf("%s_questions_%s", slugify(req.ExamName), shortID(id))
	filenames, err := d.writeQuestionSetArtifacts(ctx, base, req.ExamName, set.Questions)
	if err != nil {
		d.fail(id, classifyStorageError(ctx, err), logger)
		return
	}

	d.complete(id, domain.JobResult{
		TotalQuestions:    len(set.Questions),
		ArtifactFilenames: filenames,
		Warnings:          set.Warnings,
	}, logger)
}

func (d *Dispatcher) runPDFExtraction(
	ctx context.Context,
	id uuid.UUID,
	req domain.PDFExtractionRequest,
	logger *slog.Logger,
) {
	// Uploaded source files are temporary inputs; they go away whatever
	// the outcome. Removal failure is logged and does not affect the job.
	defer removeUploads(req, logger)

	logger = logger.With("job_kind", domain.JobKindPDFExtraction,
		"exam", req.ExamName, "subject", req.Subject)
	logger.Info("starting pdf extraction job")

	if !d.advance(id, 10, "extracting questions from uploaded PDF", logger) {
		return
	}

	result, err := d.generator.ExtractFromPDF(ctx, generation.ExtractionRequest{
		Exam:          req.ExamName,
		Year:          req.Year,
		Subject:       req.Subject,
		PDFPath:       req.PDFPath,
		AnswerKeyPath: req.AnswerKeyPath,
	})
	if err != nil {
		d.fail(id, classifyGenerationError(ctx, err), logger)
		return
	}

	if !d.advance(id, 60, "encoding extraction artifacts", logger) {
		return
	}

	base := fmt.Sprintf("%s_%s_%s_%s",
		slugify(req.ExamName), slugify(req.Year), slugify(req.Subject), shortID(id))

	var written []string
	var csvBuf bytes.Buffer
	if err := generation.EncodeCSV(&csvBuf, req.ExamName, result.Questions); err != nil {
		d.fail(id, classifyStorageError(ctx, err), logger)
		return
	}
	if _, err := d.artifacts.Put(ctx, base+".csv", &csvBuf); err != nil {
		d.fail(id, classifyStorageError(ctx, err), logger)
		return
	}
	written = append(written, base+".csv")

	report := generation.BuildExtractionReport(generation.ExtractionRequest{
		Exam:          req.ExamName,
		Year:          req.Year,
		Subject:       req.Subject,
		AnswerKeyPath: req.AnswerKeyPath,
	}, result)
	if _, err := d.artifacts.Put(ctx, base+"_report.txt", strings.NewReader(report)); err != nil {
		d.discardArtifacts(written, logger)
		d.fail(id, classifyStorageError(ctx, err), logger)
		return
	}
	written = append(written, base+"_report.txt")

	d.complete(id, domain.JobResult{
		TotalQuestions:    len(result.Questions),
		ArtifactFilenames: written,
		Warnings:          result.Warnings,
	}, logger)
}

// writeQuestionSetArtifacts stores the CSV and XLSX renditions of a
// generated question set and returns their filenames. On partial failure
// the already-written files are removed so the failed job leaves nothing
// behind.
func (d *Dispatcher) writeQuestionSetArtifacts(
	ctx context.Context,
	base string,
	exam string,
	questions []generation.Question,
) ([]string, error) {
	var csvBuf bytes.Buffer
	if err := generation.EncodeCSV(&csvBuf, exam, questions); err != nil {
		return nil, err
	}
	if _, err := d.artifacts.Put(ctx, base+".csv", &csvBuf); err != nil {
		return nil, err
	}
	written := []string{base + ".csv"}

	workbook, err := generation.EncodeXLSX(exam, questions)
	if err != nil {
		d.discardArtifacts(written, d.logger)
		return nil, err
	}
	if _, err := d.artifacts.Put(ctx, base+".xlsx", bytes.NewReader(workbook)); err != nil {
		d.discardArtifacts(written, d.logger)
		return nil, err
	}
	return append(written, base+".xlsx"), nil
}

// advance publishes a processing progress update. A false return means
// the transition was rejected and the run must stop.
func (d *Dispatcher) advance(id uuid.UUID, progress int, message string, logger *slog.Logger) bool {
	_, err := d.registry.Transition(context.Background(), id, job.TransitionParams{
		State:    domain.JobStateProcessing,
		Progress: progress,
		Message:  message,
	})
	if err != nil {
		logger.Error("failed to advance job", "progress", progress, "error", err)
		return false
	}
	return true
}

func (d *Dispatcher) complete(id uuid.UUID, result domain.JobResult, logger *slog.Logger) {
	_, err := d.registry.Transition(context.Background(), id, job.TransitionParams{
		State:    domain.JobStateCompleted,
		Progress: 100,
		Message:  "generation complete",
		Result:   &result,
	})
	if err != nil {
		logger.Error("failed to complete job", "error", err)
		return
	}
	logger.Info("job completed",
		"total_questions", result.TotalQuestions,
		"artifact_count", len(result.ArtifactFilenames))
}

func (d *Dispatcher) fail(id uuid.UUID, jobErr domain.JobError, logger *slog.Logger) {
	_, err := d.registry.Transition(context.Background(), id, job.TransitionParams{
		State:    domain.JobStateFailed,
		Progress: 0,
		Message:  "generation failed",
		Error:    &jobErr,
	})
	if err != nil {
		logger.Error("failed to record job failure", "error", err)
		return
	}
	logger.Warn("job failed", "error_kind", jobErr.Kind, "error_message", jobErr.Message)
}

// discardArtifacts best-effort removes artifacts written before a later
// step failed, so failed jobs do not leave half a result set behind.
func (d *Dispatcher) discardArtifacts(filenames []string, logger *slog.Logger) {
	for _, name := range filenames {
		if err := d.artifacts.Delete(context.Background(), name); err != nil {
			logger.Error("failed to discard partial artifact", "filename", name, "error", err)
		}
	}
}

// classifyGenerationError maps a generator failure onto the job error
// taxonomy. Ceiling expiry wins over whatever error the aborted call
// reported.
func classifyGenerationError(ctx context.Context, err error) domain.JobError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.JobError{
			Kind:    domain.ErrorKindTimeout,
			Message: "background execution exceeded its ceiling",
		}
	}
	return domain.JobError{
		Kind:    domain.ErrorKindExternalService,
		Message: err.Error(),
	}
}

// classifyStorageError maps an artifact encoding or write failure onto
// the job error taxonomy. As above, ceiling expiry wins: a write aborted
// by the run deadline is a timeout, not a storage fault.
func classifyStorageError(ctx context.Context, err error) domain.JobError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.JobError{
			Kind:    domain.ErrorKindTimeout,
			Message: "background execution exceeded its ceiling",
		}
	}
	return domain.JobError{
		Kind:    domain.ErrorKindStorage,
		Message: err.Error(),
	}
}

func validateUpload(path string) error {
	if path == "" {
		return fmt.Errorf("%w: pdf_file is required", ErrInvalidRequest)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: uploaded PDF is not readable", ErrInvalidRequest)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%w: uploaded PDF is empty", ErrInvalidRequest)
	}
	return nil
}

func removeUploads(req domain.PDFExtractionRequest, logger *slog.Logger) {
	for _, path := range []string{req.PDFPath, req.AnswerKeyPath} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove uploaded temp file", "path", path, "error", err)
		}
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases and collapses a value into a filename-safe token.
// Artifact names are derived from these tokens plus the job ID, never
// from raw user input.
func slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "_")
	return strings.Trim(slug, "_")
}

func shortID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:12]
}
