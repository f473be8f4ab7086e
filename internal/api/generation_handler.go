package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/examhive/examhive-api/internal/api/shared"
	"github.com/examhive/examhive-api/internal/dispatch"
	"github.com/examhive/examhive-api/internal/domain"
)

// maxUploadBytes bounds the in-memory portion of multipart parsing.
// Larger uploads spill to disk via the multipart reader.
const maxUploadBytes = 64 << 20

// Dispatcher is the submission surface the generation handler needs.
type Dispatcher interface {
	SubmitExamGeneration(ctx context.Context, req domain.ExamGenerationRequest) (uuid.UUID, error)
	SubmitPDFExtraction(ctx context.Context, req domain.PDFExtractionRequest) (uuid.UUID, error)
}

// GenerationHandler handles job submission requests.
type GenerationHandler struct {
	dispatcher Dispatcher
	uploadDir  string
}

// NewGenerationHandler creates a GenerationHandler. uploadDir is where
// uploaded PDFs are staged; empty means the OS temp directory.
func NewGenerationHandler(dispatcher Dispatcher, uploadDir string) *GenerationHandler {
	return &GenerationHandler{
		dispatcher: dispatcher,
		uploadDir:  uploadDir,
	}
}

// GenerateExam handles POST /generate-exam requests. Accepted
// submissions return 202 immediately; progress is observable only
// through the status endpoint.
func (h *GenerationHandler) GenerateExam(w http.ResponseWriter, r *http.Request) {
	var req GenerateExamRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest,
			"exam_name and questions_per_subject are required")
		return
	}

	jobID, err := h.dispatcher.SubmitExamGeneration(r.Context(), domain.ExamGenerationRequest{
		ExamName:            req.ExamName,
		QuestionsPerSubject: req.QuestionsPerSubject,
	})
	if err != nil {
		if errors.Is(err, dispatch.ErrInvalidRequest) {
			shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(err))
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			"Failed to submit generation job", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAcceptedResponse{
		JobID:   jobID.String(),
		Status:  string(domain.JobStateQueued),
		Message: "Exam generation started. Poll the job status endpoint for progress.",
	})
}

// PDFToCSV handles POST /pdf-to-csv requests. The uploaded files are
// staged into temp files whose ownership passes to the dispatcher; it
// removes them whatever the job outcome.
func (h *GenerationHandler) PDFToCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid multipart request")
		return
	}

	req := domain.PDFExtractionRequest{
		ExamName: r.FormValue("exam_name"),
		Year:     r.FormValue("year"),
		Subject:  r.FormValue("subject"),
	}

	pdfPath, err := h.stageUpload(r, "pdf_file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "pdf_file is required")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to store uploaded file", err)
		return
	}
	req.PDFPath = pdfPath

	keyPath, err := h.stageUpload(r, "answer_key_file")
	switch {
	case err == nil:
		req.AnswerKeyPath = keyPath
	case errors.Is(err, http.ErrMissingFile):
		// The answer key is optional.
	default:
		removeStaged(pdfPath)
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to store uploaded file", err)
		return
	}

	jobID, err := h.dispatcher.SubmitPDFExtraction(r.Context(), req)
	if err != nil {
		// The dispatcher removed the staged files on rejection.
		if errors.Is(err, dispatch.ErrInvalidRequest) {
			shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(err))
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err),
			"Failed to submit extraction job", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, JobAcceptedResponse{
		JobID:   jobID.String(),
		Status:  string(domain.JobStateQueued),
		Message: "PDF extraction started. Poll the job status endpoint for progress.",
	})
}

// stageUpload copies one multipart file field into a temp file and
// returns its path. Returns http.ErrMissingFile if the field is absent.
func (h *GenerationHandler) stageUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer closeUpload(file, header.Filename)

	tmp, err := os.CreateTemp(h.uploadDir, "examhive_upload_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		name := tmp.Name()
		_ = tmp.Close()
		removeStaged(name)
		return "", fmt.Errorf("failed to write uploaded file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		removeStaged(tmp.Name())
		return "", fmt.Errorf("failed to close uploaded file: %w", err)
	}
	return tmp.Name(), nil
}

func closeUpload(file multipart.File, name string) {
	if err := file.Close(); err != nil {
		slog.Warn("failed to close multipart file", "filename", name, "error", err)
	}
}

func removeStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove staged upload", "path", path, "error", err)
	}
}
