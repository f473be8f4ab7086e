package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobKind identifies which generation workflow a job runs.
type JobKind string

const (
	// JobKindExamGeneration produces an AI-authored question set for an exam.
	JobKindExamGeneration JobKind = "exam_generation"

	// JobKindPDFExtraction extracts structured questions from an uploaded PDF.
	JobKindPDFExtraction JobKind = "pdf_extraction"
)

// JobState represents the lifecycle state of a job.
//
// States only move forward: queued -> processing -> {completed, failed}.
// A processing job may also transition to processing again to publish a
// progress update. Terminal states accept no further transitions.
type JobState string

const (
	JobStateQueued     JobState = "queued"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// CanTransitionTo reports whether a job in state s may move to next.
// The transition table is the single source of truth for job ordering;
// every mutation site must consult it rather than encode its own rules.
func (s JobState) CanTransitionTo(next JobState) bool {
	switch s {
	case JobStateQueued:
		return next == JobStateProcessing || next == JobStateFailed
	case JobStateProcessing:
		// processing -> processing carries a progress update.
		return next == JobStateProcessing || next == JobStateCompleted || next == JobStateFailed
	default:
		return false
	}
}

// ErrorKind classifies why a job failed. It is stored on the job record
// and surfaced verbatim through the status endpoint.
type ErrorKind string

const (
	// ErrorKindExternalService covers failures of the content generation
	// service: unreachable, error response, or unusable payload.
	ErrorKindExternalService ErrorKind = "external_service"

	// ErrorKindTimeout means the background execution exceeded its ceiling.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindStorage means generated content could not be written to the
	// artifact store.
	ErrorKindStorage ErrorKind = "storage"

	// ErrorKindCancelled is reserved for cooperative cancellation. No HTTP
	// surface triggers it today; the transition table already permits it.
	ErrorKindCancelled ErrorKind = "cancelled"
)

// ExamGenerationRequest is the validated input of an exam generation job.
type ExamGenerationRequest struct {
	ExamName            string `json:"exam_name"`
	QuestionsPerSubject int    `json:"questions_per_subject"`
}

// PDFExtractionRequest is the validated input of a PDF extraction job.
// The paths point at temporary copies of the uploaded files; they are
// consumed and removed by the dispatcher, so re-reads of the job record
// must not assume the files still exist.
type PDFExtractionRequest struct {
	ExamName      string `json:"exam_name"`
	Year          string `json:"year"`
	Subject       string `json:"subject"`
	PDFPath       string `json:"pdf_path"`
	AnswerKeyPath string `json:"answer_key_path,omitempty"`
}

// JobRequest is the immutable copy of the validated submission captured
// at job creation. Exactly one field is set, matching the job's kind.
type JobRequest struct {
	Exam *ExamGenerationRequest `json:"exam,omitempty"`
	PDF  *PDFExtractionRequest  `json:"pdf,omitempty"`
}

// JobResult holds the outcome of a completed job. It references produced
// artifacts by filename; the bytes live in the artifact store.
type JobResult struct {
	TotalQuestions    int      `json:"total_questions"`
	ArtifactFilenames []string `json:"artifact_filenames"`
	Warnings          []string `json:"warnings,omitempty"`
}

// JobError holds the classified failure of a failed job.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Job is the central entity of the orchestration layer. The state field
// is the only externally observable truth; progress and message are
// advisory. Once terminal, the record is immutable except for expiry.
type Job struct {
	ID        uuid.UUID
	Kind      JobKind
	State     JobState
	Progress  int
	Message   string
	Request   JobRequest
	Result    *JobResult
	Error     *JobError
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the job so registry readers can never
// observe a partially applied transition through shared slices.
func (j Job) Clone() Job {
	out := j
	if j.Result != nil {
		r := *j.Result
		r.ArtifactFilenames = append([]string(nil), j.Result.ArtifactFilenames...)
		r.Warnings = append([]string(nil), j.Result.Warnings...)
		out.Result = &r
	}
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	if j.Request.Exam != nil {
		req := *j.Request.Exam
		out.Request.Exam = &req
	}
	if j.Request.PDF != nil {
		req := *j.Request.PDF
		out.Request.PDF = &req
	}
	return out
}
