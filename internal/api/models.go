package api

import (
	"time"

	"github.com/examhive/examhive-api/internal/domain"
)

// GenerateExamRequest is the request body for POST /generate-exam.
type GenerateExamRequest struct {
	ExamName            string `json:"exam_name"             validate:"required"`
	QuestionsPerSubject int    `json:"questions_per_subject" validate:"required"`
}

// JobAcceptedResponse is returned for accepted submissions.
type JobAcceptedResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobResultResponse mirrors the result of a completed job.
type JobResultResponse struct {
	TotalQuestions    int      `json:"total_questions"`
	ArtifactFilenames []string `json:"artifact_filenames"`
	Warnings          []string `json:"warnings,omitempty"`
}

// JobErrorResponse mirrors the classified failure of a failed job.
type JobErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// JobStatusResponse is the response body for GET /job-status/{job_id}.
// Result is set only for completed jobs, Error only for failed ones.
type JobStatusResponse struct {
	JobID     string             `json:"job_id"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"`
	Progress  int                `json:"progress"`
	Message   string             `json:"message,omitempty"`
	Result    *JobResultResponse `json:"result,omitempty"`
	Error     *JobErrorResponse  `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// FileInfoResponse describes one stored artifact.
type FileInfoResponse struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// FileListResponse is the response body for GET /generated-files.
type FileListResponse struct {
	Files []FileInfoResponse `json:"files"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// jobToStatusResponse converts a domain.Job to its API representation.
func jobToStatusResponse(j domain.Job) JobStatusResponse {
	resp := JobStatusResponse{
		JobID:     j.ID.String(),
		Kind:      string(j.Kind),
		Status:    string(j.State),
		Progress:  j.Progress,
		Message:   j.Message,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Result != nil {
		resp.Result = &JobResultResponse{
			TotalQuestions:    j.Result.TotalQuestions,
			ArtifactFilenames: j.Result.ArtifactFilenames,
			Warnings:          j.Result.Warnings,
		}
	}
	if j.Error != nil {
		resp.Error = &JobErrorResponse{
			Kind:    string(j.Error.Kind),
			Message: j.Error.Message,
		}
	}
	return resp
}
