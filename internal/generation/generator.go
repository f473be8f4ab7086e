package generation

import "context"

// Question is a single generated or extracted multiple-choice question.
type Question struct {
	Subject       string   `json:"subject"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"` // 0-based index into Options
	Explanation   string   `json:"explanation,omitempty"`
}

// QuestionSet is the payload of a successful exam generation call.
type QuestionSet struct {
	Exam      string     `json:"exam"`
	Questions []Question `json:"questions"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// ExtractionRequest describes a PDF extraction call. Paths point at
// temporary copies of the uploaded files owned by the dispatcher.
type ExtractionRequest struct {
	Exam          string
	Year          string
	Subject       string
	PDFPath       string
	AnswerKeyPath string // optional
}

// ExtractionResult is the payload of a successful PDF extraction call.
// Warnings carry non-fatal extraction issues (skipped questions, missing
// answers); Report is a human-readable summary of the run.
type ExtractionResult struct {
	Questions []Question `json:"questions"`
	Warnings  []string   `json:"warnings,omitempty"`
	Report    string     `json:"report,omitempty"`
}

// Generator is the interface the dispatcher calls for content generation.
// Implementations are expected to block for the duration of the external
// call and honor ctx cancellation; the dispatcher applies the execution
// ceiling through the context it passes in.
// Version: 1.0
type Generator interface {
	// GenerateExamSet produces questionsPerSubject questions for each of
	// the given subjects.
	GenerateExamSet(ctx context.Context, exam string, subjects []string, questionsPerSubject int) (*QuestionSet, error)

	// ExtractFromPDF extracts structured questions from an uploaded
	// question paper, optionally using an answer key.
	ExtractFromPDF(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error)

	// Ping checks liveness of the underlying service. Used by /health.
	Ping(ctx context.Context) error
}
