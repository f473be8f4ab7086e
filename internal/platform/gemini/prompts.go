package gemini

import (
	"fmt"
	"strings"

	"github.com/examhive/examhive-api/internal/generation"
)

// payloadContract is appended to every prompt so both workflows share a
// single response schema that parseQuestionPayload understands.
const payloadContract = `Respond with JSON only, matching exactly:
{
  "questions": [
    {
      "subject": "<subject name>",
      "text": "<question text>",
      "options": ["<option A>", "<option B>", "<option C>", "<option D>"],
      "correct_answer": <0-based index of the correct option>,
      "explanation": "<one or two sentence explanation>"
    }
  ],
  "warnings": ["<non-fatal issues, empty array if none>"]
}`

func buildExamPrompt(exam string, subjects []string, questionsPerSubject int) (string, error) {
	if exam == "" || len(subjects) == 0 || questionsPerSubject <= 0 {
		return "", fmt.Errorf("exam prompt requires exam, subjects, and a positive count")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert question-paper author for the %s examination.\n", exam)
	fmt.Fprintf(&b, "Write exactly %d original multiple-choice questions for each of these subjects: %s.\n",
		questionsPerSubject, strings.Join(subjects, ", "))
	b.WriteString("Each question has exactly four options and one correct answer. ")
	b.WriteString("Match the difficulty and style of recent official papers.\n\n")
	b.WriteString(payloadContract)
	return b.String(), nil
}

func buildExtractionPrompt(req generation.ExtractionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The attached PDF is a %s %s question paper for %s.\n",
		req.Exam, req.Year, req.Subject)
	b.WriteString("Extract every multiple-choice question with its options. ")
	if req.AnswerKeyPath != "" {
		b.WriteString("A second PDF with the official answer key is attached; use it to set correct_answer. ")
	} else {
		b.WriteString("Determine correct_answer yourself and note low-confidence answers as warnings. ")
	}
	b.WriteString("Record any question you cannot extract cleanly as a warning instead of guessing.\n\n")
	b.WriteString(payloadContract)
	return b.String()
}
