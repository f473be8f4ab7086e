package generation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// csvHeader is the column layout of question-set CSV artifacts. Options
// beyond four are dropped; missing options are left blank.
var csvHeader = []string{
	"exam", "subject", "question",
	"option_a", "option_b", "option_c", "option_d",
	"correct_answer", "explanation",
}

// optionLetters maps a 0-based correct-answer index to its column letter.
var optionLetters = [4]string{"A", "B", "C", "D"}

// EncodeCSV writes the question set as a CSV artifact.
func EncodeCSV(w io.Writer, exam string, questions []Question) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i, q := range questions {
		if err := cw.Write(questionRow(exam, q)); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// EncodeXLSX renders the question set as an XLSX workbook for the admin
// file browser and returns the serialized bytes.
func EncodeXLSX(exam string, questions []Question) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Questions"

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range csvHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to style header cell: %w", err)
		}
	}

	for i, q := range questions {
		row := questionRow(exam, q)
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// BuildExtractionReport renders the human-readable report artifact for a
// PDF extraction job. When the service supplied its own report text it is
// included verbatim ahead of the summary.
func BuildExtractionReport(req ExtractionRequest, result *ExtractionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Extraction report: %s %s, %s\n", req.Exam, req.Year, req.Subject)
	fmt.Fprintf(&b, "Questions extracted: %d\n", len(result.Questions))
	if req.AnswerKeyPath != "" {
		b.WriteString("Answer key: provided\n")
	} else {
		b.WriteString("Answer key: not provided\n")
	}

	if result.Report != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(result.Report))
		b.WriteString("\n")
	}

	if len(result.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}

	return b.String()
}

func questionRow(exam string, q Question) []string {
	row := []string{exam, q.Subject, q.Text, "", "", "", "", "", q.Explanation}
	for i := 0; i < len(q.Options) && i < 4; i++ {
		row[3+i] = q.Options[i]
	}
	if q.CorrectAnswer >= 0 && q.CorrectAnswer < 4 {
		row[7] = optionLetters[q.CorrectAnswer]
	}
	return row
}
