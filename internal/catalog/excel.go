package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Excel layout: a "question" column, option columns "option_a".."option_e",
// and a "correct" column naming the winning letter. Blank option cells are
// skipped, so three-option questions mix with five-option ones.
var excelOptionLetters = []string{"a", "b", "c", "d", "e"}

type QuestionImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type QuestionImportReport struct {
	TotalRows     int                      `json:"total_rows"`
	ImportedRows  int                      `json:"imported_rows"`
	FailedRows    int                      `json:"failed_rows"`
	Errors        []QuestionImportRowError `json:"errors"`
	QuestionCount int                      `json:"question_count"`
}

// ImportQuestionsExcel parses a workbook into a question set and replaces
// the quiz content with it. Any row error aborts the import before the
// database is touched.
func (s *Service) ImportQuestionsExcel(ctx context.Context, quizID int64, r io.Reader) (*QuestionImportReport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows found")
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"question", "option_a", "option_b", "correct"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	report := &QuestionImportReport{Errors: make([]QuestionImportRowError, 0)}
	questions := make([]QuestionInput, 0, len(rows)-1)

	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]
		report.TotalRows++

		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		questionText := get("question")
		correctLetter := strings.ToLower(get("correct"))
		if questionText == "" {
			report.FailedRows++
			report.Errors = append(report.Errors, QuestionImportRowError{Row: rowNo, Error: "question text is required"})
			continue
		}

		var opts []OptionInput
		correctSeen := false
		for _, letter := range excelOptionLetters {
			text := get("option_" + letter)
			if text == "" {
				continue
			}
			isCorrect := letter == correctLetter
			if isCorrect {
				correctSeen = true
			}
			opts = append(opts, OptionInput{OptionLetter: letter, OptionText: text, IsCorrect: isCorrect})
		}
		if len(opts) < 2 {
			report.FailedRows++
			report.Errors = append(report.Errors, QuestionImportRowError{Row: rowNo, Error: "at least two options are required"})
			continue
		}
		if !correctSeen {
			report.FailedRows++
			report.Errors = append(report.Errors, QuestionImportRowError{Row: rowNo, Error: fmt.Sprintf("correct letter %q does not match a filled option", correctLetter)})
			continue
		}

		questions = append(questions, QuestionInput{QuestionText: questionText, Options: opts})
	}

	if report.FailedRows > 0 {
		return report, fmt.Errorf("%d of %d rows failed validation", report.FailedRows, report.TotalRows)
	}

	replaced, err := s.ReplaceQuestions(ctx, quizID, questions)
	if err != nil {
		return nil, err
	}

	report.ImportedRows = len(questions)
	report.QuestionCount = len(replaced)
	return report, nil
}

func (s *Service) ExportQuestionsExcel(ctx context.Context, quizID int64) ([]byte, error) {
	questions, err := s.ListQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"question", "option_a", "option_b", "option_c", "option_d", "option_e", "correct"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, q := range questions {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheet, cell, q.QuestionText)

		correct := ""
		for _, opt := range q.Options {
			col := optionColumn(opt.OptionLetter)
			if col == 0 {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, opt.OptionText)
			if opt.IsCorrect {
				correct = opt.OptionLetter
			}
		}

		cell, _ = excelize.CoordinatesToCellName(len(headers), row)
		_ = f.SetCellValue(sheet, cell, correct)
	}
	_ = f.SetColWidth(sheet, "A", "A", 48)
	_ = f.SetColWidth(sheet, "B", "G", 24)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func optionColumn(letter string) int {
	for i, l := range excelOptionLetters {
		if l == strings.ToLower(letter) {
			return i + 2
		}
	}
	return 0
}
