// Package report exports quiz results as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	ResultsSheet = "Results"
	SummarySheet = "Summary"

	// ContentType is the MIME type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var resultsHeader = []any{"#", "ID", "Topic", "Question", "Chosen", "Correct option", "Correct?"}

// WriteXLSX writes a workbook with one Results row per question and a
// Summary sheet.
func WriteXLSX(w io.Writer, def quiz.Definition, snap quiz.Snapshot, sum quiz.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ResultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	if err := writeResults(f, def, snap); err != nil {
		return err
	}
	if err := writeSummary(f, def, snap, sum); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeResults(f *excelize.File, def quiz.Definition, snap quiz.Snapshot) error {
	if err := f.SetSheetRow(ResultsSheet, "A1", &resultsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(ResultsSheet, "A1", "G1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, q := range def.Questions {
		chosen, correct := "", "no"
		if a, ok := snap.Answers[q.ID]; ok {
			chosen = optionText(q, a)
			if a == q.CorrectIndex {
				correct = "yes"
			}
		}

		row := []any{i + 1, q.ID, q.Topic, q.Text, chosen, optionText(q, q.CorrectIndex), correct}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(ResultsSheet, "D", "D", 60); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, def quiz.Definition, snap quiz.Snapshot, sum quiz.Summary) error {
	passed := "no"
	if sum.Passed {
		passed = "yes"
	}

	rows := [][]any{
		{"Title", def.Title},
		{"Correct", sum.Correct},
		{"Total", sum.Total},
		{"Percent", sum.Percent},
		{"Passed", passed},
		{"Pass threshold", def.PassThreshold},
		{"Remaining seconds", snap.RemainingSec},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(SummarySheet, "A"+strconv.Itoa(i+1), &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	pct, err := f.NewStyle(&excelize.Style{NumFmt: 10})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetCellStyle(SummarySheet, "B4", "B4", pct); err != nil {
		return fmt.Errorf("style percent: %w", err)
	}
	return nil
}

func optionText(q quiz.Question, i int) string {
	if i >= 0 && i < len(q.Options) {
		return q.Options[i]
	}
	return fmt.Sprintf("option %d", i+1)
}
