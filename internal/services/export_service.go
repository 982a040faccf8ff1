package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/medquiz-pro/session-service/internal/models"
)

// ExportService renders a completed result as a downloadable XLSX workbook:
// one summary sheet, one per-question breakdown sheet.
type ExportService interface {
	ExportResult(ctx context.Context, sessionID string) ([]byte, string, error)
}

type exportService struct {
	sessions SessionService
	logger   *slog.Logger
}

func NewExportService(sessions SessionService, logger *slog.Logger) ExportService {
	return &exportService{
		sessions: sessions,
		logger:   logger,
	}
}

const (
	summarySheet   = "Summary"
	breakdownSheet = "Questions"
)

func (s *exportService) ExportResult(ctx context.Context, sessionID string) ([]byte, string, error) {
	result, err := s.sessions.Result(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			s.logger.Warn("Failed to close workbook", "error", closeErr)
		}
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, "", fmt.Errorf("failed to rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(breakdownSheet); err != nil {
		return nil, "", fmt.Errorf("failed to create breakdown sheet: %w", err)
	}

	if err := s.writeSummary(f, result); err != nil {
		return nil, "", err
	}
	if err := s.writeBreakdown(f, result); err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("quiz-result-%s.xlsx", result.SessionID)
	s.logger.Info("Result exported",
		"session_id", sessionID,
		"filename", filename,
		"bytes", buf.Len())

	return buf.Bytes(), filename, nil
}

func (s *exportService) writeSummary(f *excelize.File, result *models.QuizResult) error {
	rows := [][]interface{}{
		{"Session ID", result.SessionID},
		{"User ID", result.UserID},
		{"Completed At", result.CompletedAt.Format("2006-01-02 15:04:05")},
		{},
		{"Score", fmt.Sprintf("%d%%", result.Score)},
		{"Correct Answers", result.CorrectAnswers},
		{"Incorrect Answers", result.IncorrectAnswers},
		{"Total Questions", result.TotalQuestions},
		{"Accuracy", fmt.Sprintf("%.2f%%", result.Accuracy)},
		{"Completion Rate", fmt.Sprintf("%d%%", result.CompletionRate)},
		{"Consistency", fmt.Sprintf("%.2f", result.Consistency)},
		{"Time Spent (s)", result.TimeSpent},
	}

	rows = append(rows, []interface{}{}, []interface{}{"Category", "Attempted", "Correct", "Accuracy"})
	for _, cs := range result.CategoryBreakdown {
		rows = append(rows, []interface{}{cs.Name, cs.Total, cs.Correct, fmt.Sprintf("%.2f%%", cs.Accuracy)})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Difficulty", "Attempted", "Correct", "Accuracy"})
	for _, ds := range result.DifficultyBreakdown {
		rows = append(rows, []interface{}{ds.Name, ds.Total, ds.Correct, fmt.Sprintf("%.2f%%", ds.Accuracy)})
	}

	rows = append(rows, []interface{}{},
		[]interface{}{"Strength Areas", joinOrDash(result.StrengthAreas)},
		[]interface{}{"Improvement Areas", joinOrDash(result.ImprovementAreas)})

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to build cell name: %w", err)
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *exportService) writeBreakdown(f *excelize.File, result *models.QuizResult) error {
	header := []interface{}{"#", "Question ID", "Category", "Difficulty", "Selected", "Correct Option", "Correct"}
	if err := f.SetSheetRow(breakdownSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write breakdown header: %w", err)
	}

	for i, qr := range result.QuestionBreakdown {
		selected := "-"
		if qr.SelectedIndex != nil {
			selected = fmt.Sprintf("%d", *qr.SelectedIndex)
		}
		verdict := "no"
		if qr.IsCorrect {
			verdict = "yes"
		}

		row := []interface{}{
			i + 1,
			qr.QuestionID,
			qr.Category,
			string(qr.Difficulty),
			selected,
			qr.CorrectIndex,
			verdict,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to build cell name: %w", err)
		}
		if err := f.SetSheetRow(breakdownSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write breakdown row %d: %w", i+1, err)
		}
	}

	return nil
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	joined := values[0]
	for _, v := range values[1:] {
		joined += ", " + v
	}
	return joined
}
