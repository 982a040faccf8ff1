package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/medquiz-pro/session-service/internal/engine"
	"github.com/medquiz-pro/session-service/internal/models"
	"github.com/medquiz-pro/session-service/internal/utils"
)

func TestExportResult(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeQuick)
	sessionID := response.Session.SessionID

	_, err := f.service.SubmitAnswer(context.Background(), sessionID, &SubmitAnswerRequest{
		QuestionIndex: 0,
		OptionIndex:   1,
	})
	require.NoError(t, err)

	_, err = f.service.Complete(context.Background(), sessionID, 60)
	require.NoError(t, err)

	export := NewExportService(f.service, utils.NewDefaultSlogLogger())
	payload, filename, err := export.ExportResult(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "quiz-result-"+sessionID+".xlsx", filename)
	require.NotEmpty(t, payload)

	workbook, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer workbook.Close()

	assert.Contains(t, workbook.GetSheetList(), "Summary")
	assert.Contains(t, workbook.GetSheetList(), "Questions")

	cell, err := workbook.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, sessionID, cell)

	header, err := workbook.GetCellValue("Questions", "B1")
	require.NoError(t, err)
	assert.Equal(t, "Question ID", header)

	// One header row plus one row per question.
	rows, err := workbook.GetRows("Questions")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestExportResult_RequiresCompletedSession(t *testing.T) {
	f := newServiceFixture(t)
	response := f.start(t, models.ModeQuick)

	export := NewExportService(f.service, utils.NewDefaultSlogLogger())
	_, _, err := export.ExportResult(context.Background(), response.Session.SessionID)
	assert.ErrorIs(t, err, engine.ErrResultNotAvailable)
}
