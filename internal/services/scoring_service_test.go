package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medquiz-pro/session-service/internal/models"
)

func intPtr(v int) *int {
	return &v
}

func question(id, category string, difficulty models.DifficultyLevel, correct int) models.Question {
	return models.Question{
		ID:            id,
		Text:          "Question " + id,
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: correct,
		Category:      category,
		Difficulty:    difficulty,
	}
}

func sessionWith(answers []*int) *models.QuizSession {
	questionIDs := make([]string, len(answers))
	for i := range questionIDs {
		questionIDs[i] = "q"
	}
	return &models.QuizSession{
		SessionID: "s-1",
		UserID:    "user-1",
		Questions: questionIDs,
		Answers:   answers,
		TimeSpent: 120,
		Status:    models.SessionStatusCompleted,
	}
}

func TestScore_TwoQuestionsOneCorrect(t *testing.T) {
	svc := NewScoringService()

	questions := []models.Question{
		question("q-1", "Cardiology", models.DifficultyEasy, 1),
		question("q-2", "Cardiology", models.DifficultyEasy, 1),
	}
	result := svc.Score(sessionWith([]*int{intPtr(1), intPtr(0)}), questions)

	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 1, result.CorrectAnswers)
	assert.Equal(t, 1, result.IncorrectAnswers)
	assert.Equal(t, 2, result.TotalQuestions)
	assert.Equal(t, 50.0, result.Accuracy)
	assert.Equal(t, 100, result.CompletionRate)
	assert.Equal(t, 100.0, result.Consistency)
	assert.Equal(t, 120, result.TimeSpent)
}

func TestScore_UnansweredCountAsIncorrectForScoreOnly(t *testing.T) {
	svc := NewScoringService()

	questions := []models.Question{
		question("q-1", "Cardiology", models.DifficultyEasy, 1),
		question("q-2", "Cardiology", models.DifficultyEasy, 1),
		question("q-3", "Cardiology", models.DifficultyEasy, 1),
		question("q-4", "Cardiology", models.DifficultyEasy, 1),
	}
	// Two answered correctly, two never attempted.
	result := svc.Score(sessionWith([]*int{intPtr(1), intPtr(1), nil, nil}), questions)

	assert.Equal(t, 50, result.Score)
	assert.Equal(t, 100.0, result.Accuracy)
	assert.Equal(t, 50, result.CompletionRate)

	// Breakdown denominators exclude unattempted questions.
	require.Len(t, result.CategoryBreakdown, 1)
	assert.Equal(t, 2, result.CategoryBreakdown[0].Total)
	assert.Equal(t, 2, result.CategoryBreakdown[0].Correct)
	assert.Equal(t, 100.0, result.CategoryBreakdown[0].Accuracy)

	// consistency = max(0, 100 - 2*|100 - 50|) = 0
	assert.Equal(t, 0.0, result.Consistency)
}

func TestScore_CompletionRateRounds(t *testing.T) {
	svc := NewScoringService()

	questions := make([]models.Question, 10)
	answers := make([]*int, 10)
	for i := range questions {
		questions[i] = question("q", "Cardiology", models.DifficultyEasy, 1)
		if i < 7 {
			answers[i] = intPtr(1)
		}
	}

	result := svc.Score(sessionWith(answers), questions)
	assert.Equal(t, 70, result.CompletionRate)
	assert.Equal(t, 70, result.Score)
	assert.Equal(t, 100.0, result.Accuracy)
}

func TestScore_StrengthAndImprovementClassification(t *testing.T) {
	svc := NewScoringService()

	questions := []models.Question{
		// 3/4 = 75% -> strength
		question("c-1", "Cardiology", models.DifficultyEasy, 1),
		question("c-2", "Cardiology", models.DifficultyEasy, 1),
		question("c-3", "Cardiology", models.DifficultyEasy, 1),
		question("c-4", "Cardiology", models.DifficultyEasy, 1),
		// 1/4 = 25% -> improvement
		question("n-1", "Neurology", models.DifficultyMedium, 1),
		question("n-2", "Neurology", models.DifficultyMedium, 1),
		question("n-3", "Neurology", models.DifficultyMedium, 1),
		question("n-4", "Neurology", models.DifficultyMedium, 1),
		// 2/4 = 50% -> neither
		question("p-1", "Pharmacology", models.DifficultyHard, 1),
		question("p-2", "Pharmacology", models.DifficultyHard, 1),
		question("p-3", "Pharmacology", models.DifficultyHard, 1),
		question("p-4", "Pharmacology", models.DifficultyHard, 1),
	}
	answers := []*int{
		intPtr(1), intPtr(1), intPtr(1), intPtr(0),
		intPtr(1), intPtr(0), intPtr(0), intPtr(0),
		intPtr(1), intPtr(1), intPtr(0), intPtr(0),
	}

	result := svc.Score(sessionWith(answers), questions)

	assert.Equal(t, []string{"Cardiology"}, result.StrengthAreas)
	assert.Equal(t, []string{"Neurology"}, result.ImprovementAreas)

	require.Len(t, result.DifficultyBreakdown, 3)
	byName := map[string]models.CategoryStats{}
	for _, ds := range result.DifficultyBreakdown {
		byName[ds.Name] = ds
	}
	assert.Equal(t, 75.0, byName["easy"].Accuracy)
	assert.Equal(t, 25.0, byName["medium"].Accuracy)
	assert.Equal(t, 50.0, byName["hard"].Accuracy)
}

func TestScore_NothingAttempted(t *testing.T) {
	svc := NewScoringService()

	questions := []models.Question{
		question("q-1", "Cardiology", models.DifficultyEasy, 1),
		question("q-2", "Cardiology", models.DifficultyEasy, 1),
	}
	result := svc.Score(sessionWith([]*int{nil, nil}), questions)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, 0.0, result.Accuracy)
	assert.Equal(t, 0, result.CompletionRate)
	assert.Equal(t, 100.0, result.Consistency)
	assert.Empty(t, result.CategoryBreakdown)
	assert.Empty(t, result.StrengthAreas)
	assert.Empty(t, result.ImprovementAreas)
	require.Len(t, result.QuestionBreakdown, 2)
	assert.Nil(t, result.QuestionBreakdown[0].SelectedIndex)
	assert.False(t, result.QuestionBreakdown[0].IsCorrect)
}

func TestScore_QuestionBreakdown(t *testing.T) {
	svc := NewScoringService()

	questions := []models.Question{
		question("q-1", "Cardiology", models.DifficultyEasy, 2),
		question("q-2", "Neurology", models.DifficultyHard, 0),
	}
	result := svc.Score(sessionWith([]*int{intPtr(2), intPtr(3)}), questions)

	require.Len(t, result.QuestionBreakdown, 2)

	first := result.QuestionBreakdown[0]
	assert.Equal(t, "q-1", first.QuestionID)
	assert.Equal(t, 2, first.CorrectIndex)
	require.NotNil(t, first.SelectedIndex)
	assert.Equal(t, 2, *first.SelectedIndex)
	assert.True(t, first.IsCorrect)

	second := result.QuestionBreakdown[1]
	assert.Equal(t, 0, second.CorrectIndex)
	assert.Equal(t, 3, *second.SelectedIndex)
	assert.False(t, second.IsCorrect)
}

func TestConsistency(t *testing.T) {
	assert.Equal(t, 100.0, consistency(50, 50))
	assert.Equal(t, 80.0, consistency(60, 50))
	assert.Equal(t, 0.0, consistency(100, 40))
	assert.Equal(t, 0.0, consistency(100, 0))
}
