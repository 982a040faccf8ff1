package services

import (
	"math"
	"sort"

	"github.com/medquiz-pro/session-service/internal/models"
)

// Classification thresholds for category accuracy.
const (
	strengthThreshold    = 75.0
	improvementThreshold = 50.0
)

// ScoringService computes the final result for a session. Pure computation
// over (session, questions); no repository or clock access.
type ScoringService interface {
	Score(session *models.QuizSession, questions []models.Question) *models.QuizResult
}

type scoringService struct{}

func NewScoringService() ScoringService {
	return &scoringService{}
}

// Score builds the full QuizResult. Unanswered questions count as incorrect
// for the overall score; category and difficulty breakdowns use
// attempted-only denominators, so accuracy there reflects only questions the
// user actually answered.
func (s *scoringService) Score(session *models.QuizSession, questions []models.Question) *models.QuizResult {
	total := len(questions)
	attempted := 0
	correct := 0

	categories := make(map[string]*models.CategoryStats)
	difficulties := make(map[string]*models.CategoryStats)
	breakdown := make([]models.QuestionResult, 0, total)

	for i, q := range questions {
		var selected *int
		if i < len(session.Answers) {
			selected = session.Answers[i]
		}

		isCorrect := selected != nil && q.IsCorrect(*selected)
		breakdown = append(breakdown, models.QuestionResult{
			QuestionID:    q.ID,
			Category:      q.Category,
			Difficulty:    q.Difficulty,
			SelectedIndex: copyIntPtr(selected),
			CorrectIndex:  q.CorrectAnswer,
			IsCorrect:     isCorrect,
		})

		if selected == nil {
			continue
		}

		attempted++
		if isCorrect {
			correct++
		}
		bumpStats(categories, q.Category, isCorrect)
		bumpStats(difficulties, string(q.Difficulty), isCorrect)
	}

	score := roundPercent(correct, total)
	accuracy := 0.0
	if attempted > 0 {
		accuracy = percent(correct, attempted)
	}

	result := &models.QuizResult{
		SessionID:           session.SessionID,
		UserID:              session.UserID,
		Score:               score,
		CorrectAnswers:      correct,
		IncorrectAnswers:    total - correct,
		TotalQuestions:      total,
		Accuracy:            accuracy,
		CompletionRate:      roundPercent(attempted, total),
		Consistency:         consistency(accuracy, score),
		CategoryBreakdown:   finalizeStats(categories),
		DifficultyBreakdown: finalizeStats(difficulties),
		QuestionBreakdown:   breakdown,
		TimeSpent:           session.TimeSpent,
	}

	for _, cs := range result.CategoryBreakdown {
		if cs.Accuracy >= strengthThreshold {
			result.StrengthAreas = append(result.StrengthAreas, cs.Name)
		} else if cs.Accuracy < improvementThreshold {
			result.ImprovementAreas = append(result.ImprovementAreas, cs.Name)
		}
	}

	return result
}

// consistency penalizes divergence between attempted-only accuracy and the
// overall score, which matters when a session was only partially answered.
func consistency(accuracy float64, score int) float64 {
	value := 100 - 2*math.Abs(accuracy-float64(score))
	return math.Max(0, math.Round(value*100)/100)
}

func bumpStats(stats map[string]*models.CategoryStats, name string, isCorrect bool) {
	if name == "" {
		return
	}
	cs, ok := stats[name]
	if !ok {
		cs = &models.CategoryStats{Name: name}
		stats[name] = cs
	}
	cs.Total++
	if isCorrect {
		cs.Correct++
	}
}

func finalizeStats(stats map[string]*models.CategoryStats) []models.CategoryStats {
	out := make([]models.CategoryStats, 0, len(stats))
	for _, cs := range stats {
		cs.Accuracy = percent(cs.Correct, cs.Total)
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	value := float64(part) / float64(whole) * 100
	return math.Round(value*100) / 100
}

func roundPercent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	clone := *v
	return &clone
}
