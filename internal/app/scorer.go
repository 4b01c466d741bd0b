package app

import (
	"time"

	"cf-quiz-service/internal/domain"
)

// remark thresholds are expressed against a 15-question quiz and scaled for other lengths.
var remarks = []struct {
	min  int
	text string
}{
	{12, "Excellent! You nailed it."},
	{8, "Good job! Keep practicing."},
	{5, "Fair effort. Review the topics you missed."},
}

const needsImprovement = "Needs improvement. Don't give up!"

// Remark picks the performance remark for correct answers out of total.
func Remark(correct, total int) string {
	if total <= 0 {
		return needsImprovement
	}
	for _, r := range remarks {
		if correct*domain.QuestionCount >= r.min*total {
			return r.text
		}
	}
	return needsImprovement
}

// ScorePercent rounds 100*correct/total half-up.
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

func isCorrect(q domain.Question) bool {
	if q.SelectedIndex == nil {
		return false
	}
	idx := *q.SelectedIndex
	if idx < 0 || idx >= len(q.Choices) {
		return false
	}
	return SameAnswer(q.Choices[idx], q.CorrectAnswer)
}

// buildAttempt scores questions and assembles the immutable record.
func buildAttempt(questions []domain.Question, elapsed []time.Duration, reason string, completedAt time.Time) (domain.Attempt, error) {
	if len(questions) == 0 {
		return domain.Attempt{}, domain.ErrNoQuestions
	}
	attempt := domain.Attempt{
		CompletedAt: completedAt.UTC().Truncate(time.Millisecond),
		TotalCount:  len(questions),
		Items:       make([]domain.ReportItem, 0, len(questions)),
	}
	if reason != "" {
		r := reason
		attempt.SubmissionReason = &r
	}
	for i, q := range questions {
		if isCorrect(q) {
			attempt.CorrectCount++
		}
		item := domain.ReportItem{
			PromptText:    q.Prompt,
			CorrectAnswer: q.CorrectAnswer,
		}
		if i < len(elapsed) {
			item.TimeSpentMs = elapsed[i].Milliseconds()
		}
		if q.SelectedIndex != nil && *q.SelectedIndex >= 0 && *q.SelectedIndex < len(q.Choices) {
			answer := q.Choices[*q.SelectedIndex]
			item.UserAnswer = &answer
		}
		attempt.Items = append(attempt.Items, item)
	}
	attempt.ScorePercent = ScorePercent(attempt.CorrectCount, attempt.TotalCount)
	return attempt, nil
}
