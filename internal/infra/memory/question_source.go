package memory

import (
	"context"
	"sync/atomic"

	"cf-quiz-service/internal/domain"
)

// StaticQuestionSource serves a fixed question set (useful for tests/demos).
// Choices are returned in the given order; no shuffling happens here.
type StaticQuestionSource struct {
	questions []domain.Question
	calls     atomic.Int32
}

func NewStaticQuestionSource(questions []domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{questions: questions}
}

func (s *StaticQuestionSource) Load(_ context.Context) []domain.Question {
	s.calls.Add(1)
	out := make([]domain.Question, len(s.questions))
	for i, q := range s.questions {
		q.IncorrectAnswers = append([]string(nil), q.IncorrectAnswers...)
		q.Choices = append([]string(nil), q.Choices...)
		out[i] = q
	}
	return out
}

// Calls reports how many times Load ran.
func (s *StaticQuestionSource) Calls() int {
	return int(s.calls.Load())
}
