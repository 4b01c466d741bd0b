package app_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"cf-quiz-service/internal/app"
	"cf-quiz-service/internal/domain"
	"cf-quiz-service/internal/infra/memory"
)

func recordedAttempt(correct int) domain.Attempt {
	reason := domain.ReasonManual
	answer := "Paris"
	return domain.Attempt{
		CompletedAt:      time.Date(2024, 11, 22, 10, 30, 0, 250000000, time.UTC),
		SubmissionReason: &reason,
		CorrectCount:     correct,
		TotalCount:       2,
		ScorePercent:     app.ScorePercent(correct, 2),
		Items: []domain.ReportItem{
			{PromptText: "Capital of France?", UserAnswer: &answer, CorrectAnswer: "Paris", TimeSpentMs: 1200},
			{PromptText: "Capital of Peru?", CorrectAnswer: "Lima"},
		},
	}
}

func TestHistoryRecordAndList(t *testing.T) {
	ctx := context.Background()
	store := app.NewHistoryStore(memory.NewStorage())

	if got := store.List(ctx, "ada@example.com"); len(got) != 0 {
		t.Fatalf("expected empty history, got %v", got)
	}
	for _, correct := range []int{1, 2} {
		if err := store.Record(ctx, "Ada@Example.com", recordedAttempt(correct)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	attempts := store.List(ctx, "ada@example.com")
	if len(attempts) != 2 || attempts[0].CorrectCount != 1 || attempts[1].CorrectCount != 2 {
		t.Fatalf("expected insertion order, got %+v", attempts)
	}
	for i, correct := range []int{1, 2} {
		if want := recordedAttempt(correct); !reflect.DeepEqual(attempts[i], want) {
			t.Fatalf("attempt %d changed across storage:\n got %+v\nwant %+v", i, attempts[i], want)
		}
	}

	latest, err := store.Attempt(ctx, "ada@example.com", -1)
	if err != nil || latest.CorrectCount != 2 {
		t.Fatalf("expected newest attempt, got %+v %v", latest, err)
	}
	if _, err := store.Attempt(ctx, "ada@example.com", 2); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestHistoryCorruptPayloadReadsEmpty(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorage()
	if err := storage.Set(ctx, app.HistoryKey("ada@example.com"), []byte("{not json")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := app.NewHistoryStore(storage)

	if got := store.List(ctx, "ada@example.com"); len(got) != 0 {
		t.Fatalf("expected corrupt history to read as empty, got %v", got)
	}
	if err := store.Record(ctx, "ada@example.com", recordedAttempt(1)); err != nil {
		t.Fatalf("record over corrupt payload: %v", err)
	}
	if got := store.List(ctx, "ada@example.com"); len(got) != 1 {
		t.Fatalf("expected corrupt list replaced, got %d", len(got))
	}
}

func TestHistoryClearSweepsVariants(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorage()
	for _, key := range []string{"cf_quiz_Ada@Example.com", "cf_quiz_ada@example.com", "cf_quiz_bob@example.com"} {
		if err := storage.Set(ctx, key, []byte("[]")); err != nil {
			t.Fatalf("seed %s: %v", key, err)
		}
	}
	store := app.NewHistoryStore(storage)

	store.Clear(ctx, " ADA@example.com")

	keys, err := storage.Keys(ctx, app.HistoryKeyPrefix)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "cf_quiz_bob@example.com" {
		t.Fatalf("expected only the other identity to remain, got %v", keys)
	}
}
