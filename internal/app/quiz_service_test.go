package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cf-quiz-service/internal/app"
	"cf-quiz-service/internal/domain"
	"cf-quiz-service/internal/infra/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	service *app.QuizService
	clock   *clock
	source  *memory.StaticQuestionSource
}

func newFixture(questions []domain.Question) fixture {
	c := &clock{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
	source := memory.NewStaticQuestionSource(questions)
	history := app.NewHistoryStore(memory.NewStorage())
	service := app.NewQuizServiceWithClock(memory.NewSessionStore(), source, history, c.Now)
	return fixture{service: service, clock: c, source: source}
}

func fifteenQuestions() []domain.Question {
	questions := make([]domain.Question, domain.QuestionCount)
	for i := range questions {
		questions[i] = domain.Question{
			ID:               i + 1,
			Prompt:           fmt.Sprintf("Question %d?", i+1),
			CorrectAnswer:    "Right",
			IncorrectAnswers: []string{"Wrong A", "Wrong B", "Wrong C"},
			Choices:          []string{"Wrong A", "Wrong B", "Right", "Wrong C"},
		}
	}
	return questions
}

// answer selects the correct choice on the first n questions, leaving the rest open.
func answer(t *testing.T, service *app.QuizService, identity string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := service.Navigate(identity, i); err != nil {
			t.Fatalf("navigate %d: %v", i, err)
		}
		if _, err := service.Select(identity, 2); err != nil {
			t.Fatalf("select %d: %v", i, err)
		}
	}
}

func login(t *testing.T, service *app.QuizService, email string) string {
	t.Helper()
	identity, err := service.Login(context.Background(), email)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return identity
}

func TestLoginValidatesEmail(t *testing.T) {
	f := newFixture(fifteenQuestions())
	for _, email := range []string{"", "   ", "no-at-sign", "@example.com", "user@"} {
		if _, err := f.service.Login(context.Background(), email); !errors.Is(err, domain.ErrInvalidIdentity) {
			t.Fatalf("login(%q): expected ErrInvalidIdentity, got %v", email, err)
		}
	}
	if identity := login(t, f.service, "  Ada@Example.COM "); identity != "ada@example.com" {
		t.Fatalf("expected normalized identity, got %q", identity)
	}
}

func TestManualSubmitScoresAndRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	answer(t, f.service, identity, 12)
	if _, err := f.service.Navigate(identity, 12); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if _, err := f.service.Select(identity, 0); err != nil {
		t.Fatalf("select: %v", err)
	}

	report, err := f.service.Submit(ctx, identity)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if report.Attempt.CorrectCount != 12 || report.Attempt.TotalCount != 15 || report.Attempt.ScorePercent != 80 {
		t.Fatalf("unexpected score %+v", report.Attempt)
	}
	if report.Remark != "Excellent! You nailed it." || !report.Saved {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Attempt.Reason() != domain.ReasonManual {
		t.Fatalf("expected manual reason, got %q", report.Attempt.Reason())
	}

	history := f.service.History(ctx, identity)
	if len(history) != 1 || history[0].CorrectCount != 12 {
		t.Fatalf("expected one recorded attempt, got %+v", history)
	}
	if _, err := f.service.Submit(ctx, identity); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected closed session, got %v", err)
	}
}

func TestTimeUpSubmitsWithUnansweredQuestions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	answer(t, f.service, identity, 3)

	f.clock.Advance(10 * time.Minute)
	if remaining, err := f.service.Tick(ctx, identity); err != nil || remaining != "20:00" {
		t.Fatalf("unexpected tick %q %v", remaining, err)
	}

	f.clock.Advance(20 * time.Minute)
	_, _ = f.service.Tick(ctx, identity)

	history := waitForHistory(t, f.service, identity, 1)
	if len(history) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(history))
	}
	attempt := history[0]
	if attempt.Reason() != domain.ReasonTimeUp {
		t.Fatalf("expected time up, got %q", attempt.Reason())
	}
	if attempt.CorrectCount != 3 || attempt.ScorePercent != 20 {
		t.Fatalf("unexpected score %+v", attempt)
	}
	for i, item := range attempt.Items[3:] {
		if item.UserAnswer != nil {
			t.Fatalf("item %d: expected no answer, got %q", i+3, *item.UserAnswer)
		}
	}
	if _, err := f.service.View(identity); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session removed after time up, got %v", err)
	}
}

func TestLateActionsSubmitAsTimeUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	answer(t, f.service, identity, 1)
	f.clock.Advance(45 * time.Minute)

	if _, err := f.service.Select(identity, 2); err == nil {
		t.Fatalf("expected late selection rejected")
	}
	if _, err := f.service.Submit(ctx, identity); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session already submitted, got %v", err)
	}

	history := waitForHistory(t, f.service, identity, 1)
	if len(history) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(history))
	}
	attempt := history[0]
	if attempt.Reason() != domain.ReasonTimeUp || attempt.CorrectCount != 1 {
		t.Fatalf("unexpected attempt %+v", attempt)
	}
	if attempt.Items[0].TimeSpentMs != domain.DurationBudget.Milliseconds() {
		t.Fatalf("expected time spent clamped to the budget, got %d", attempt.Items[0].TimeSpentMs)
	}
}

func TestLateSubmitRecordsTimeUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(45 * time.Minute)

	report, err := f.service.Submit(ctx, identity)
	switch {
	case err == nil:
		if report.Attempt.Reason() != domain.ReasonTimeUp {
			t.Fatalf("expected late submit recorded as time up, got %q", report.Attempt.Reason())
		}
	case errors.Is(err, domain.ErrSessionNotFound):
		// the tick loop expired the session first
	default:
		t.Fatalf("submit: %v", err)
	}

	history := waitForHistory(t, f.service, identity, 1)
	if len(history) != 1 || history[0].Reason() != domain.ReasonTimeUp {
		t.Fatalf("expected one time-up attempt, got %+v", history)
	}
	if history[0].Items[0].TimeSpentMs != domain.DurationBudget.Milliseconds() {
		t.Fatalf("expected time spent clamped to the budget, got %d", history[0].Items[0].TimeSpentMs)
	}
}

func TestAbandonStopsOnlyMatchingSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	view, err := f.service.Start(ctx, identity)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.service.Abandon(identity, "some-other-session")
	if _, err := f.service.View(identity); err != nil {
		t.Fatalf("expected session kept for a stale id, got %v", err)
	}

	f.service.Abandon(identity, view.SessionID)
	if _, err := f.service.View(identity); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session stopped, got %v", err)
	}
	if len(f.service.History(ctx, identity)) != 0 {
		t.Fatalf("abandoned session must not be recorded")
	}
}

func TestAttentionLossForcesSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i := 1; i < domain.MaxWarnings; i++ {
		out, report, err := f.service.AttentionLost(ctx, identity)
		if err != nil || report != nil || out.Count != i {
			t.Fatalf("warning %d: unexpected %+v %v %v", i, out, report, err)
		}
		if again, _, _ := f.service.AttentionLost(ctx, identity); again.Counted {
			t.Fatalf("repeated loss without regain counted twice")
		}
		if err := f.service.AttentionRegained(identity); err != nil {
			t.Fatalf("regain: %v", err)
		}
	}

	out, report, err := f.service.AttentionLost(ctx, identity)
	if err != nil || !out.Tripped || report == nil {
		t.Fatalf("expected forced submission, got %+v %v %v", out, report, err)
	}
	if report.Attempt.Reason() != domain.ReasonCheating {
		t.Fatalf("expected cheating reason, got %q", report.Attempt.Reason())
	}
	if _, _, err := f.service.AttentionLost(ctx, identity); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected further warnings ignored, got %v", err)
	}
	if len(f.service.History(ctx, identity)) != 1 {
		t.Fatalf("expected exactly one attempt recorded")
	}
}

func TestStartRejectsEmptySourceAndDuplicates(t *testing.T) {
	ctx := context.Background()

	empty := newFixture(nil)
	identity := login(t, empty.service, "ada@example.com")
	if _, err := empty.service.Start(ctx, identity); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}

	f := newFixture(fifteenQuestions())
	identity = login(t, f.service, "ada@example.com")
	first, err := f.service.Start(ctx, identity)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.service.Start(ctx, identity); !errors.Is(err, domain.ErrSessionActive) {
		t.Fatalf("expected ErrSessionActive, got %v", err)
	}

	retake, err := f.service.Retake(ctx, identity)
	if err != nil {
		t.Fatalf("retake: %v", err)
	}
	if retake.SessionID == first.SessionID {
		t.Fatalf("expected a fresh session on retake")
	}
	if len(f.service.History(ctx, identity)) != 0 {
		t.Fatalf("abandoned session must not be recorded")
	}
}

func TestConcurrentStartsShareOneSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	var wg sync.WaitGroup
	var mu sync.Mutex
	started := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Start(ctx, identity); err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if started != 1 {
		t.Fatalf("expected exactly one winning start, got %d", started)
	}
	if _, err := f.service.Submit(ctx, identity); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestLoginClearsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.service.Submit(ctx, identity); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(f.service.History(ctx, identity)) != 1 {
		t.Fatalf("expected history before relogin")
	}

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	login(t, f.service, "ADA@example.com")
	if got := f.service.History(ctx, identity); len(got) != 0 {
		t.Fatalf("expected history cleared on login, got %d attempts", len(got))
	}
	if _, err := f.service.View(identity); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected running session stopped on login, got %v", err)
	}

	f.service.Logout(ctx, identity)
	if got := f.service.History(ctx, identity); len(got) != 0 {
		t.Fatalf("expected empty history after logout")
	}
}

func TestSubscribeReceivesSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	events, cancel, err := f.service.Subscribe(identity)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if _, err := f.service.Submit(ctx, identity); err != nil {
		t.Fatalf("submit: %v", err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Type != domain.EventSubmitted {
				continue
			}
			if event.Report == nil || event.Report.Attempt.Reason() != domain.ReasonManual {
				t.Fatalf("unexpected submitted event %+v", event)
			}
			return
		case <-timeout:
			t.Fatalf("timed out waiting for submission event")
		}
	}
}

func TestAttemptTimeSpentFollowsNavigation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(fifteenQuestions())
	identity := login(t, f.service, "ada@example.com")

	if _, err := f.service.Start(ctx, identity); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Advance(5 * time.Second)
	if _, err := f.service.Next(identity); err != nil {
		t.Fatalf("next: %v", err)
	}
	f.clock.Advance(3 * time.Second)
	if _, err := f.service.Previous(identity); err != nil {
		t.Fatalf("previous: %v", err)
	}
	f.clock.Advance(2 * time.Second)

	report, err := f.service.Submit(ctx, identity)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	items := report.Attempt.Items
	if items[0].TimeSpentMs != 7000 || items[1].TimeSpentMs != 3000 || items[2].TimeSpentMs != 0 {
		t.Fatalf("unexpected time spent: %d %d %d", items[0].TimeSpentMs, items[1].TimeSpentMs, items[2].TimeSpentMs)
	}
}

// waitForHistory polls until want attempts are recorded; the background tick loop may be the one finishing the session.
func waitForHistory(t *testing.T, service *app.QuizService, identity string, want int) []domain.Attempt {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		history := service.History(context.Background(), identity)
		if len(history) >= want || time.Now().After(deadline) {
			return history
		}
		time.Sleep(10 * time.Millisecond)
	}
}
