package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"cf-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// SessionRepository abstracts where active sessions live (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(identity string, session *Session)
	Get(identity string) (*Session, bool)
	// Remove drops the entry only if it still points at session.
	Remove(identity string, session *Session)
}

// QuestionSource produces a fresh question set. An empty result means no quiz is possible.
type QuestionSource interface {
	Load(ctx context.Context) []domain.Question
}

// QuizService is the single mutation surface for quiz sessions.
type QuizService struct {
	sessions     SessionRepository
	source       QuestionSource
	history      *HistoryStore
	now          func() time.Time
	tickInterval time.Duration

	loads   singleflight.Group
	startMu sync.Mutex
}

func NewQuizService(sessions SessionRepository, source QuestionSource, history *HistoryStore) *QuizService {
	return NewQuizServiceWithClock(sessions, source, history, time.Now)
}

// NewQuizServiceWithClock is used by tests to drive timing deterministically.
func NewQuizServiceWithClock(sessions SessionRepository, source QuestionSource, history *HistoryStore, now func() time.Time) *QuizService {
	return &QuizService{
		sessions:     sessions,
		source:       source,
		history:      history,
		now:          now,
		tickInterval: time.Second,
	}
}

// Login validates the email and gives the identity a fresh start:
// any running session is stopped and prior history is cleared.
func (s *QuizService) Login(ctx context.Context, email string) (string, error) {
	identity := domain.NormalizeIdentity(email)
	at := strings.Index(identity, "@")
	if at <= 0 || at == len(identity)-1 {
		return "", domain.ErrInvalidIdentity
	}
	s.stop(identity)
	s.history.Clear(ctx, identity)
	log.Printf("login %s", identity)
	return identity, nil
}

// Logout stops any running session and clears the identity's history.
func (s *QuizService) Logout(ctx context.Context, identity string) {
	identity = domain.NormalizeIdentity(identity)
	s.stop(identity)
	s.history.Clear(ctx, identity)
	log.Printf("logout %s", identity)
}

// Start loads questions and opens a new session for identity.
// Concurrent starts for the same identity share one fetch; only one session wins.
func (s *QuizService) Start(ctx context.Context, identity string) (domain.SessionView, error) {
	identity = domain.NormalizeIdentity(identity)
	if _, ok := s.sessions.Get(identity); ok {
		return domain.SessionView{}, domain.ErrSessionActive
	}

	result, _, _ := s.loads.Do(identity, func() (interface{}, error) {
		return s.source.Load(ctx), nil
	})
	questions, _ := result.([]domain.Question)
	if len(questions) == 0 {
		return domain.SessionView{}, domain.ErrNoQuestions
	}

	s.startMu.Lock()
	if _, ok := s.sessions.Get(identity); ok {
		s.startMu.Unlock()
		return domain.SessionView{}, domain.ErrSessionActive
	}
	session, err := NewSessionWithClock(identity, questions, s.now)
	if err != nil {
		s.startMu.Unlock()
		return domain.SessionView{}, err
	}
	s.sessions.Put(identity, session)
	s.startMu.Unlock()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	session.bindCancel(cancel)
	go s.runTimer(loopCtx, session)

	log.Printf("session %s started for %s with %d questions", session.ID(), identity, len(questions))
	return session.View(), nil
}

// Retake abandons the running session without recording it and starts a new one.
func (s *QuizService) Retake(ctx context.Context, identity string) (domain.SessionView, error) {
	identity = domain.NormalizeIdentity(identity)
	s.stop(identity)
	return s.Start(ctx, identity)
}

// View returns the current snapshot of identity's session.
func (s *QuizService) View(identity string) (domain.SessionView, error) {
	session, err := s.active(identity)
	if err != nil {
		return domain.SessionView{}, err
	}
	return session.View(), nil
}

// Navigate jumps to question index.
func (s *QuizService) Navigate(identity string, index int) (domain.SessionView, error) {
	return s.mutate(identity, func(session *Session) error { return session.NavigateTo(index) })
}

// Next moves to the following question.
func (s *QuizService) Next(identity string) (domain.SessionView, error) {
	return s.mutate(identity, (*Session).Next)
}

// Previous moves to the preceding question.
func (s *QuizService) Previous(identity string) (domain.SessionView, error) {
	return s.mutate(identity, (*Session).Previous)
}

// Select records an answer for the current question.
func (s *QuizService) Select(identity string, choice int) (domain.SessionView, error) {
	return s.mutate(identity, func(session *Session) error { return session.SelectAnswer(choice) })
}

// ApplyClue spends a clue on the current question.
func (s *QuizService) ApplyClue(identity string, clue domain.ClueType) (domain.HintOutcome, error) {
	session, err := s.active(identity)
	if err != nil {
		return domain.HintOutcome{}, err
	}
	out, err := session.ApplyClue(clue)
	return out, s.expireOn(session, err)
}

// AttentionLost escalates the anti-cheat monitor. Reaching the warning cap
// submits the session and returns its report.
func (s *QuizService) AttentionLost(ctx context.Context, identity string) (WarningOutcome, *domain.Report, error) {
	session, err := s.active(identity)
	if err != nil {
		return WarningOutcome{}, nil, err
	}
	out, err := session.AttentionLost()
	if err != nil || !out.Counted {
		return out, nil, s.expireOn(session, err)
	}
	if out.Tripped {
		log.Printf("session %s: warning %d/%d, forcing submission", session.ID(), out.Count, out.Max)
		report, err := s.finish(ctx, session, domain.ReasonCheating)
		if err != nil {
			return out, nil, err
		}
		return out, &report, nil
	}
	session.publish(domain.Event{Type: domain.EventWarning, WarningCount: out.Count, MaxWarnings: out.Max})
	return out, nil, nil
}

// AttentionRegained marks the quiz as focused again.
func (s *QuizService) AttentionRegained(identity string) error {
	session, err := s.active(identity)
	if err != nil {
		return err
	}
	return s.expireOn(session, session.AttentionRegained())
}

// Tick recomputes the remaining time, submitting with "Time up" on expiry.
// The background loop calls this every second; adapters may call it too.
func (s *QuizService) Tick(ctx context.Context, identity string) (string, error) {
	session, err := s.active(identity)
	if err != nil {
		return "", err
	}
	remaining, _, err := s.tickSession(ctx, session)
	return domain.FormatClock(remaining), err
}

// Submit finalizes the session on the user's request.
func (s *QuizService) Submit(ctx context.Context, identity string) (domain.Report, error) {
	session, err := s.active(identity)
	if err != nil {
		return domain.Report{}, err
	}
	return s.finish(ctx, session, domain.ReasonManual)
}

// History lists identity's attempts oldest first.
func (s *QuizService) History(ctx context.Context, identity string) []domain.Attempt {
	return s.history.List(ctx, identity)
}

// Attempt returns one attempt from identity's history.
func (s *QuizService) Attempt(ctx context.Context, identity string, n int) (domain.Attempt, error) {
	return s.history.Attempt(ctx, identity, n)
}

// Abandon stops sessionID without recording it, provided it is still identity's
// running session. Adapters call it when their client goes away.
func (s *QuizService) Abandon(identity, sessionID string) {
	identity = domain.NormalizeIdentity(identity)
	session, ok := s.sessions.Get(identity)
	if !ok || session.ID() != sessionID {
		return
	}
	session.Stop()
	s.sessions.Remove(identity, session)
	log.Printf("session %s abandoned by %s", sessionID, identity)
}

// Subscribe returns a channel of session events (ticks, warnings, submission).
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(identity string) (<-chan domain.Event, func(), error) {
	session, err := s.active(identity)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

func (s *QuizService) active(identity string) (*Session, error) {
	session, ok := s.sessions.Get(domain.NormalizeIdentity(identity))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *QuizService) mutate(identity string, op func(*Session) error) (domain.SessionView, error) {
	session, err := s.active(identity)
	if err != nil {
		return domain.SessionView{}, err
	}
	if err := op(session); err != nil {
		return domain.SessionView{}, s.expireOn(session, err)
	}
	return session.View(), nil
}

// expireOn submits session with "Time up" when err reports the budget ran out
// before the tick loop noticed. err is returned unchanged.
func (s *QuizService) expireOn(session *Session, err error) error {
	if !errors.Is(err, domain.ErrTimeUp) {
		return err
	}
	if _, finishErr := s.finish(context.Background(), session, domain.ReasonTimeUp); finishErr != nil && !errors.Is(finishErr, domain.ErrSessionClosed) {
		log.Printf("session %s: time up submission failed: %v", session.ID(), finishErr)
	}
	return err
}

func (s *QuizService) stop(identity string) {
	session, ok := s.sessions.Get(identity)
	if !ok {
		return
	}
	session.Stop()
	s.sessions.Remove(identity, session)
	log.Printf("session %s stopped for %s", session.ID(), identity)
}

func (s *QuizService) runTimer(ctx context.Context, session *Session) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, done, _ := s.tickSession(ctx, session); done {
				return
			}
		}
	}
}

// tickSession reports done once the session is closed or has just expired.
func (s *QuizService) tickSession(ctx context.Context, session *Session) (time.Duration, bool, error) {
	remaining, expired, err := session.Tick()
	if err != nil {
		return 0, true, err
	}
	session.publish(domain.Event{Type: domain.EventTick, Remaining: domain.FormatClock(remaining)})
	if !expired {
		return remaining, false, nil
	}
	log.Printf("session %s: time up", session.ID())
	if _, err := s.finish(ctx, session, domain.ReasonTimeUp); err != nil {
		return 0, true, err
	}
	return 0, true, nil
}

// finish finalizes session exactly once, persists the attempt and notifies subscribers.
// A submission that arrives after the deadline is recorded as "Time up".
func (s *QuizService) finish(ctx context.Context, session *Session, reason string) (domain.Report, error) {
	attempt, err := session.Finalize(reason)
	if errors.Is(err, domain.ErrTimeUp) {
		reason = domain.ReasonTimeUp
		attempt, err = session.Finalize(reason)
	}
	if err != nil {
		return domain.Report{}, err
	}
	identity := session.Identity()
	s.sessions.Remove(identity, session)

	report := domain.Report{
		Identity: identity,
		Attempt:  attempt,
		Remark:   Remark(attempt.CorrectCount, attempt.TotalCount),
	}
	// The tick loop context is cancelled by Finalize; persistence must not inherit that.
	if err := s.history.Record(context.WithoutCancel(ctx), identity, attempt); err != nil {
		log.Printf("attempt not saved for %s: %v", identity, err)
	} else {
		report.Saved = true
	}
	log.Printf("session %s submitted (%s): %d/%d", session.ID(), reason, attempt.CorrectCount, attempt.TotalCount)

	session.publish(domain.Event{Type: domain.EventSubmitted, Report: &report})
	return report, nil
}
