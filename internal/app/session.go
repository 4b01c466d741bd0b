package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"cf-quiz-service/internal/domain"
	"github.com/google/uuid"
)

// Session is the authoritative in-memory model of one quiz attempt.
// All state is guarded by mu; timer ticks, monitor events and user calls serialize on it.
type Session struct {
	id       string
	identity string
	now      func() time.Time
	rnd      *rand.Rand

	mu               sync.Mutex
	questions        []domain.Question
	currentIndex     int
	startedAt        time.Time
	cluesRemaining   int
	usedClues        map[domain.ClueType]struct{}
	clueLog          []domain.ClueUsage
	elapsed          []time.Duration
	questionOpenedAt time.Time
	timer            *Timer
	monitor          *Monitor
	closed           bool
	cancel           context.CancelFunc
	subscribers      map[chan domain.Event]struct{}
}

// NewSession starts a session over questions using the wall clock.
func NewSession(identity string, questions []domain.Question) (*Session, error) {
	return NewSessionWithClock(identity, questions, time.Now)
}

// NewSessionWithClock allows deterministic timing in tests.
func NewSessionWithClock(identity string, questions []domain.Question, now func() time.Time) (*Session, error) {
	if len(questions) == 0 {
		return nil, domain.ErrNoQuestions
	}
	started := now()
	s := &Session{
		id:             uuid.New().String(),
		identity:       domain.NormalizeIdentity(identity),
		now:            now,
		rnd:            rand.New(rand.NewSource(started.UnixNano())),
		questions:      cloneQuestions(questions),
		startedAt:      started,
		cluesRemaining: domain.MaxClues,
		usedClues:      make(map[domain.ClueType]struct{}),
		elapsed:        make([]time.Duration, len(questions)),
		timer:          NewTimer(started, domain.DurationBudget),
		monitor:        NewMonitor(domain.MaxWarnings),
		subscribers:    make(map[chan domain.Event]struct{}),
	}
	s.questions[0].Visited = true
	s.questionOpenedAt = started
	return s, nil
}

func cloneQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	for i, q := range in {
		q.IncorrectAnswers = append([]string(nil), q.IncorrectAnswers...)
		q.Choices = append([]string(nil), q.Choices...)
		if q.SelectedIndex != nil {
			idx := *q.SelectedIndex
			q.SelectedIndex = &idx
		}
		out[i] = q
	}
	return out
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Identity() string {
	return s.identity
}

// NavigateTo moves to index. Out-of-range or same-index requests are no-ops.
func (s *Session) NavigateTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigateLocked(index)
}

// Next moves forward one question; a no-op on the last question.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigateLocked(s.currentIndex + 1)
}

// Previous moves back one question; a no-op on the first question.
func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigateLocked(s.currentIndex - 1)
}

func (s *Session) navigateLocked(index int) error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if index < 0 || index >= len(s.questions) || index == s.currentIndex {
		return nil
	}
	now := s.now()
	if s.pastDeadlineLocked(now) {
		return domain.ErrTimeUp
	}
	s.closeTimingLocked(now)
	s.currentIndex = index
	s.questions[index].Visited = true
	s.questionOpenedAt = now
	return nil
}

// pastDeadlineLocked reports whether the budget has run out. Unlike Timer.Check it
// keeps answering true, so every action after the deadline is refused.
func (s *Session) pastDeadlineLocked(now time.Time) bool {
	return !now.Before(s.timer.Deadline())
}

// closeTimingLocked never accrues time past the deadline.
func (s *Session) closeTimingLocked(now time.Time) {
	if s.questionOpenedAt.IsZero() {
		return
	}
	if deadline := s.timer.Deadline(); now.After(deadline) {
		now = deadline
	}
	if delta := now.Sub(s.questionOpenedAt); delta > 0 {
		s.elapsed[s.currentIndex] += delta
	}
	s.questionOpenedAt = time.Time{}
}

// SelectAnswer records choice for the current question, overwriting any prior pick.
func (s *Session) SelectAnswer(choice int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.pastDeadlineLocked(s.now()) {
		return domain.ErrTimeUp
	}
	q := &s.questions[s.currentIndex]
	if choice < 0 || choice >= len(q.Choices) {
		return domain.ErrChoiceOutOfRange
	}
	idx := choice
	q.SelectedIndex = &idx
	return nil
}

// ApplyClue spends one clue of the given type on the current question.
// Rejections leave the session untouched.
func (s *Session) ApplyClue(clue domain.ClueType) (domain.HintOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.HintOutcome{}, domain.ErrSessionClosed
	}
	if s.pastDeadlineLocked(s.now()) {
		return domain.HintOutcome{}, domain.ErrTimeUp
	}
	if s.cluesRemaining <= 0 {
		return domain.HintOutcome{}, domain.ErrNoCluesLeft
	}
	if _, used := s.usedClues[clue]; used {
		return domain.HintOutcome{}, domain.ErrClueAlreadyUsed
	}
	if _, err := domain.ParseClueType(string(clue)); err != nil {
		return domain.HintOutcome{}, err
	}

	out := buildHint(clue, &s.questions[s.currentIndex], s.rnd)
	s.cluesRemaining--
	s.usedClues[clue] = struct{}{}
	s.clueLog = append(s.clueLog, domain.ClueUsage{QuestionIndex: s.currentIndex, Type: clue})
	out.CluesRemaining = s.cluesRemaining
	return out, nil
}

// AttentionLost forwards a focus-loss signal to the monitor.
func (s *Session) AttentionLost() (WarningOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return WarningOutcome{}, domain.ErrSessionClosed
	}
	if s.pastDeadlineLocked(s.now()) {
		return WarningOutcome{}, domain.ErrTimeUp
	}
	return s.monitor.AttentionLost(), nil
}

// AttentionRegained re-arms the monitor.
func (s *Session) AttentionRegained() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.pastDeadlineLocked(s.now()) {
		return domain.ErrTimeUp
	}
	s.monitor.AttentionRegained()
	return nil
}

// Tick recomputes the remaining time and reports expiry exactly once.
func (s *Session) Tick() (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, domain.ErrSessionClosed
	}
	now := s.now()
	return s.timer.Remaining(now), s.timer.Check(now), nil
}

// Remaining is the time left in the session budget.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer.Remaining(s.now())
}

// Finalize closes timing, scores the attempt and closes the session.
// Only the first call succeeds. Past the deadline only ReasonTimeUp is accepted.
func (s *Session) Finalize(reason string) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Attempt{}, domain.ErrSessionClosed
	}
	now := s.now()
	if reason != domain.ReasonTimeUp && s.pastDeadlineLocked(now) {
		return domain.Attempt{}, domain.ErrTimeUp
	}
	s.closeTimingLocked(now)
	attempt, err := buildAttempt(s.questions, s.elapsed, reason, now)
	if err != nil {
		return domain.Attempt{}, err
	}
	s.stopLocked()
	return attempt, nil
}

// Stop closes the session without producing an attempt.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closeTimingLocked(s.now())
	s.stopLocked()
}

func (s *Session) stopLocked() {
	s.closed = true
	s.timer.Stop()
	s.monitor.Detach()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Closed reports whether the session was finalized or stopped.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// bindCancel attaches the tick loop cancel func; it fires immediately if already closed.
func (s *Session) bindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return
	}
	s.cancel = cancel
}

// View returns a snapshot safe to hand to adapters.
func (s *Session) View() domain.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.questions[s.currentIndex]
	view := domain.SessionView{
		SessionID:    s.id,
		Identity:     s.identity,
		CurrentIndex: s.currentIndex,
		Total:        len(s.questions),
		Question: domain.QuestionView{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Choices: append([]string(nil), q.Choices...),
		},
		Visited:        make([]bool, len(s.questions)),
		Answered:       make([]bool, len(s.questions)),
		Remaining:      domain.FormatClock(s.timer.Remaining(s.now())),
		CluesRemaining: s.cluesRemaining,
		WarningCount:   s.monitor.Count(),
		MaxWarnings:    domain.MaxWarnings,
	}
	if q.SelectedIndex != nil {
		idx := *q.SelectedIndex
		view.Question.SelectedIndex = &idx
	}
	for i, item := range s.questions {
		view.Visited[i] = item.Visited
		view.Answered[i] = item.SelectedIndex != nil
	}
	for _, clue := range domain.ClueTypes {
		if _, used := s.usedClues[clue]; used {
			view.UsedClues = append(view.UsedClues, clue)
		}
	}
	return view
}

// CurrentIndex returns the index of the open question.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// Questions returns a copy of the session questions.
func (s *Session) Questions() []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneQuestions(s.questions)
}

// Elapsed returns the accrued time per question. The open question's running
// interval is not included until it is closed.
func (s *Session) Elapsed() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.elapsed...)
}

// ClueLog returns every successful clue application in order.
func (s *Session) ClueLog() []domain.ClueUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ClueUsage(nil), s.clueLog...)
}

// CluesRemaining returns how many clues may still be applied.
func (s *Session) CluesRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cluesRemaining
}

// WarningCount returns the number of counted attention-lost events.
func (s *Session) WarningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitor.Count()
}

func (s *Session) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) publish(event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow reader never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
