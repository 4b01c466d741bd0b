package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an identity has no active quiz session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionActive is returned when a quiz is started while another one is running.
	ErrSessionActive = errors.New("quiz session already active")
	// ErrSessionClosed is returned for operations on a submitted or stopped session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrNoQuestions means neither the provider nor the fallback produced a quiz.
	ErrNoQuestions = errors.New("cannot start quiz: no questions available")
	// ErrChoiceOutOfRange indicates a selected choice index is not valid for the current question.
	ErrChoiceOutOfRange = errors.New("choice out of range")
	// ErrInvalidIdentity is returned when a login email is empty or malformed.
	ErrInvalidIdentity = errors.New("invalid email")
	// ErrNoCluesLeft rejects a hint request once the session cap is spent.
	ErrNoCluesLeft = errors.New("no clues left")
	// ErrClueAlreadyUsed rejects a hint type that was already applied in this session.
	ErrClueAlreadyUsed = errors.New("clue type already used")
	// ErrUnknownClue is returned when parsing an unsupported clue type.
	ErrUnknownClue = errors.New("unknown clue type")
	// ErrTimeUp rejects an action that arrives after the session budget ran out.
	ErrTimeUp = errors.New("time is up")
	// ErrAttemptNotFound indicates a history lookup by position missed.
	ErrAttemptNotFound = errors.New("attempt not found")
)
