package domain

import (
	"strings"
	"time"
)

const (
	// DurationBudget is the fixed time allowed for one attempt.
	DurationBudget = 30 * time.Minute
	// MaxClues caps successful hint requests per session.
	MaxClues = 3
	// MaxWarnings is the attention-lost count that forces submission.
	MaxWarnings = 4
	// QuestionCount is how many questions are requested from the provider.
	QuestionCount = 15
)

// Submission reasons recorded on an Attempt.
const (
	ReasonManual   = "Manual submit"
	ReasonTimeUp   = "Time up"
	ReasonCheating = "Cheating not allowed (max warnings exceeded)"
)

// Question is one multiple-choice item in a session.
// Choices holds exactly one entry equal to CorrectAnswer; after a fifty-fifty clue it has two.
type Question struct {
	ID               int      `json:"id"`
	Prompt           string   `json:"promptText"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IncorrectAnswers []string `json:"incorrectAnswers"`
	Choices          []string `json:"choices"`
	Visited          bool     `json:"visited"`
	SelectedIndex    *int     `json:"selectedIndex"`
}

// ClueType enumerates the hint mechanisms. Each is usable once per session.
type ClueType string

const (
	ClueFiftyFifty  ClueType = "fifty_fifty"
	ClueFirstLetter ClueType = "first_letter"
	ClueSmartGuess  ClueType = "smart_guess"
	ClueKeywords    ClueType = "keywords"
)

// ClueTypes lists every clue type in display order.
var ClueTypes = []ClueType{ClueFiftyFifty, ClueFirstLetter, ClueSmartGuess, ClueKeywords}

// ParseClueType accepts the wire names plus a few loose spellings ("50/50", "firstletter").
func ParseClueType(raw string) (ClueType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "fifty_fifty", "fiftyfifty", "50/50", "50_50":
		return ClueFiftyFifty, nil
	case "first_letter", "firstletter":
		return ClueFirstLetter, nil
	case "smart_guess", "smartguess":
		return ClueSmartGuess, nil
	case "keywords", "keyword":
		return ClueKeywords, nil
	}
	return "", ErrUnknownClue
}

// ClueUsage is one entry of the per-session hint log.
type ClueUsage struct {
	QuestionIndex int      `json:"questionIndex"`
	Type          ClueType `json:"type"`
}

// HintOutcome is the payload produced by a successful clue.
type HintOutcome struct {
	Type           ClueType `json:"type"`
	Message        string   `json:"message"`
	Choices        []string `json:"choices,omitempty"`
	Letter         string   `json:"letter,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	CluesRemaining int      `json:"cluesRemaining"`
}

// ReportItem is the per-question line of an Attempt.
type ReportItem struct {
	PromptText    string  `json:"promptText"`
	UserAnswer    *string `json:"userAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
	TimeSpentMs   int64   `json:"timeSpentMs"`
}

// Attempt is a finalized, scored quiz record. It is immutable once created.
type Attempt struct {
	CompletedAt      time.Time    `json:"completedAt"`
	SubmissionReason *string      `json:"submissionReason"`
	CorrectCount     int          `json:"correctCount"`
	TotalCount       int          `json:"totalCount"`
	ScorePercent     int          `json:"scorePercent"`
	Items            []ReportItem `json:"items"`
}

// Reason returns the submission reason or "" when none was recorded.
func (a Attempt) Reason() string {
	if a.SubmissionReason == nil {
		return ""
	}
	return *a.SubmissionReason
}

// Report is what a caller receives after finalization.
type Report struct {
	Identity string  `json:"identity"`
	Attempt  Attempt `json:"attempt"`
	Remark   string  `json:"remark"`
	Saved    bool    `json:"saved"`
}

// QuestionView is a question as shown to the player, without the answer key.
type QuestionView struct {
	ID            int      `json:"id"`
	Prompt        string   `json:"promptText"`
	Choices       []string `json:"choices"`
	SelectedIndex *int     `json:"selectedIndex"`
}

// SessionView is a read-only snapshot of an active session.
type SessionView struct {
	SessionID      string       `json:"sessionId"`
	Identity       string       `json:"identity"`
	CurrentIndex   int          `json:"currentIndex"`
	Total          int          `json:"total"`
	Question       QuestionView `json:"question"`
	Visited        []bool       `json:"visited"`
	Answered       []bool       `json:"answered"`
	Remaining      string       `json:"remaining"`
	CluesRemaining int          `json:"cluesRemaining"`
	UsedClues      []ClueType   `json:"usedClues"`
	WarningCount   int          `json:"warningCount"`
	MaxWarnings    int          `json:"maxWarnings"`
}

// EventType names the asynchronous notifications a session publishes.
type EventType string

const (
	EventTick      EventType = "tick"
	EventWarning   EventType = "warning"
	EventSubmitted EventType = "submitted"
)

// Event is pushed to session subscribers.
type Event struct {
	Type         EventType `json:"type"`
	Remaining    string    `json:"remaining,omitempty"`
	WarningCount int       `json:"warningCount,omitempty"`
	MaxWarnings  int       `json:"maxWarnings,omitempty"`
	Report       *Report   `json:"report,omitempty"`
}

// NormalizeIdentity trims and lowercases an email for use as a history key.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
