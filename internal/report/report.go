package report

import (
	"fmt"
	"io"
	"strings"

	"cf-quiz-service/internal/app"
	"cf-quiz-service/internal/domain"
)

const notAnswered = "(not answered)"

// Result labels for a report row.
const (
	LabelCorrect     = "Correct"
	LabelIncorrect   = "Incorrect"
	LabelNotAnswered = "Not answered"
)

// Row is one question of an exported report.
type Row struct {
	Number        int
	Prompt        string
	UserAnswer    string
	CorrectAnswer string
	TimeSpent     string
	Result        string
}

// Document is the data an exporter lays out, in display order.
type Document struct {
	Identity     string
	CompletedAt  string
	Total        int
	Correct      int
	ScorePercent int
	Remark       string
	Reason       string
	Rows         []Row
}

// Build flattens an attempt into an export document.
func Build(identity string, attempt domain.Attempt) Document {
	doc := Document{
		Identity:     identity,
		CompletedAt:  attempt.CompletedAt.Format("2006-01-02 15:04:05 MST"),
		Total:        attempt.TotalCount,
		Correct:      attempt.CorrectCount,
		ScorePercent: attempt.ScorePercent,
		Remark:       app.Remark(attempt.CorrectCount, attempt.TotalCount),
		Reason:       attempt.Reason(),
		Rows:         make([]Row, 0, len(attempt.Items)),
	}
	for i, item := range attempt.Items {
		row := Row{
			Number:        i + 1,
			Prompt:        item.PromptText,
			UserAnswer:    notAnswered,
			CorrectAnswer: item.CorrectAnswer,
			TimeSpent:     domain.FormatMillis(item.TimeSpentMs),
			Result:        LabelNotAnswered,
		}
		if item.UserAnswer != nil {
			row.UserAnswer = *item.UserAnswer
			row.Result = LabelIncorrect
			if app.SameAnswer(*item.UserAnswer, item.CorrectAnswer) {
				row.Result = LabelCorrect
			}
		}
		doc.Rows = append(doc.Rows, row)
	}
	return doc
}

// summaryLines is shared by the text and PDF renderers so both keep the same order.
func (d Document) summaryLines() []string {
	lines := []string{
		"User: " + d.Identity,
		fmt.Sprintf("Total: %d   Correct: %d   Score: %d%%", d.Total, d.Correct, d.ScorePercent),
	}
	if d.Reason != "" {
		lines = append(lines, "Submission: "+d.Reason)
	}
	return append(lines, "Completed: "+d.CompletedAt, "Remark: "+d.Remark)
}

func (r Row) lines() []string {
	return []string{
		fmt.Sprintf("Q%d. %s", r.Number, r.Prompt),
		"Your answer: " + r.UserAnswer,
		"Correct answer: " + r.CorrectAnswer,
		fmt.Sprintf("Time: %s   Result: %s", r.TimeSpent, r.Result),
	}
}

// WriteText renders doc as plain text.
func WriteText(w io.Writer, doc Document) error {
	var b strings.Builder
	b.WriteString("Quiz Report\n\n")
	for _, line := range doc.summaryLines() {
		b.WriteString(line + "\n")
	}
	for _, row := range doc.Rows {
		b.WriteString("\n")
		for _, line := range row.lines() {
			b.WriteString(line + "\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
