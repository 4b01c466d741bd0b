package app

import (
	"math/rand"
	"sort"
	"strings"
	"unicode"

	"cf-quiz-service/internal/domain"
	"golang.org/x/net/html"
)

const maxKeywords = 5

var stopwords = map[string]struct{}{
	"about": {}, "after": {}, "also": {}, "been": {}, "before": {}, "being": {},
	"could": {}, "does": {}, "following": {}, "from": {}, "have": {}, "into": {},
	"known": {}, "many": {}, "most": {}, "much": {}, "only": {}, "other": {},
	"over": {}, "should": {}, "some": {}, "such": {}, "than": {}, "that": {},
	"their": {}, "them": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "those": {}, "under": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "while": {}, "with": {}, "would": {}, "your": {},
}

// SameAnswer compares two answer strings after entity decoding. Case-sensitive.
// Scoring and exported reports both judge correctness with it.
func SameAnswer(a, b string) bool {
	return html.UnescapeString(a) == html.UnescapeString(b)
}

func correctChoiceIndex(q *domain.Question) int {
	for i, choice := range q.Choices {
		if SameAnswer(choice, q.CorrectAnswer) {
			return i
		}
	}
	return -1
}

// fiftyFifty narrows q.Choices to the correct answer plus one random incorrect one,
// keeping their relative order. The selection survives only if it was retained.
func fiftyFifty(q *domain.Question, rnd *rand.Rand) {
	correct := correctChoiceIndex(q)
	if correct < 0 {
		return
	}
	wrong := make([]int, 0, len(q.Choices))
	for i := range q.Choices {
		if i != correct {
			wrong = append(wrong, i)
		}
	}
	keep := []int{correct}
	if len(wrong) > 0 {
		keep = append(keep, wrong[rnd.Intn(len(wrong))])
	}
	sort.Ints(keep)

	choices := make([]string, 0, len(keep))
	var selected *int
	for newIdx, oldIdx := range keep {
		choices = append(choices, q.Choices[oldIdx])
		if q.SelectedIndex != nil && *q.SelectedIndex == oldIdx {
			idx := newIdx
			selected = &idx
		}
	}
	q.Choices = choices
	q.SelectedIndex = selected
}

// firstLetter returns the first alphanumeric character of the answer, uppercased.
func firstLetter(answer string) (string, bool) {
	for _, r := range html.UnescapeString(answer) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return string(unicode.ToUpper(r)), true
		}
	}
	return "", false
}

// tokenize splits text into lowercase alphanumeric words longer than three runes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) > 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// smartGuess scores each choice by overlap with the prompt: 2 per shared token,
// 0.2 per other token. Ties go to the earliest choice.
func smartGuess(prompt string, choices []string) int {
	if len(choices) == 0 {
		return -1
	}
	promptTokens := make(map[string]struct{})
	for _, tok := range tokenize(prompt) {
		promptTokens[tok] = struct{}{}
	}
	best, bestScore := 0, -1.0
	for i, choice := range choices {
		score := 0.0
		for _, tok := range tokenize(choice) {
			if _, ok := promptTokens[tok]; ok {
				score += 2
			} else {
				score += 0.2
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// keywords returns up to limit of the most frequent non-stopword prompt tokens.
func keywords(prompt string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, tok := range tokenize(prompt) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}
	return order
}

// buildHint mutates q where the clue requires it and renders the outcome payload.
func buildHint(clue domain.ClueType, q *domain.Question, rnd *rand.Rand) domain.HintOutcome {
	out := domain.HintOutcome{Type: clue}
	switch clue {
	case domain.ClueFiftyFifty:
		fiftyFifty(q, rnd)
		out.Choices = append([]string(nil), q.Choices...)
		out.Message = "Two choices remain: " + strings.Join(q.Choices, " / ")
	case domain.ClueFirstLetter:
		if letter, ok := firstLetter(q.CorrectAnswer); ok {
			out.Letter = letter
			out.Message = "The answer starts with \"" + letter + "\""
		} else {
			out.Message = "No hint available for this question"
		}
	case domain.ClueSmartGuess:
		if idx := smartGuess(q.Prompt, q.Choices); idx >= 0 {
			out.Recommendation = q.Choices[idx]
			out.Message = "Smart guess: \"" + q.Choices[idx] + "\" looks most likely"
		} else {
			out.Message = "No hint available for this question"
		}
	case domain.ClueKeywords:
		out.Keywords = keywords(q.Prompt, maxKeywords)
		if len(out.Keywords) == 0 {
			out.Message = "No keywords found"
		} else {
			out.Message = "Keywords: " + strings.Join(out.Keywords, ", ")
		}
	}
	return out
}
