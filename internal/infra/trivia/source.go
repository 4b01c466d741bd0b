package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"cf-quiz-service/internal/domain"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// DefaultURL is the Open Trivia DB endpoint.
const DefaultURL = "https://opentdb.com/api.php"

var (
	errRateLimited = errors.New("trivia provider request rate exceeded")
	errEmptyResult = errors.New("trivia provider returned no questions")
)

// Options configures the remote provider.
type Options struct {
	URL    string
	Amount int
	// Timeout bounds a single HTTP round trip.
	Timeout time.Duration
	// MinInterval spaces outbound requests; zero disables limiting.
	MinInterval time.Duration
}

type rawQuestion struct {
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type apiResponse struct {
	ResponseCode int           `json:"response_code"`
	Results      []rawQuestion `json:"results"`
}

// Source fetches questions from the remote provider and falls back to a built-in set.
type Source struct {
	client   *http.Client
	url      string
	amount   int
	limiter  *rate.Limiter
	fallback []rawQuestion

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSource(opts Options) *Source {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Amount <= 0 {
		opts.Amount = domain.QuestionCount
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	return &Source{
		client:   &http.Client{Timeout: opts.Timeout},
		url:      opts.URL,
		amount:   opts.Amount,
		limiter:  rate.NewLimiter(limit, 1),
		fallback: builtinQuestions,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Load never fails: any provider problem yields the built-in set instead.
func (s *Source) Load(ctx context.Context) []domain.Question {
	raw, err := s.fetch(ctx)
	if err != nil {
		log.Printf("trivia provider unavailable, using built-in questions: %v", err)
		raw = s.fallback
	}
	return s.normalize(raw)
}

func (s *Source) fetch(ctx context.Context) ([]rawQuestion, error) {
	if !s.limiter.Allow() {
		return nil, errRateLimited
	}

	endpoint, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	query := endpoint.Query()
	query.Set("amount", strconv.Itoa(s.amount))
	query.Set("type", "multiple")
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch questions: unexpected status %d", resp.StatusCode)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("provider response code %d", payload.ResponseCode)
	}
	if len(payload.Results) == 0 {
		return nil, errEmptyResult
	}
	for i, q := range payload.Results {
		if q.Question == "" || q.CorrectAnswer == "" {
			return nil, fmt.Errorf("malformed question at %d", i)
		}
	}
	if len(payload.Results) > s.amount {
		payload.Results = payload.Results[:s.amount]
	}
	return payload.Results, nil
}

// normalize decodes entities and merges the answers into uniformly shuffled choices.
func (s *Source) normalize(raw []rawQuestion) []domain.Question {
	s.mu.Lock()
	defer s.mu.Unlock()

	questions := make([]domain.Question, 0, len(raw))
	for i, r := range raw {
		correct := html.UnescapeString(r.CorrectAnswer)
		incorrect := make([]string, 0, len(r.IncorrectAnswers))
		for _, answer := range r.IncorrectAnswers {
			incorrect = append(incorrect, html.UnescapeString(answer))
		}
		choices := append([]string{correct}, incorrect...)
		s.rnd.Shuffle(len(choices), func(a, b int) {
			choices[a], choices[b] = choices[b], choices[a]
		})
		questions = append(questions, domain.Question{
			ID:               i + 1,
			Prompt:           html.UnescapeString(r.Question),
			CorrectAnswer:    correct,
			IncorrectAnswers: incorrect,
			Choices:          choices,
		})
	}
	return questions
}
