package redis

import (
	"context"
	"sync"
	"time"

	"cf-quiz-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in a local map; their timers and subscribers are in-process.
//   - Redis carries a liveness marker per identity (value: session ID) so other
//     instances and operators can see who is mid-quiz.
//   - The marker TTL defaults to the quiz duration budget, so crashed processes
//     do not leave markers behind for long.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(identity string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[identity] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(identity), session.ID(), s.ttl).Err()
}

func (s *SessionStore) Get(identity string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[identity]
	return session, ok
}

func (s *SessionStore) Remove(identity string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[identity]
	if !ok || current != session {
		return
	}
	delete(s.sessions, identity)
	_ = s.client.Del(context.Background(), s.key(identity)).Err()
}

func (s *SessionStore) key(identity string) string {
	return "cf_quiz:session:" + identity
}
