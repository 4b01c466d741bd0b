package memory

import (
	"sync"

	"cf-quiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Put(identity string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[identity] = session
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
	if current, ok := s.sessions[identity]; ok && current == session {
		delete(s.sessions, identity)
	}
}
