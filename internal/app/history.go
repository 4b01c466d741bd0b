package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"cf-quiz-service/internal/domain"
)

// HistoryKeyPrefix namespaces attempt lists in the storage backend.
const HistoryKeyPrefix = "cf_quiz_"

// Storage is the key/value boundary the history store persists through.
// Get reports ok=false for absent keys. Keys lists every key with the given prefix.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// HistoryKey returns the storage key for an identity.
func HistoryKey(identity string) string {
	return HistoryKeyPrefix + domain.NormalizeIdentity(identity)
}

// HistoryStore keeps per-identity attempt lists in insertion order.
type HistoryStore struct {
	storage Storage
	mu      sync.Mutex
}

func NewHistoryStore(storage Storage) *HistoryStore {
	return &HistoryStore{storage: storage}
}

// Record appends attempt to the identity's history.
// A corrupt stored list is replaced; a failing backend leaves the attempt unsaved.
func (h *HistoryStore) Record(ctx context.Context, identity string, attempt domain.Attempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := HistoryKey(identity)
	attempts, err := h.read(ctx, key)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	attempts = append(attempts, attempt)
	data, err := json.Marshal(attempts)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := h.storage.Set(ctx, key, data); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// List returns the identity's attempts oldest first. Read failures yield no history.
func (h *HistoryStore) List(ctx context.Context, identity string) []domain.Attempt {
	h.mu.Lock()
	defer h.mu.Unlock()

	attempts, err := h.read(ctx, HistoryKey(identity))
	if err != nil {
		log.Printf("history unavailable for %s: %v", domain.NormalizeIdentity(identity), err)
		return []domain.Attempt{}
	}
	return attempts
}

// Attempt returns the n-th attempt; negative n counts from the newest.
func (h *HistoryStore) Attempt(ctx context.Context, identity string, n int) (domain.Attempt, error) {
	attempts := h.List(ctx, identity)
	if n < 0 {
		n += len(attempts)
	}
	if n < 0 || n >= len(attempts) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempts[n], nil
}

// Clear removes the identity's history, including keys stored under a
// differently-normalized spelling of the same identity.
func (h *HistoryStore) Clear(ctx context.Context, identity string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	normalized := domain.NormalizeIdentity(identity)
	if err := h.storage.Remove(ctx, HistoryKey(normalized)); err != nil {
		log.Printf("clear history for %s: %v", normalized, err)
	}

	keys, err := h.storage.Keys(ctx, HistoryKeyPrefix)
	if err != nil {
		log.Printf("sweep history keys for %s: %v", normalized, err)
		return
	}
	for _, key := range keys {
		if domain.NormalizeIdentity(strings.TrimPrefix(key, HistoryKeyPrefix)) != normalized {
			continue
		}
		if err := h.storage.Remove(ctx, key); err != nil {
			log.Printf("remove stale history key %q: %v", key, err)
		}
	}
}

// read decodes the stored list. Absent keys and corrupt payloads both read as empty;
// only backend errors are returned.
func (h *HistoryStore) read(ctx context.Context, key string) ([]domain.Attempt, error) {
	data, ok, err := h.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return []domain.Attempt{}, nil
	}
	var attempts []domain.Attempt
	if err := json.Unmarshal(data, &attempts); err != nil {
		log.Printf("discarding corrupt history under %q: %v", key, err)
		return []domain.Attempt{}, nil
	}
	return attempts, nil
}
