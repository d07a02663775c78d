package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/museworks/museflow/session/corpus"
)

type inMemoryStore struct {
	sessions map[string]*corpus.Corpus
	mu       sync.RWMutex
}

func NewInMemorySessionStore() Store {
	return &inMemoryStore{sessions: make(map[string]*corpus.Corpus)}
}

func (store *inMemoryStore) EnsureSession(id string, ttl time.Duration) (Corpus, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if id != "" {
		if sess, ok := store.sessions[id]; ok {
			sess.Expire(ttl)
			return sess, nil
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	sess, err := corpus.New(id, ttl)
	if err != nil {
		return nil, err
	}

	store.sessions[sess.ID()] = sess
	return sess, nil
}

func (store *inMemoryStore) GetSession(id string) (Corpus, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	sess, ok := store.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// DropExpired removes sessions past their TTL and reports how many were
// dropped.
func (store *inMemoryStore) DropExpired() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := time.Now()
	dropped := 0
	for id, sess := range store.sessions {
		if sess.ExpiresAt().Before(now) {
			delete(store.sessions, id)
			dropped++
		}
	}
	return dropped
}
