package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/museworks/museflow/session/models"
	"github.com/museworks/museflow/tools/embedding"
)

// ErrSessionNotFound is returned by GetSession when no corpus exists for the id.
var ErrSessionNotFound = errors.New("session not found")

// Store manages corpus lifecycles keyed by session id
type Store interface {
	EnsureSession(id string, ttl time.Duration) (Corpus, error)
	GetSession(id string) (Corpus, error)
	DropExpired() int
}

// Corpus is a bounded-lifetime document index scoped to one agent run
type Corpus interface {
	ID() string
	Expire(ttl time.Duration)
	ExpiresAt() time.Time
	AddChunk(chunk models.DocChunk) error
	Chunks() []models.DocChunk
	Index(id string, data interface{}) error
	SetVector(docID string, v []float32)
	GetVectors() []embedding.EmbedVec
	Bm25Search(q string, k int) ([]models.SearchHit, error)
	VectorSearch(q []float32, k int) []models.SearchHit
	FuseRRF(a, b []models.SearchHit, k int) []models.SearchHit
}

type StoreType string

const (
	InMemoryStore StoreType = "inmemory"
)

func NewStore(storeType StoreType) Store {
	switch storeType {
	case InMemoryStore:
		return NewInMemorySessionStore()
	default:
		panic(fmt.Sprintf("unsupported store type: %s", storeType))
	}
}
