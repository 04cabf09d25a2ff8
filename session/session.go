// Package session keeps conversation history between CLI questions.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtce-ai/dtce-rag/config"
	"github.com/dtce-ai/dtce-rag/schema"
)

// Store persists the turns of a conversation.
type Store interface {
	// Create starts a new session and returns its id.
	Create(ctx context.Context) (string, error)
	// History returns the stored turns, oldest first. Unknown ids yield no turns.
	History(ctx context.Context, id string) ([]schema.Turn, error)
	// Append adds turns and refreshes the session lifetime.
	Append(ctx context.Context, id string, turns ...schema.Turn) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// New builds the store named by cfg.Store.
func New(cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(cfg.MaxTurns, ttl(cfg)), nil
	case "redis":
		return NewRedisStore(cfg)
	}
	return nil, fmt.Errorf("unsupported session store %q", cfg.Store)
}

func ttl(cfg config.SessionConfig) time.Duration {
	if cfg.TTLSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(cfg.TTLSeconds) * time.Second
}

func newID() string { return uuid.New().String() }

type memSession struct {
	turns   []schema.Turn
	expires time.Time
}

// MemoryStore holds sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memSession
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(maxTurns int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memSession),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context) (string, error) {
	id := newID()
	m.mu.Lock()
	m.sessions[id] = &memSession{expires: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryStore) History(_ context.Context, id string) ([]schema.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || m.now().After(s.expires) {
		return nil, nil
	}
	out := make([]schema.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

func (m *MemoryStore) Append(_ context.Context, id string, turns ...schema.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || m.now().After(s.expires) {
		s = &memSession{}
		m.sessions[id] = s
	}
	s.turns = append(s.turns, turns...)
	if m.maxTurns > 0 && len(s.turns) > m.maxTurns {
		s.turns = s.turns[len(s.turns)-m.maxTurns:]
	}
	s.expires = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
