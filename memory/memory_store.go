package memory

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memorySession struct {
	mu      sync.Mutex
	session Session
}

// InMemoryStore keeps sessions in process. The registry lock is only held to
// look up or insert an entry; appends lock the session itself.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*memorySession),
		now:      time.Now,
	}
}

func (s *InMemoryStore) CreateSession(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := newSessionID()
	entry := s.entry(id, true)
	entry.mu.Lock()
	entry.session.UserID = userID
	entry.mu.Unlock()
	return id, nil
}

func (s *InMemoryStore) LoadHistory(ctx context.Context, sessionID string) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := s.entry(sessionID, false)
	if entry == nil {
		return []Turn{}, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return append([]Turn{}, entry.session.Turns...), nil
}

func (s *InMemoryStore) AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := s.entry(sessionID, true)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.session.Turns = append(entry.session.Turns, exchange(userText, assistantText)...)
	entry.session.Metadata.TotalQueries++
	entry.session.Metadata.LastActivityAt = s.now().UTC()
	return nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := s.entry(sessionID, false)
	if entry == nil {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := entry.session
	out.Turns = slices.Clone(entry.session.Turns)
	if out.Turns == nil {
		out.Turns = []Turn{}
	}
	return &out, nil
}

func (s *InMemoryStore) entry(sessionID string, create bool) *memorySession {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok || !create {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[sessionID]; ok {
		return e
	}
	e = &memorySession{session: Session{
		ID:        sessionID,
		Turns:     []Turn{},
		CreatedAt: s.now().UTC(),
	}}
	s.sessions[sessionID] = e
	return e
}
