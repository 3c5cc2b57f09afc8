package session

import (
	"context"
	"sync"
	"time"

	"meetingviewer/internal/models"
)

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.Session
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		items: make(map[string]models.Session),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryStore) Put(ctx context.Context, s models.Session) error {
	s, err := prepare(s, m.now(), m.ttl)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[s.Token] = s
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, token string) (*models.Session, error) {
	m.mu.RLock()
	s, ok := m.items[token]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if !s.Expired(m.now()) {
		return &s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// a Put may have replaced the entry since the read lock was released
	current, ok := m.items[token]
	if !ok {
		return nil, nil
	}
	if current.Expired(m.now()) {
		delete(m.items, token)
		return nil, nil
	}
	return &current, nil
}

func (m *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, s := range m.items {
		if s.Expired(now) {
			delete(m.items, token)
			n++
		}
	}
	return n, nil
}
