package content

import (
	"context"
	"sync"
	"time"
)

// MemoryTokenStore — потокобезопасное хранилище токенов в памяти для тестов и
// dev-режима. Фоновая горутина раз в минуту вычищает истёкшие записи; это
// только экономия памяти, валидность всегда считается по expires_at.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	data   map[string]AccessToken
	closed chan struct{}
	once   sync.Once
}

// NewMemoryTokenStore создаёт хранилище и запускает уборщика.
func NewMemoryTokenStore() *MemoryTokenStore {
	s := &MemoryTokenStore{
		data:   make(map[string]AccessToken),
		closed: make(chan struct{}),
	}
	go s.reapLoop()
	return s
}

func (s *MemoryTokenStore) Create(ctx context.Context, tok *AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[tok.Token] = *tok
	return nil
}

func (s *MemoryTokenStore) Find(ctx context.Context, token string) (*AccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := rec
	return &cp, nil
}

func (s *MemoryTokenStore) reapLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.reap()
		case <-s.closed:
			return
		}
	}
}

func (s *MemoryTokenStore) reap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, rec := range s.data {
		if now.After(rec.ExpiresAt) {
			delete(s.data, k)
		}
	}
}

// Close останавливает уборщика.
func (s *MemoryTokenStore) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
