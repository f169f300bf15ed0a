package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"alemkitap.org/internal/ids"
)

// InMemory — хранилище заказов в памяти (тесты и dev-режим).
type InMemory struct {
	mu   sync.RWMutex
	data map[string]*Order
}

// NewInMemory создаёт пустое хранилище.
func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string]*Order)}
}

func (s *InMemory) Create(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = ids.New()
	}
	cp := *o
	s.data[o.ID] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *InMemory) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Order
	for _, o := range s.data {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sortOrders(out)
	return out, nil
}

func (s *InMemory) ListAll(ctx context.Context) ([]*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Order, 0, len(s.data))
	for _, o := range s.data {
		cp := *o
		out = append(out, &cp)
	}
	sortOrders(out)
	return out, nil
}

func (s *InMemory) UpdateStatus(ctx context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.data[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func sortOrders(out []*Order) {
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
}
