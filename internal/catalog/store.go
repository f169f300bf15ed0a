package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"alemkitap.org/internal/ids"
)

// BookStore manages the digital catalog.
type BookStore interface {
	Create(ctx context.Context, b *Book) error
	Update(ctx context.Context, b *Book) error
	Find(ctx context.Context, id string) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
}

// PhysicalBookStore manages paper editions and their stock.
type PhysicalBookStore interface {
	Create(ctx context.Context, b *PhysicalBook) error
	Find(ctx context.Context, id string) (*PhysicalBook, error)
	List(ctx context.Context) ([]*PhysicalBook, error)
	// AdjustStock atomically applies delta; returns ErrOutOfStock when the
	// result would go negative.
	AdjustStock(ctx context.Context, id string, delta int) error
}

// PurchaseStore appends and queries immutable purchase records.
type PurchaseStore interface {
	Create(ctx context.Context, p *Purchase) error
	ListByUser(ctx context.Context, userID string) ([]*Purchase, error)
	// HasPurchase reports whether any purchase of bookID by userID exists.
	HasPurchase(ctx context.Context, userID, bookID string) (bool, error)
}

// InMemory implements all catalog stores with in-process concurrency safety.
// Used by tests and by dev mode when no DSN is configured.
type InMemory struct {
	mu        sync.RWMutex
	books     map[string]*Book
	physical  map[string]*PhysicalBook
	purchases []*Purchase
}

// NewInMemory creates an empty in-memory catalog.
func NewInMemory() *InMemory {
	return &InMemory{
		books:    make(map[string]*Book),
		physical: make(map[string]*PhysicalBook),
	}
}

func (s *InMemory) Create(ctx context.Context, b *Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = ids.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	s.books[b.ID] = &cp
	return nil
}

func (s *InMemory) Update(ctx context.Context, b *Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; !ok {
		return ErrNotFound
	}
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	s.books[b.ID] = &cp
	return nil
}

func (s *InMemory) Find(ctx context.Context, id string) (*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *InMemory) List(ctx context.Context) ([]*Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Book, 0, len(s.books))
	for _, b := range s.books {
		cp := *b
		out = append(out, &cp)
	}
	sortBooks(out)
	return out, nil
}

// PhysicalBooks exposes the paper-edition store backed by the same instance.
func (s *InMemory) PhysicalBooks() PhysicalBookStore { return (*physicalMem)(s) }

// Purchases exposes the purchase store backed by the same instance.
func (s *InMemory) Purchases() PurchaseStore { return (*purchaseMem)(s) }

type physicalMem InMemory

func (s *physicalMem) Create(ctx context.Context, b *PhysicalBook) error {
	if strings.TrimSpace(b.Title) == "" || b.Stock < 0 {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = ids.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	s.physical[b.ID] = &cp
	return nil
}

func (s *physicalMem) Find(ctx context.Context, id string) (*PhysicalBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.physical[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *physicalMem) List(ctx context.Context) ([]*PhysicalBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PhysicalBook, 0, len(s.physical))
	for _, b := range s.physical {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (s *physicalMem) AdjustStock(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.physical[id]
	if !ok {
		return ErrNotFound
	}
	if b.Stock+delta < 0 {
		return ErrOutOfStock
	}
	b.Stock += delta
	b.UpdatedAt = time.Now().UTC()
	return nil
}

type purchaseMem InMemory

func (s *purchaseMem) Create(ctx context.Context, p *Purchase) error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.BookID) == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = time.Now().UTC()
	}
	cp := *p
	s.purchases = append(s.purchases, &cp)
	return nil
}

func (s *purchaseMem) ListByUser(ctx context.Context, userID string) ([]*Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Purchase
	for _, p := range s.purchases {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *purchaseMem) HasPurchase(ctx context.Context, userID, bookID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.purchases {
		if p.UserID == userID && p.BookID == bookID {
			return true, nil
		}
	}
	return false, nil
}

// FileLocators переводит книгу в локатор её файла; шлюзу контента больше
// ничего от каталога не нужно.
type FileLocators struct {
	Books BookStore
}

func (l FileLocators) FileLocator(ctx context.Context, bookID string) (string, error) {
	b, err := l.Books.Find(ctx, bookID)
	if err != nil {
		return "", err
	}
	return b.FilePath, nil
}

func sortBooks(books []*Book) {
	// ULIDs sort by creation time, so ID order doubles as insertion order.
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
}
