// Package orders ведёт заказы бумажных книг: резервирование остатка и
// жизненный цикл статуса доставки.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alemkitap.org/internal/catalog"
)

// Status — этап жизненного цикла заказа.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions — допустимые переходы статуса. Отмена возможна до отгрузки.
var transitions = map[Status][]Status{
	StatusCreated: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusShipped, StatusCancelled},
	StatusShipped: {StatusDelivered},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Order — заказ бумажной книги с данными получателя.
type Order struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	PhysicalBookID string    `json:"physical_book_id"`
	Quantity       int       `json:"quantity"`
	AmountMinor    int64     `json:"amount_minor"`
	Status         Status    `json:"status"`
	CustomerName   string    `json:"customer_name"`
	PhoneNumber    string    `json:"phone_number"`
	Email          string    `json:"email"`
	City           string    `json:"city"`
	Address        string    `json:"address"`
	PostalCode     string    `json:"postal_code"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

var (
	ErrNotFound          = errors.New("orders: not found")
	ErrInvalidInput      = errors.New("orders: invalid input")
	ErrInvalidTransition = errors.New("orders: invalid status transition")
)

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Find(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// Service связывает заказы со складским остатком каталога.
type Service struct {
	orders Store
	books  catalog.PhysicalBookStore
	now    func() time.Time
}

// NewService собирает сервис заказов.
func NewService(orders Store, books catalog.PhysicalBookStore) *Service {
	return &Service{orders: orders, books: books, now: time.Now}
}

// Place резервирует остаток и создаёт заказ в статусе created.
func (s *Service) Place(ctx context.Context, o *Order) (*Order, error) {
	if strings.TrimSpace(o.UserID) == "" || strings.TrimSpace(o.PhysicalBookID) == "" {
		return nil, ErrInvalidInput
	}
	if o.Quantity <= 0 {
		return nil, ErrInvalidInput
	}
	book, err := s.books.Find(ctx, o.PhysicalBookID)
	if err != nil {
		return nil, err
	}
	if err := s.books.AdjustStock(ctx, book.ID, -o.Quantity); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	o.Status = StatusCreated
	o.AmountMinor = book.PriceMinor * int64(o.Quantity)
	o.CreatedAt = now
	o.UpdatedAt = now
	if err := s.orders.Create(ctx, o); err != nil {
		// Вернуть резерв, иначе остаток разъедется с заказами.
		_ = s.books.AdjustStock(ctx, book.ID, o.Quantity)
		return nil, err
	}
	return o, nil
}

// Transition переводит заказ в новый статус по машине состояний.
// Отмена возвращает зарезервированный остаток на склад.
func (s *Service) Transition(ctx context.Context, orderID string, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, next)
	}
	order, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, next)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, next); err != nil {
		return nil, err
	}
	if next == StatusCancelled {
		_ = s.books.AdjustStock(ctx, order.PhysicalBookID, order.Quantity)
	}
	order.Status = next
	order.UpdatedAt = s.now().UTC()
	return order, nil
}

// ListByUser возвращает заказы пользователя.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll возвращает все заказы (административная выборка).
func (s *Service) ListAll(ctx context.Context) ([]*Order, error) {
	return s.orders.ListAll(ctx)
}
