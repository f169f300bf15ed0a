package catalog

import (
	"errors"
	"time"
)

// Book — цифровая книга каталога. Цена в минорных единицах, без float.
type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	PriceMinor  int64     `json:"price_minor"`
	FilePath    string    `json:"-"` // локатор файла книги; наружу не отдаётся
	CoverPath   string    `json:"cover_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PhysicalBook — бумажное издание со складским остатком.
type PhysicalBook struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	PriceMinor  int64     `json:"price_minor"`
	CoverPath   string    `json:"cover_path"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Purchase is an immutable record of a completed digital purchase.
// Rows are append-only; entitlement checks derive from their existence.
type Purchase struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	BookID      string    `json:"book_id"`
	AmountMinor int64     `json:"amount_minor"`
	PurchasedAt time.Time `json:"purchased_at"`
}

var (
	ErrNotFound     = errors.New("catalog: not found")
	ErrInvalidInput = errors.New("catalog: invalid input")
	ErrOutOfStock   = errors.New("catalog: out of stock")
)
