// Package pg реализует хранилища каталога, покупок, токенов доступа и заказов
// поверх PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/content"
	"alemkitap.org/internal/orders"
)

// Store объединяет все постоянные хранилища над одним пулом соединений.
type Store struct {
	db *sql.DB
}

// Open подключается к базе и настраивает пул.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New оборачивает уже открытый *sql.DB (тесты, cmd/migrate).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Books возвращает хранилище цифрового каталога.
func (s *Store) Books() catalog.BookStore { return &bookStore{db: s.db} }

// PhysicalBooks возвращает хранилище бумажных изданий.
func (s *Store) PhysicalBooks() catalog.PhysicalBookStore { return &physicalStore{db: s.db} }

// Purchases возвращает хранилище покупок.
func (s *Store) Purchases() catalog.PurchaseStore { return &purchaseStore{db: s.db} }

// Tokens возвращает хранилище токенов доступа.
func (s *Store) Tokens() content.TokenStore { return &tokenStore{db: s.db} }

// Orders возвращает хранилище заказов.
func (s *Store) Orders() orders.Store { return &orderStore{db: s.db} }

// ReapExpiredTokens удаляет истёкшие токены доступа и возвращает число строк.
func (s *Store) ReapExpiredTokens(ctx context.Context) (int64, error) {
	return (&tokenStore{db: s.db}).ReapExpired(ctx)
}
