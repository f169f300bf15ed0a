package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/ids"
)

// Book store ---------------------------------------------------------------
type bookStore struct{ db *sql.DB }

func (s *bookStore) Create(ctx context.Context, b *catalog.Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return catalog.ErrInvalidInput
	}
	if b.ID == "" {
		b.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into books(id, title, author, description, price_minor, file_path, cover_path)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.Title, b.Author, b.Description, b.PriceMinor, b.FilePath, b.CoverPath,
	)
	return err
}

func (s *bookStore) Update(ctx context.Context, b *catalog.Book) error {
	res, err := s.db.ExecContext(ctx,
		`update books set title=$2, author=$3, description=$4, price_minor=$5,
		 file_path=$6, cover_path=$7, updated_at=now() where id=$1`,
		b.ID, b.Title, b.Author, b.Description, b.PriceMinor, b.FilePath, b.CoverPath,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (s *bookStore) Find(ctx context.Context, id string) (*catalog.Book, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, title, author, description, price_minor, file_path, cover_path, created_at, updated_at
		 from books where id=$1`, id)
	var b catalog.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.PriceMinor, &b.FilePath, &b.CoverPath, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *bookStore) List(ctx context.Context) ([]*catalog.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, title, author, description, price_minor, file_path, cover_path, created_at, updated_at
		 from books order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*catalog.Book
	for rows.Next() {
		var b catalog.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.PriceMinor, &b.FilePath, &b.CoverPath, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &b)
	}
	return res, rows.Err()
}

// Physical book store ------------------------------------------------------
type physicalStore struct{ db *sql.DB }

func (s *physicalStore) Create(ctx context.Context, b *catalog.PhysicalBook) error {
	if strings.TrimSpace(b.Title) == "" || b.Stock < 0 {
		return catalog.ErrInvalidInput
	}
	if b.ID == "" {
		b.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into physical_books(id, title, author, description, price_minor, cover_path, stock)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.Title, b.Author, b.Description, b.PriceMinor, b.CoverPath, b.Stock,
	)
	return err
}

func (s *physicalStore) Find(ctx context.Context, id string) (*catalog.PhysicalBook, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, title, author, description, price_minor, cover_path, stock, created_at, updated_at
		 from physical_books where id=$1`, id)
	var b catalog.PhysicalBook
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.PriceMinor, &b.CoverPath, &b.Stock, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *physicalStore) List(ctx context.Context) ([]*catalog.PhysicalBook, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, title, author, description, price_minor, cover_path, stock, created_at, updated_at
		 from physical_books order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*catalog.PhysicalBook
	for rows.Next() {
		var b catalog.PhysicalBook
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Description, &b.PriceMinor, &b.CoverPath, &b.Stock, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &b)
	}
	return res, rows.Err()
}

// AdjustStock атомарно меняет остаток; guard в where не даёт уйти в минус.
func (s *physicalStore) AdjustStock(ctx context.Context, id string, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`update physical_books set stock = stock + $2, updated_at = now()
		 where id=$1 and stock + $2 >= 0`, id, delta)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Различаем отсутствие книги и нехватку остатка.
		var exists int
		err := s.db.QueryRowContext(ctx, `select 1 from physical_books where id=$1`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.ErrNotFound
		}
		if err != nil {
			return err
		}
		return catalog.ErrOutOfStock
	}
	return nil
}

// Purchase store -----------------------------------------------------------
type purchaseStore struct{ db *sql.DB }

func (s *purchaseStore) Create(ctx context.Context, p *catalog.Purchase) error {
	if strings.TrimSpace(p.UserID) == "" || strings.TrimSpace(p.BookID) == "" {
		return catalog.ErrInvalidInput
	}
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into purchases(id, user_id, book_id, amount_minor) values($1,$2,$3,$4)`,
		p.ID, p.UserID, p.BookID, p.AmountMinor,
	)
	return err
}

func (s *purchaseStore) ListByUser(ctx context.Context, userID string) ([]*catalog.Purchase, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, book_id, amount_minor, purchased_at
		 from purchases where user_id=$1 order by purchased_at asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*catalog.Purchase
	for rows.Next() {
		var p catalog.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.BookID, &p.AmountMinor, &p.PurchasedAt); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

// HasPurchase — O(1) по индексу (user_id, book_id).
func (s *purchaseStore) HasPurchase(ctx context.Context, userID, bookID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`select 1 from purchases where user_id=$1 and book_id=$2 limit 1`, userID, bookID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
