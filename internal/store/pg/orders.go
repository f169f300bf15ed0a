package pg

import (
	"context"
	"database/sql"
	"errors"

	"alemkitap.org/internal/ids"
	"alemkitap.org/internal/orders"
)

// Order store --------------------------------------------------------------
type orderStore struct{ db *sql.DB }

const orderColumns = `id, user_id, physical_book_id, quantity, amount_minor, status,
	 customer_name, phone_number, email, city, address, postal_code, created_at, updated_at`

func (s *orderStore) Create(ctx context.Context, o *orders.Order) error {
	if o.ID == "" {
		o.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into physical_orders(id, user_id, physical_book_id, quantity, amount_minor, status,
		 customer_name, phone_number, email, city, address, postal_code, created_at, updated_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.UserID, o.PhysicalBookID, o.Quantity, o.AmountMinor, string(o.Status),
		o.CustomerName, o.PhoneNumber, o.Email, o.City, o.Address, o.PostalCode,
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *orderStore) Find(ctx context.Context, id string) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+orderColumns+` from physical_orders where id=$1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, orders.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

func (s *orderStore) ListByUser(ctx context.Context, userID string) ([]*orders.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+orderColumns+` from physical_orders where user_id=$1 order by id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *orderStore) ListAll(ctx context.Context) ([]*orders.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+orderColumns+` from physical_orders order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (s *orderStore) UpdateStatus(ctx context.Context, id string, status orders.Status) error {
	res, err := s.db.ExecContext(ctx,
		`update physical_orders set status=$2, updated_at=now() where id=$1`,
		id, string(status),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return orders.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*orders.Order, error) {
	var o orders.Order
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &o.PhysicalBookID, &o.Quantity, &o.AmountMinor, &status,
		&o.CustomerName, &o.PhoneNumber, &o.Email, &o.City, &o.Address, &o.PostalCode,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]*orders.Order, error) {
	var out []*orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
