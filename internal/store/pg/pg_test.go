package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/content"
	"alemkitap.org/internal/orders"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestHasPurchase(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery("select 1 from purchases").
		WithArgs("42", "7").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select 1 from purchases").
		WithArgs("42", "8").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	ok, err := store.Purchases().HasPurchase(context.Background(), "42", "7")
	if err != nil {
		t.Fatalf("HasPurchase: %v", err)
	}
	if !ok {
		t.Fatal("expected purchase to exist")
	}

	ok, err = store.Purchases().HasPurchase(context.Background(), "42", "8")
	if err != nil {
		t.Fatalf("HasPurchase: %v", err)
	}
	if ok {
		t.Fatal("expected no purchase")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTokenCreateAndFind(t *testing.T) {
	store, mock := newMock(t)

	issued := time.Now().UTC().Truncate(time.Second)
	tok := &content.AccessToken{
		Token:     "tok-abc",
		BookID:    "7",
		UserID:    "42",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(time.Hour),
	}

	mock.ExpectExec("insert into access_tokens").
		WithArgs(tok.Token, tok.BookID, tok.UserID, tok.IssuedAt, tok.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select token, book_id, user_id, issued_at, expires_at").
		WithArgs("tok-abc").
		WillReturnRows(sqlmock.NewRows([]string{"token", "book_id", "user_id", "issued_at", "expires_at"}).
			AddRow(tok.Token, tok.BookID, tok.UserID, tok.IssuedAt, tok.ExpiresAt))
	mock.ExpectQuery("select token, book_id, user_id, issued_at, expires_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if err := store.Tokens().Create(context.Background(), tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Tokens().Find(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.UserID != "42" || got.BookID != "7" || !got.ExpiresAt.Equal(tok.ExpiresAt) {
		t.Fatalf("unexpected token record: %+v", got)
	}

	if _, err := store.Tokens().Find(context.Background(), "missing"); !errors.Is(err, content.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdjustStockGuard(t *testing.T) {
	store, mock := newMock(t)

	// Успешный резерв.
	mock.ExpectExec("update physical_books set stock").
		WithArgs("p1", -2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Остатка не хватает: update не задел строк, но книга существует.
	mock.ExpectExec("update physical_books set stock").
		WithArgs("p1", -100).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select 1 from physical_books").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	// Неизвестная книга.
	mock.ExpectExec("update physical_books set stock").
		WithArgs("ghost", -1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select 1 from physical_books").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if err := store.PhysicalBooks().AdjustStock(context.Background(), "p1", -2); err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if err := store.PhysicalBooks().AdjustStock(context.Background(), "p1", -100); !errors.Is(err, catalog.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if err := store.PhysicalBooks().AdjustStock(context.Background(), "ghost", -1); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOrderLifecycle(t *testing.T) {
	store, mock := newMock(t)

	now := time.Now().UTC().Truncate(time.Second)
	o := &orders.Order{
		UserID:         "42",
		PhysicalBookID: "p1",
		Quantity:       2,
		AmountMinor:    5000,
		Status:         orders.StatusCreated,
		CustomerName:   "Aigerim",
		City:           "Almaty",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	mock.ExpectExec("insert into physical_orders").
		WithArgs(sqlmock.AnyArg(), o.UserID, o.PhysicalBookID, o.Quantity, o.AmountMinor, "created",
			o.CustomerName, o.PhoneNumber, o.Email, o.City, o.Address, o.PostalCode, o.CreatedAt, o.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Orders().Create(context.Background(), o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.ID == "" {
		t.Fatal("expected generated order id")
	}

	cols := []string{"id", "user_id", "physical_book_id", "quantity", "amount_minor", "status",
		"customer_name", "phone_number", "email", "city", "address", "postal_code", "created_at", "updated_at"}
	mock.ExpectQuery("select (.+) from physical_orders where id").
		WithArgs(o.ID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(o.ID, o.UserID, o.PhysicalBookID, o.Quantity, o.AmountMinor, "created",
				o.CustomerName, o.PhoneNumber, o.Email, o.City, o.Address, o.PostalCode, o.CreatedAt, o.UpdatedAt))

	got, err := store.Orders().Find(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Status != orders.StatusCreated || got.AmountMinor != 5000 {
		t.Fatalf("unexpected order: %+v", got)
	}

	mock.ExpectExec("update physical_orders set status").
		WithArgs(o.ID, "paid").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := store.Orders().UpdateStatus(context.Background(), o.ID, orders.StatusPaid); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	mock.ExpectExec("update physical_orders set status").
		WithArgs("ghost", "paid").
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := store.Orders().UpdateStatus(context.Background(), "ghost", orders.StatusPaid); !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
