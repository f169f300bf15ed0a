package pg

import (
	"context"
	"database/sql"
	"errors"

	"alemkitap.org/internal/content"
)

// Token store ---------------------------------------------------------------
type tokenStore struct{ db *sql.DB }

func (s *tokenStore) Create(ctx context.Context, tok *content.AccessToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into access_tokens(token, book_id, user_id, issued_at, expires_at)
		 values($1,$2,$3,$4,$5)`,
		tok.Token, tok.BookID, tok.UserID, tok.IssuedAt, tok.ExpiresAt,
	)
	return err
}

func (s *tokenStore) Find(ctx context.Context, token string) (*content.AccessToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select token, book_id, user_id, issued_at, expires_at
		 from access_tokens where token=$1`, token)
	var rec content.AccessToken
	if err := row.Scan(&rec.Token, &rec.BookID, &rec.UserID, &rec.IssuedAt, &rec.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, content.ErrTokenNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ReapExpired удаляет истёкшие токены; валидность и без того решает expires_at,
// это только гигиена таблицы.
func (s *tokenStore) ReapExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from access_tokens where expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
