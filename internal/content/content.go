// Package content решает единственный интересный вопрос магазина: можно ли
// отдать защищённый файл книги данному пользователю или предъявителю токена.
//
// Четыре роли, снизу вверх: проверка владения (покупки), выпуск токенов
// доступа, проверка токенов и шлюз, который после авторизации открывает поток
// файла.
package content

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"
)

// TokenTTL — фиксированное время жизни токена доступа.
const TokenTTL = time.Hour

var (
	// ErrNotOwned — у пользователя нет покупки этой книги; токен не выпускается.
	ErrNotOwned = errors.New("content: not owned")
	// ErrTokenNotFound — предъявленный токен не существует.
	ErrTokenNotFound = errors.New("content: token not found")
	// ErrTokenExpired — токен существует, но его срок истёк.
	ErrTokenExpired = errors.New("content: token expired")
	// ErrFileNotFound — локатор пуст или файл книги отсутствует.
	ErrFileNotFound = errors.New("content: file not found")
)

// AccessToken — непрозрачный токен, привязанный к одной книге.
// Запись неизменяема после создания; истёкший токен просто мёртв.
type AccessToken struct {
	Token     string    `json:"token"`
	BookID    string    `json:"book_id"`
	UserID    string    `json:"user_id"` // держатель на момент выпуска, для аудита
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenStore хранит токены доступа. Записи создаются один раз и не мутируют;
// хранилище может вычищать истёкшие строки, но валидность всегда определяется
// по expires_at, а не фактом наличия записи.
type TokenStore interface {
	Create(ctx context.Context, tok *AccessToken) error
	// Find возвращает запись по точному совпадению строки токена
	// или ErrTokenNotFound.
	Find(ctx context.Context, token string) (*AccessToken, error)
}

// EntitlementSource отвечает на вопрос «покупал ли пользователь книгу».
type EntitlementSource interface {
	HasPurchase(ctx context.Context, userID, bookID string) (bool, error)
}

// FileOpener открывает файл по локатору. Отсутствующий файл обозначается
// ошибкой, совместимой с fs.ErrNotExist.
type FileOpener interface {
	Open(locator string) (io.ReadCloser, error)
}

// Service объединяет проверку владения, выпуск и валидацию токенов и шлюз
// доступа к содержимому.
type Service struct {
	entitlements EntitlementSource
	locators     LocatorSource
	tokens       TokenStore
	files        FileOpener
	now          func() time.Time
	ttl          time.Duration
}

// LocatorSource разрешает книгу в локатор её файла.
type LocatorSource interface {
	FileLocator(ctx context.Context, bookID string) (string, error)
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени (для тестов).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithTokenTTL переопределяет срок жизни токена.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewService собирает сервис доступа к контенту.
func NewService(ent EntitlementSource, locators LocatorSource, tokens TokenStore, files FileOpener, opts ...Option) *Service {
	s := &Service{
		entitlements: ent,
		locators:     locators,
		tokens:       tokens,
		files:        files,
		now:          time.Now,
		ttl:          TokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasEntitlement сообщает, владеет ли пользователь книгой. Любая ошибка
// источника трактуется как «не владеет» — проверка закрыта по умолчанию.
func (s *Service) HasEntitlement(ctx context.Context, userID, bookID string) bool {
	userID = strings.TrimSpace(userID)
	bookID = strings.TrimSpace(bookID)
	if userID == "" || bookID == "" {
		return false
	}
	ok, err := s.entitlements.HasPurchase(ctx, userID, bookID)
	if err != nil {
		return false
	}
	return ok
}

// Issue выпускает токен доступа после проверки владения. Каждый вызов даёт
// независимый токен; дедупликации нет.
func (s *Service) Issue(ctx context.Context, userID, bookID string) (*AccessToken, error) {
	if !s.HasEntitlement(ctx, userID, bookID) {
		return nil, ErrNotOwned
	}
	raw, err := newTokenString()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := s.now().UTC()
	tok := &AccessToken{
		Token:     raw,
		BookID:    bookID,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.tokens.Create(ctx, tok); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	return tok, nil
}

// Validate проверяет токен и возвращает привязанную книгу. Срок проверяется
// по текущим часам при каждом вызове; льготного окна нет.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	rec, err := s.lookup(ctx, token)
	if err != nil {
		return "", err
	}
	return rec.BookID, nil
}

// lookup возвращает полную запись токена; держатель нужен шлюзу только для
// аудита и наружу не отдаётся.
func (s *Service) lookup(ctx context.Context, token string) (*AccessToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenNotFound
	}
	rec, err := s.tokens.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return rec, nil
}

// Open отдаёт поток файла книги для аутентифицированного пользователя.
func (s *Service) Open(ctx context.Context, userID, bookID string) (io.ReadCloser, error) {
	if !s.HasEntitlement(ctx, userID, bookID) {
		return nil, ErrNotOwned
	}
	return s.openBook(ctx, bookID)
}

// OpenByToken отдаёт поток файла книги предъявителю валидного токена и
// возвращает держателя токена для аудита.
func (s *Service) OpenByToken(ctx context.Context, token string) (io.ReadCloser, string, string, error) {
	rec, err := s.lookup(ctx, token)
	if err != nil {
		return nil, "", "", err
	}
	rc, err := s.openBook(ctx, rec.BookID)
	if err != nil {
		return nil, "", "", err
	}
	return rc, rec.BookID, rec.UserID, nil
}

func (s *Service) openBook(ctx context.Context, bookID string) (io.ReadCloser, error) {
	locator, err := s.locators.FileLocator(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(locator) == "" {
		return nil, ErrFileNotFound
	}
	rc, err := s.files.Open(locator)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return rc, nil
}

// newTokenString возвращает непрозрачный токен с 256 битами энтропии.
func newTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
