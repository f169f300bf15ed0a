package content

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"
	"time"

	"alemkitap.org/internal/catalog"
)

type stubLocators map[string]string

func (s stubLocators) FileLocator(ctx context.Context, bookID string) (string, error) {
	loc, ok := s[bookID]
	if !ok {
		return "", catalog.ErrNotFound
	}
	return loc, nil
}

type stubFiles map[string]string

func (s stubFiles) Open(locator string) (io.ReadCloser, error) {
	data, ok := s[locator]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(data)), nil
}

type failingEntitlements struct{}

func (failingEntitlements) HasPurchase(ctx context.Context, userID, bookID string) (bool, error) {
	return true, errors.New("boom")
}

type fixture struct {
	svc       *Service
	purchases catalog.PurchaseStore
	tokens    *MemoryTokenStore
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.NewInMemory()
	tokens := NewMemoryTokenStore()
	t.Cleanup(func() { tokens.Close() })

	f := &fixture{
		purchases: cat.Purchases(),
		tokens:    tokens,
		now:       time.Date(2025, 4, 6, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(
		f.purchases,
		stubLocators{"7": "books/abai.pdf", "8": ""},
		tokens,
		stubFiles{"books/abai.pdf": "%PDF-1.4 abai"},
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *fixture) buy(t *testing.T, userID, bookID string) {
	t.Helper()
	err := f.purchases.Create(context.Background(), &catalog.Purchase{UserID: userID, BookID: bookID})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
}

func TestHasEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if f.svc.HasEntitlement(ctx, "42", "7") {
		t.Fatal("entitled before purchase")
	}
	f.buy(t, "42", "7")
	if !f.svc.HasEntitlement(ctx, "42", "7") {
		t.Fatal("not entitled after purchase")
	}
	// Malformed identity fails closed.
	if f.svc.HasEntitlement(ctx, "  ", "7") || f.svc.HasEntitlement(ctx, "42", "") {
		t.Fatal("blank identity must not be entitled")
	}
}

func TestHasEntitlementFailsClosedOnSourceError(t *testing.T) {
	svc := NewService(failingEntitlements{}, stubLocators{}, NewMemoryTokenStore(), stubFiles{})
	if svc.HasEntitlement(context.Background(), "42", "7") {
		t.Fatal("source error must read as not entitled")
	}
}

func TestIssueRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "42", "7")

	if _, err := f.svc.Issue(ctx, "42", "99"); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
	// No token row may exist after a refused issuance.
	f.tokens.mu.RLock()
	n := len(f.tokens.data)
	f.tokens.mu.RUnlock()
	if n != 0 {
		t.Fatalf("expected no stored tokens, got %d", n)
	}

	tok, err := f.svc.Issue(ctx, "42", "7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.BookID != "7" || tok.UserID != "42" {
		t.Fatalf("wrong binding: %+v", tok)
	}
	if !tok.ExpiresAt.Equal(tok.IssuedAt.Add(TokenTTL)) {
		t.Fatalf("expected fixed 1h TTL, got %v", tok.ExpiresAt.Sub(tok.IssuedAt))
	}
	if len(tok.Token) < 32 {
		t.Fatalf("token too short to be unguessable: %q", tok.Token)
	}
}

func TestIssueYieldsIndependentTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "42", "7")

	t1, err := f.svc.Issue(ctx, "42", "7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	t2, err := f.svc.Issue(ctx, "42", "7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if t1.Token == t2.Token {
		t.Fatal("repeated issuance produced identical token strings")
	}
	for _, tok := range []*AccessToken{t1, t2} {
		bookID, err := f.svc.Validate(ctx, tok.Token)
		if err != nil || bookID != "7" {
			t.Fatalf("Validate(%q): %q, %v", tok.Token, bookID, err)
		}
	}
}

func TestValidateExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "42", "7")

	tok, err := f.svc.Issue(ctx, "42", "7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Just before expiry the token still validates.
	f.now = tok.ExpiresAt.Add(-time.Second)
	if _, err := f.svc.Validate(ctx, tok.Token); err != nil {
		t.Fatalf("Validate before expiry: %v", err)
	}

	// Expiry boundary is exclusive: now == expiresAt is already dead.
	f.now = tok.ExpiresAt
	if _, err := f.svc.Validate(ctx, tok.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at boundary, got %v", err)
	}
	f.now = tok.ExpiresAt.Add(time.Hour)
	if _, err := f.svc.Validate(ctx, tok.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	f := newFixture(t)
	for _, tok := range []string{"doesnotexist", "", "   "} {
		if _, err := f.svc.Validate(context.Background(), tok); !errors.Is(err, ErrTokenNotFound) {
			t.Fatalf("Validate(%q): expected ErrTokenNotFound, got %v", tok, err)
		}
	}
}

func TestOpenAuthenticatedPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Open(ctx, "42", "7"); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned before purchase, got %v", err)
	}

	f.buy(t, "42", "7")
	rc, err := f.svc.Open(ctx, "42", "7")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "%PDF-1.4 abai" {
		t.Fatalf("unexpected stream contents: %q", data)
	}

	// Empty locator means the file was never attached.
	f.buy(t, "42", "8")
	if _, err := f.svc.Open(ctx, "42", "8"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound for empty locator, got %v", err)
	}
}

func TestOpenByToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.buy(t, "42", "7")

	tok, err := f.svc.Issue(ctx, "42", "7")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rc, bookID, holder, err := f.svc.OpenByToken(ctx, tok.Token)
	if err != nil {
		t.Fatalf("OpenByToken: %v", err)
	}
	defer rc.Close()
	if bookID != "7" || holder != "42" {
		t.Fatalf("unexpected binding: book=%s holder=%s", bookID, holder)
	}

	f.now = tok.ExpiresAt
	if _, _, _, err := f.svc.OpenByToken(ctx, tok.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestMemoryTokenStoreReap(t *testing.T) {
	s := NewMemoryTokenStore()
	defer s.Close()

	dead := &AccessToken{Token: "dead", BookID: "7", ExpiresAt: time.Now().Add(-time.Minute)}
	live := &AccessToken{Token: "live", BookID: "7", ExpiresAt: time.Now().Add(time.Hour)}
	_ = s.Create(context.Background(), dead)
	_ = s.Create(context.Background(), live)

	s.reap()

	if _, err := s.Find(context.Background(), "dead"); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected reaped token gone, got %v", err)
	}
	if _, err := s.Find(context.Background(), "live"); err != nil {
		t.Fatalf("live token must survive reap: %v", err)
	}
}
