package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"alemkitap.org/internal/audit"
	"alemkitap.org/internal/catalog"
)

func (a *API) handleBooksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listBooks(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) handleBookResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/books/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/buy") {
		id := strings.TrimSuffix(path, "/buy")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "book not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.buyBook(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getBook(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

func (a *API) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := a.deps.Books.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if books == nil {
		books = []*catalog.Book{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books})
}

func (a *API) getBook(w http.ResponseWriter, r *http.Request, id string) {
	book, err := a.deps.Books.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// buyBook создаёт неизменяемую запись покупки. Повторная покупка той же
// книги — конфликт: владение уже выведено из первой записи.
func (a *API) buyBook(w http.ResponseWriter, r *http.Request, bookID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	book, err := a.deps.Books.Find(r.Context(), bookID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "book not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	owned, err := a.deps.Purchases.HasPurchase(r.Context(), userID, book.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if owned {
		writeError(w, r, http.StatusConflict, "already purchased")
		return
	}

	purchase := &catalog.Purchase{
		UserID:      userID,
		BookID:      book.ID,
		AmountMinor: book.PriceMinor,
	}
	if err := a.deps.Purchases.Create(r.Context(), purchase); err != nil {
		if errors.Is(err, catalog.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, "invalid purchase")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "catalog.book.purchased", map[string]any{
		"book_id":      book.ID,
		"amount_minor": strconv.FormatInt(book.PriceMinor, 10),
	})

	writeJSON(w, http.StatusCreated, purchase)
}

func (a *API) handlePhysicalBooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	books, err := a.deps.Physical.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if books == nil {
		books = []*catalog.PhysicalBook{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": books})
}

func (a *API) handleMyPurchases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	purchases, err := a.deps.Purchases.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if purchases == nil {
		purchases = []*catalog.Purchase{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": purchases})
}
