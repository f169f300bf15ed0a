package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"alemkitap.org/internal/audit"
	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/content"
	"alemkitap.org/internal/obs"
)

type accessTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleContentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/content/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if token, ok := strings.CutPrefix(path, "by-token/"); ok {
		if token == "" || strings.Contains(token, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.streamByToken(w, r, token)
		return
	}

	if id, ok := strings.CutSuffix(path, "/token"); ok {
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.issueAccessToken(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.streamForUser(w, r, path)
}

// issueAccessToken выпускает токен доступа к книге. Отказ во владении
// наружу неотличим от любого другого отказа доступа.
func (a *API) issueAccessToken(w http.ResponseWriter, r *http.Request, bookID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	tok, err := a.deps.Content.Issue(r.Context(), userID, bookID)
	if err != nil {
		if errors.Is(err, content.ErrNotOwned) {
			obs.AccessDenied("session")
			_ = audit.LogEvent(r.Context(), "content.access.denied", map[string]any{
				"book_id": bookID,
				"reason":  "not_owned",
			})
			writeForbidden(w, r)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	obs.TokenIssued()
	_ = audit.LogEvent(r.Context(), "content.token.issued", map[string]any{
		"book_id":    tok.BookID,
		"expires_at": tok.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, accessTokenResponse{
		Token:     tok.Token,
		ExpiresAt: tok.ExpiresAt,
	})
}

// streamForUser — аутентифицированный путь: владение проверяется заново
// на каждый запрос, ничего не кэшируется.
func (a *API) streamForUser(w http.ResponseWriter, r *http.Request, bookID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	rc, err := a.deps.Content.Open(r.Context(), userID, bookID)
	if err != nil {
		a.contentError(w, r, err, bookID, "session")
		return
	}
	defer rc.Close()

	_ = audit.LogEvent(r.Context(), "content.access.session", map[string]any{
		"book_id": bookID,
	})
	a.streamPDF(w, rc)
}

// streamByToken — неаутентифицированный путь по предъявителю. Доступ
// журналируется против держателя, записанного при выпуске токена.
func (a *API) streamByToken(w http.ResponseWriter, r *http.Request, token string) {
	rc, bookID, holderID, err := a.deps.Content.OpenByToken(r.Context(), token)
	if err != nil {
		a.contentError(w, r, err, bookID, "token")
		return
	}
	defer rc.Close()

	_ = audit.LogEvent(r.Context(), "content.access.token", map[string]any{
		"book_id": bookID,
		"holder":  holderID,
	})
	a.streamPDF(w, rc)
}

// contentError переводит ошибки шлюза в HTTP коды. Все отказы авторизации
// схлопываются в один 403 без деталей; 404 остаётся только за файлами.
func (a *API) contentError(w http.ResponseWriter, r *http.Request, err error, bookID, path string) {
	switch {
	case errors.Is(err, content.ErrNotOwned),
		errors.Is(err, content.ErrTokenNotFound),
		errors.Is(err, content.ErrTokenExpired):
		obs.AccessDenied(path)
		_ = audit.LogEvent(r.Context(), "content.access.denied", map[string]any{
			"book_id": bookID,
			"path":    path,
		})
		writeForbidden(w, r)
	case errors.Is(err, content.ErrFileNotFound), errors.Is(err, catalog.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) streamPDF(w http.ResponseWriter, rc io.Reader) {
	obs.StreamStarted()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
