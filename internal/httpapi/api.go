// Package httpapi — HTTP слой магазина: каталог, покупки, доступ к контенту,
// заказы бумажных книг и административные ручки.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"alemkitap.org/internal/auth"
	"alemkitap.org/internal/catalog"
	"alemkitap.org/internal/content"
	"alemkitap.org/internal/files"
	"alemkitap.org/internal/obs"
	"alemkitap.org/internal/orders"
)

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps — хранилища и сервисы, которыми живёт HTTP слой.
type Deps struct {
	Books     catalog.BookStore
	Physical  catalog.PhysicalBookStore
	Purchases catalog.PurchaseStore
	Content   *content.Service
	Orders    *orders.Service
	Blobs     *files.Dir
}

// API — HTTP слой.
type API struct {
	mux        *http.ServeMux
	deps       Deps
	readyProbe ReadyProbe
	version    string
	rateBurst  int
	ratePerSec int
}

func New(deps Deps, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		deps:       deps,
		readyProbe: rp,
		version:    version,
		rateBurst:  50,
		ratePerSec: 25,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// каталог и покупки
	a.mux.HandleFunc("/v1/books", a.handleBooksCollection)
	a.mux.HandleFunc("/v1/books/", a.handleBookResource)
	a.mux.HandleFunc("/v1/physical-books", a.handlePhysicalBooks)
	a.mux.HandleFunc("/v1/purchases", a.handleMyPurchases)

	// доступ к контенту
	a.mux.HandleFunc("/v1/content/", a.handleContentResource)

	// заказы бумажных книг
	a.mux.HandleFunc("/v1/orders", a.handleOrders)

	// админка: всё под /v1/admin/ закрыто ролью admin
	admin := RequireRole(auth.RoleAdmin)
	a.mux.Handle("/v1/admin/physical-books", admin(http.HandlerFunc(a.handleAdminPhysicalBooks)))
	a.mux.Handle("/v1/admin/books", admin(http.HandlerFunc(a.handleAdminBooksCollection)))
	a.mux.Handle("/v1/admin/books/", admin(http.HandlerFunc(a.handleAdminBookResource)))
	a.mux.Handle("/v1/admin/orders", admin(http.HandlerFunc(a.handleAdminOrders)))
	a.mux.Handle("/v1/admin/orders/", admin(http.HandlerFunc(a.handleAdminOrderResource)))

	// корень — 404
	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler возвращает полностью обёрнутый http.Handler для сервера:
// request id -> логирование -> защитные заголовки -> CORS -> rate limit ->
// аутентификация -> метрики -> mux.
func (a *API) Handler() http.Handler {
	h := obs.Instrument(a.mux)
	h = a.withAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "alemkitap-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "alemkitap-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeForbidden — единый непрозрачный отказ обоих путей доступа к контенту.
// Наружу не различаем «не куплено», «нет токена» и «токен истёк».
func writeForbidden(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, "forbidden")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
