package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)

	contentTokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_access_tokens_issued_total",
		Help: "Capability tokens minted for digital content.",
	})

	contentAccessDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_access_denied_total",
			Help: "Content authorization failures by access path.",
		},
		[]string{"path"}, // "session" | "token"
	)

	contentStreamsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_streams_started_total",
		Help: "Authorized content streams opened.",
	})
)

// Регистрация метрик в default-регистре.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		contentTokensIssued,
		contentAccessDenied,
		contentStreamsStarted,
	)
}

// Хэндлер Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// TokenIssued увеличивает счётчик выданных токенов доступа.
func TokenIssued() { contentTokensIssued.Inc() }

// AccessDenied фиксирует отказ в авторизации контента ("session" или "token").
func AccessDenied(path string) { contentAccessDenied.WithLabelValues(path).Inc() }

// StreamStarted фиксирует начало отдачи файла.
func StreamStarted() { contentStreamsStarted.Inc() }

// CanonicalPath сворачивает идентификаторы в пути, чтобы не раздувать кардинальность меток.
func CanonicalPath(raw string) string {
	path := raw
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case len(parts) >= 2 && parts[0] == "v1" && parts[1] == "books" && len(parts) == 3:
		return "/v1/books/:id"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "books" && parts[3] == "buy":
		return "/v1/books/:id/buy"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "content" && parts[2] == "by-token":
		return "/v1/content/by-token/:token"
	case len(parts) == 3 && parts[0] == "v1" && parts[1] == "content":
		return "/v1/content/:id"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "content" && parts[3] == "token":
		return "/v1/content/:id/token"
	case len(parts) == 4 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "books":
		return "/v1/admin/books/:id"
	case len(parts) == 5 && parts[0] == "v1" && parts[1] == "admin" && parts[2] == "orders" && parts[4] == "status":
		return "/v1/admin/orders/:id/status"
	}
	return path
}

// Обёртка для измерения RPS/latency/в полёте.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter — локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
