// Package handler serves the status page: a static info page, a JSON health probe and the
// Prometheus metrics endpoint.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	statusOK        = "ok"
	statusUnhealthy = "unhealthy"

	pingTimeout    = 2 * time.Second
	requestTimeout = 30 * time.Second
)

// Pinger reports whether the table store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// Handler holds the status page dependencies. Pinger and Metrics may be nil.
type Handler struct {
	pinger  Pinger
	metrics http.Handler
	log     *zap.Logger
	started time.Time
	now     func() time.Time
}

// NewHandler returns a Handler. A nil pinger makes /healthz always report ok; a nil metrics
// handler leaves /metrics unrouted.
func NewHandler(pinger Pinger, metrics http.Handler, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		pinger:  pinger,
		metrics: metrics,
		log:     log,
		started: time.Now(),
		now:     time.Now,
	}
}

// Routes mounts the status endpoints on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/", h.Index)
	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	return r
}

// Index serves the static info page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(indexPage))
}

// Health reports ok with 200, or unhealthy with 503 when the store does not answer a ping.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    statusOK,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Uptime:    h.now().Sub(h.started).Round(time.Second).String(),
	}
	code := http.StatusOK
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.log.Warn("health check: store ping failed", zap.Error(err))
			resp.Status = statusUnhealthy
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
