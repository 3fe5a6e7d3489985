// Package api exposes the volshift engine over HTTP: event intake for
// deployments that forward EventBridge deliveries, and operator access to
// the dead letter queue and the maintenance schedule.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/volshift"
	"github.com/xraph/volshift/engine"
)

// APIKeyHeader carries the shared key when one is configured.
const APIKeyHeader = "X-Api-Key"

// maxEventBytes bounds a single intake request body.
const maxEventBytes = 256 << 10

// API wires the HTTP handlers to an engine.
type API struct {
	eng    *engine.Engine
	apiKey string
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithAPIKey requires every /v1 request to present key in the X-Api-Key
// header.
func WithAPIKey(key string) Option {
	return func(a *API) { a.apiKey = key }
}

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API from a volshift Engine.
func New(eng *engine.Engine, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(a.authenticate)

		r.Post("/events", a.postEvent)

		r.Route("/dlq", func(r chi.Router) {
			r.Get("/", a.listDLQ)
			r.Get("/count", a.dlqCount)
			r.Get("/{entryId}", a.getDLQ)
			r.Post("/{entryId}/resolve", a.resolveDLQ)
		})

		r.Route("/crons", func(r chi.Router) {
			r.Get("/", a.listCrons)
			r.Post("/{name}/enable", a.enableCron)
			r.Post("/{name}/disable", a.disableCron)
		})

		r.Get("/definition", a.definition)
	})
	return r
}

func (a *API) authenticate(next http.Handler) http.Handler {
	if a.apiKey == "" {
		return next
	}
	want := []byte(a.apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(APIKeyHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeError(w, http.StatusUnauthorized, "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Ping(r.Context()); err != nil {
		a.logger.Warn("health check failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapStoreError converts store and engine errors to HTTP statuses.
func (a *API) mapStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, volshift.ErrDLQNotFound), errors.Is(err, volshift.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, volshift.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
