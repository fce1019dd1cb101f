// Package http exposes the pipeline over HTTP.
//
// POST / accepts {"raw_body": "..."} and answers with the run record.
// Requests are validated against the embedded OpenAPI document before they
// reach the engine.
package http

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/tickler/pkg/domain"
	"github.com/aretw0/tickler/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed openapi.yaml
var rawSpec []byte

// APIKeyHeader carries the shared secret when one is configured.
const APIKeyHeader = "x-api-key"

// MaxBodyBytes bounds the accepted request body.
const MaxBodyBytes = 1 << 20

// Engine runs one input through the pipeline.
type Engine interface {
	Run(ctx context.Context, input domain.RawInput) (*domain.RunResult, error)
}

// Option configures the handler.
type Option func(*server)

// WithAPIKey requires callers to send key in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(s *server) {
		s.apiKey = key
	}
}

// WithThrottle limits in-flight runs to limit, queueing up to backlog more for at most timeout.
func WithThrottle(limit, backlog int, timeout time.Duration) Option {
	return func(s *server) {
		s.throttleLimit = limit
		s.throttleBacklog = backlog
		s.throttleTimeout = timeout
	}
}

// WithHistory enables GET /runs/{id}.
func WithHistory(store ports.RunStore) Option {
	return func(s *server) {
		s.history = store
	}
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *server) {
		s.metrics = h
	}
}

// WithMaxInputSize rejects raw_body values longer than n bytes. Zero disables the check.
func WithMaxInputSize(n int) Option {
	return func(s *server) {
		s.maxInput = n
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *server) {
		s.logger = l
	}
}

type server struct {
	engine          Engine
	history         ports.RunStore
	metrics         http.Handler
	router          routers.Router
	apiKey          string
	throttleLimit   int
	throttleBacklog int
	throttleTimeout time.Duration
	maxInput        int
	logger          *slog.Logger
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) (http.Handler, error) {
	s := &server{
		engine:          engine,
		throttleLimit:   10,
		throttleBacklog: 2,
		throttleTimeout: 5 * time.Second,
		maxInput:        domain.DefaultMaxInputSize,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	if s.router, err = legacy.NewRouter(doc); err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI router: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAPIKey)
		r.Use(s.validate)

		r.With(middleware.ThrottleBacklog(s.throttleLimit, s.throttleBacklog, s.throttleTimeout)).
			Post("/", s.submitRun)
		r.Get("/runs/{id}", s.getRun)
	})

	return r, nil
}

func (s *server) submitRun(w http.ResponseWriter, r *http.Request) {
	var input domain.RawInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := input.Validate(s.maxInput); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Run(r.Context(), input)
	if result == nil {
		s.logger.Error("Run returned no result", "error", err)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	writeJSON(w, StatusFor(err), domain.NewRunRecord(input, result))
}

func (s *server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	rec, err := s.history.Load(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("History lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// StatusFor maps a terminal run error to an HTTP status.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch domain.KindOf(err) {
	case domain.KindParse, domain.KindModelInvocation:
		return http.StatusBadGateway
	case domain.KindCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" {
			got := r.Header.Get(APIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) != 1 {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// validate checks requests for documented routes; others pass through.
func (s *server) validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, params, err := s.router.FindRoute(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		err = openapi3filter.ValidateRequest(r.Context(), &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route:      route,
			Options:    &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
		})
		if err != nil {
			s.logger.Warn("Request rejected", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
