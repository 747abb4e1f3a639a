// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/ecotogether/internal/adapters/repository"
	service "github.com/okian/ecotogether/internal/app"
	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Evaluate(ctx context.Context, sub model.Submission) (model.Evaluation, error)
	Confirm(ctx context.Context, id, reason string) (service.Confirmation, error)
	Balance(ctx context.Context, username string) (service.BalanceView, error)
	History(ctx context.Context, username string, limit int) ([]model.Transaction, error)
	ExportTransactions(ctx context.Context, w io.Writer, username string) error
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	submissionsHandler *SubmissionsHandler
	usersHandler       *UsersHandler
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	maxUploadBytes int64
	logger         logger.Logger
}

// WithMaxUploadBytes caps the multipart body of POST /submissions.
func WithMaxUploadBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxUploadBytes = n
		}
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	cfg := serverConfig{maxUploadBytes: defaultMaxUploadBytes, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(deps),
		submissionsHandler: NewSubmissionsHandler(deps, cfg.maxUploadBytes, cfg.logger),
		usersHandler:       NewUsersHandler(deps, cfg.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /submissions", MetricsMiddleware(s.submissionsHandler.HandleEvaluate, "submissions"))
	mux.HandleFunc("POST /submissions/{id}/confirm", MetricsMiddleware(s.submissionsHandler.HandleConfirm, "confirm"))
	mux.HandleFunc("GET /users/{username}/balance", MetricsMiddleware(s.usersHandler.HandleBalance, "balance"))
	mux.HandleFunc("GET /users/{username}/transactions", MetricsMiddleware(s.usersHandler.HandleTransactions, "transactions"))
	mux.HandleFunc("GET /users/{username}/transactions.xlsx", MetricsMiddleware(s.usersHandler.HandleExport, "transactions_xlsx"))
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Fields: fieldsOf(err)})
}

// statusFor maps API kinds and service sentinels to a status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrNoMedia):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrNotFound), errors.Is(err, service.ErrEvaluationNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, service.ErrAlreadyConfirmed):
		return http.StatusConflict, "already_confirmed"
	case errors.Is(err, ErrUnprocessable), errors.Is(err, service.ErrNotEligible):
		return http.StatusUnprocessableEntity, "not_eligible"
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, service.ErrAwardNotRecorded),
		errors.Is(err, repository.ErrLedger),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
