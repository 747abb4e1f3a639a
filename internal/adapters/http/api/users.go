package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/ecotogether/internal/adapters/export"
	"github.com/okian/ecotogether/internal/domain/model"
	"github.com/okian/ecotogether/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UsersHandler serves balance and history reads.
type UsersHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps Dependencies, log logger.Logger) *UsersHandler {
	return &UsersHandler{deps: deps, log: log}
}

type historyQuery struct {
	Limit int `validate:"gte=0,lte=10000"`
}

type historyResponse struct {
	Username     string              `json:"username"`
	Transactions []model.Transaction `json:"transactions"`
}

// HandleBalance handles GET /users/{username}/balance.
func (h *UsersHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_balance"
	b, err := h.deps.Balance(r.Context(), r.PathValue("username"))
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleTransactions handles GET /users/{username}/transactions?limit=N.
func (h *UsersHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_transactions"

	var q historyQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, WrapKind(op, ErrBadRequest, err))
			return
		}
		q.Limit = n
	}
	if err := validateStruct(q); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	username := r.PathValue("username")
	txs, err := h.deps.History(r.Context(), username, q.Limit)
	if err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Username: username, Transactions: txs})
}

// HandleExport handles GET /users/{username}/transactions.xlsx.
func (h *UsersHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_transactions"
	username := r.PathValue("username")

	// Buffer so a failure can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.deps.ExportTransactions(r.Context(), &buf, username); err != nil {
		h.fail(w, r, Wrap(op, err))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+export.TransactionsFilename(username, time.Now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *UsersHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", logger.String("error", describe(err)))
	}
	writeError(w, err)
}
