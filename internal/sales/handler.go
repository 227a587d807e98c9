package sales

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/shared"
)

// CancelRequest carries the optional cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason" validate:"max=200"`
}

// Handler manages sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/{id}", h.showTransaction)
	r.Post("/transactions/{id}/cancel", h.cancelTransaction)
	r.Get("/transactions/{id}/receipt.pdf", h.receipt)
	r.Get("/summary", h.summary)
}

type listResponse struct {
	Transactions []Transaction     `json:"transactions"`
	Pagination   shared.Pagination `json:"pagination"`
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{}
	var err error
	if filter.From, err = h.parseDate(q.Get("from"), time.Time{}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = h.parseDate(q.Get("to"), time.Time{}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !filter.To.IsZero() {
		filter.To = filter.To.AddDate(0, 0, 1)
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	txs, page, err := h.service.ListTransactions(r.Context(), filter)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{Transactions: txs, Pagination: page})
}

func (h *Handler) showTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) cancelTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	tx, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.fail(w, "cancel transaction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tx)
}

func (h *Handler) receipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	pdf, err := h.service.Receipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			httpx.RespondError(w, err)
			return
		}
		h.logger.Error("render receipt", slog.String("transaction_id", id.String()), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=receipt-%s.pdf", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	today := time.Now()
	from, err := h.parseDate(r.URL.Query().Get("from"), today)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := h.parseDate(r.URL.Query().Get("to"), from)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sum, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		h.fail(w, "sales summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *Handler) transactionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, ErrTransactionNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) parseDate(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, h.service.opts.Location)
	if err != nil {
		return time.Time{}, httpx.Wrap(httpx.ErrValidation, fmt.Errorf("date %q must be YYYY-MM-DD", raw))
	}
	return t, nil
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrConflict):
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
