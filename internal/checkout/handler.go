package checkout

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/platform/httpx"
)

// IdempotencyHeader lets clients make a checkout safe to resubmit.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes the checkout endpoint under the cart routes.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers POST /{id}/checkout.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{id}/checkout", h.checkout)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(key) > 128 {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("idempotency key longer than 128 characters")))
		return
	}
	res, err := h.service.Checkout(r.Context(), chi.URLParam(r, "id"), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	var shortage *availability.ShortageError
	switch {
	case errors.As(err, &shortage):
		httpx.JSON(w, http.StatusConflict, httpx.ProblemDetail{
			Title:  "Insufficient Stock",
			Status: http.StatusConflict,
			Detail: shortage.Error(),
		})
		return
	case errors.Is(err, availability.ErrNoRecipe):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrConflict, err))
		return
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrConflict):
	default:
		h.logger.Error("checkout", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
