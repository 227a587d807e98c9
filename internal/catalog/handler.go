package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/platform/httpx"
)

// CartReader exposes the reservations held by a cart.
type CartReader interface {
	Reservations(ctx context.Context, cartID string) (Kind, []availability.Reservation, error)
}

// Handler serves sellable listings.
type Handler struct {
	logger  *slog.Logger
	service *Service
	carts   CartReader
}

// NewHandler constructs Handler. carts may be nil, in which case cart_id is ignored.
func NewHandler(logger *slog.Logger, service *Service, carts CartReader) *Handler {
	return &Handler{logger: logger, service: service, carts: carts}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.listing)
}

func (h *Handler) listing(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, err))
		return
	}
	var reservations []availability.Reservation
	if cartID := r.URL.Query().Get("cart_id"); cartID != "" && h.carts != nil {
		cartKind, res, err := h.carts.Reservations(r.Context(), cartID)
		if err != nil {
			if !errors.Is(err, httpx.ErrNotFound) {
				h.logger.Error("catalog cart lookup", slog.String("cart_id", cartID), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		if cartKind != kind {
			httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, fmt.Errorf("cart %s sells %s products", cartID, cartKind)))
			return
		}
		reservations = res
	}
	items, err := h.service.Listing(r.Context(), kind, reservations)
	if err != nil {
		h.logger.Error("catalog listing", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"kind": kind, "products": items})
}
