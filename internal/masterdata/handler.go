package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/counterpos/counterpos/internal/platform/httpx"
)

// Handler manages master data endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/payment-methods", h.listPaymentMethods)
	r.Get("/customer-types", h.listCustomerTypes)
	r.Get("/settings", h.settings)
}

func (h *Handler) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListPaymentMethods(r.Context())
	if err != nil {
		h.logger.Error("list payment methods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if methods == nil {
		methods = []PaymentMethod{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payment_methods": methods})
}

func (h *Handler) listCustomerTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListCustomerTypes(r.Context())
	if err != nil {
		h.logger.Error("list customer types", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if types == nil {
		types = []CustomerType{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customer_types": types})
}

func (h *Handler) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.logger.Error("load settings", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}
