package cart

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/counterpos/counterpos/internal/availability"
	"github.com/counterpos/counterpos/internal/catalog"
	"github.com/counterpos/counterpos/internal/platform/httpx"
)

// CreateCartRequest opens a cart.
type CreateCartRequest struct {
	Kind string `json:"kind" validate:"required,oneof=simple recipe"`
}

// LineRequest sets a line quantity. Zero is allowed for updates, where it
// removes the line.
type LineRequest struct {
	Quantity *float64 `json:"quantity" validate:"required"`
}

// SelectionRequest chooses the checkout metadata.
type SelectionRequest struct {
	PaymentMethodID *int64 `json:"payment_method_id" validate:"omitempty,gt=0"`
	CustomerTypeID  *int64 `json:"customer_type_id" validate:"omitempty,gt=0"`
	DineOption      string `json:"dine_option" validate:"omitempty,oneof=dine_in takeout"`
}

// Handler exposes cart endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.remove)
	r.Put("/{id}/lines/{productID}", h.addLine)
	r.Patch("/{id}/lines/{productID}", h.setQuantity)
	r.Delete("/{id}/lines/{productID}", h.removeLine)
	r.Put("/{id}/selections", h.selections)
	r.Post("/{id}/clear", h.clear)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateCartRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Create(r.Context(), catalog.Kind(req.Kind))
	if err != nil {
		h.fail(w, "create cart", err)
		return
	}
	h.render(w, r, http.StatusCreated, c)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get cart", err)
		return
	}
	h.render(w, r, http.StatusOK, c)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	productID, qty, ok := h.lineInput(w, r)
	if !ok {
		return
	}
	c, err := h.service.Add(r.Context(), chi.URLParam(r, "id"), productID, qty)
	if err != nil {
		h.fail(w, "add cart line", err)
		return
	}
	h.render(w, r, http.StatusOK, c)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	productID, qty, ok := h.lineInput(w, r)
	if !ok {
		return
	}
	c, err := h.service.SetQuantity(r.Context(), chi.URLParam(r, "id"), productID, qty)
	if err != nil {
		h.fail(w, "set cart quantity", err)
		return
	}
	h.render(w, r, http.StatusOK, c)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.Remove(r.Context(), chi.URLParam(r, "id"), productID)
	if err != nil {
		h.fail(w, "remove cart line", err)
		return
	}
	h.render(w, r, http.StatusOK, c)
}

func (h *Handler) selections(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sel := Selection{PaymentMethodID: req.PaymentMethodID, CustomerTypeID: req.CustomerTypeID, DineOption: DineOption(req.DineOption)}
	c, err := h.service.Select(r.Context(), chi.URLParam(r, "id"), sel)
	if err != nil {
		h.fail(w, "select cart options", err)
		return
	}
	h.render(w, r, http.StatusOK, c)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Clear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "clear cart", err)
		return
	}
	h.render(w, r, http.StatusOK, c)
}

func (h *Handler) lineInput(w http.ResponseWriter, r *http.Request) (int64, float64, bool) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	var req LineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	return productID, *req.Quantity, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, c Cart) {
	view, err := h.service.View(r.Context(), c)
	if err != nil {
		h.fail(w, "render cart", err)
		return
	}
	httpx.JSON(w, status, view)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
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
	case errors.Is(err, catalog.ErrUnknownKind):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
		return
	case errors.Is(err, httpx.ErrNotFound), errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrConflict):
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
