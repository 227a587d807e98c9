package recipes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/platform/httpx"
)

// CostPreviewRequest carries an unsaved recipe.
type CostPreviewRequest struct {
	SellingPrice decimal.Decimal     `json:"selling_price"`
	Lines        []CostPreviewLineReq `json:"lines" validate:"required,min=1,dive"`
}

// CostPreviewLineReq is one draft recipe line.
type CostPreviewLineReq struct {
	IngredientID    int64   `json:"ingredient_id" validate:"required,gt=0"`
	QuantityPerUnit float64 `json:"quantity_per_unit" validate:"required,gt=0"`
}

type productResponse struct {
	Product
	Cost *CostBreakdown `json:"cost,omitempty"`
}

// Handler wires HTTP endpoints for recipes.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers recipe routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/cost-preview", h.costPreview)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list recipes", err)
		return
	}
	if products == nil {
		products = []Product{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, cost, err := h.service.Cost(r.Context(), id)
	if errors.Is(err, ErrUnknownIngredient) || errors.Is(err, ErrInvalidLineQuantity) {
		// A broken recipe is still viewable; it just has no cost.
		product, err = h.service.Get(r.Context(), id)
		if err != nil {
			h.fail(w, "get recipe", err)
			return
		}
		httpx.JSON(w, http.StatusOK, productResponse{Product: product})
		return
	}
	if err != nil {
		h.fail(w, "get recipe", err)
		return
	}
	httpx.JSON(w, http.StatusOK, productResponse{Product: product, Cost: &cost})
}

func (h *Handler) costPreview(w http.ResponseWriter, r *http.Request) {
	var req CostPreviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, Line{IngredientID: l.IngredientID, QuantityPerUnit: l.QuantityPerUnit})
	}
	breakdown, err := h.service.Preview(r.Context(), lines, req.SellingPrice)
	if err != nil {
		h.fail(w, "cost preview", err)
		return
	}
	httpx.JSON(w, http.StatusOK, breakdown)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, err))
	case errors.Is(err, ErrUnknownIngredient), errors.Is(err, ErrInvalidLineQuantity):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
