package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/counterpos/counterpos/internal/platform/httpx"
	"github.com/counterpos/counterpos/internal/units"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Get("/items/{id}", h.getItem)
	r.Get("/low-stock", h.lowStock)
}

type itemResponse struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	UnitType        units.Type      `json:"unit_type"`
	Quantity        float64         `json:"quantity"`
	StorageUnit     string          `json:"storage_unit"`
	DisplayQuantity float64         `json:"display_quantity"`
	DisplayUnit     string          `json:"display_unit"`
	CostPerBaseUnit decimal.Decimal `json:"cost_per_base_unit"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	ReorderLevel    float64         `json:"reorder_level"`
	LowStock        bool            `json:"low_stock"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toResponse(item Item) itemResponse {
	return itemResponse{
		ID:              item.ID,
		Name:            item.Name,
		UnitType:        item.Unit,
		Quantity:        item.Quantity,
		StorageUnit:     item.Unit.StorageLabel(),
		DisplayQuantity: item.DisplayQuantity(),
		DisplayUnit:     item.Unit.DisplayLabel(),
		CostPerBaseUnit: item.CostPerBaseUnit,
		SellingPrice:    item.SellingPrice,
		ReorderLevel:    item.ReorderLevel,
		LowStock:        item.BelowReorder(),
		UpdatedAt:       item.UpdatedAt,
	}
}

func toResponses(items []Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	return out
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		InStockOnly: q.Get("in_stock") == "1" || q.Get("in_stock") == "true",
		Search:      q.Get("q"),
	}
	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list inventory", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": toResponses(items)})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get inventory item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(item))
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "list low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": toResponses(items)})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrItemNotFound) {
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, err))
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
