package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/fjod/bakery-storefront/internal/cart"
	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/internal/pricing"
)

// CartService is the subset of cart.Store the handlers drive.
type CartService interface {
	GetItems(ctx context.Context, owner domain.OwnerScope) ([]domain.CartLineItem, error)
	AddProduct(ctx context.Context, owner domain.OwnerScope, productID string, quantity int, unitType string) ([]domain.CartLineItem, error)
	UpdateQuantity(ctx context.Context, owner domain.OwnerScope, itemID string, quantity int) ([]domain.CartLineItem, error)
	RemoveItem(ctx context.Context, owner domain.OwnerScope, itemID string) ([]domain.CartLineItem, error)
	Clear(ctx context.Context, owner domain.OwnerScope) error
}

type CartHandler struct {
	carts      CartService
	calculator *pricing.Calculator
	logger     *zap.Logger
	timeout    time.Duration
}

func NewCartHandler(carts CartService, calculator *pricing.Calculator, logger *zap.Logger, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:      carts,
		calculator: calculator,
		logger:     logger,
		timeout:    timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitType  string `json:"unitType,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartItemResponse struct {
	domain.CartLineItem
	DisplayName      string          `json:"displayName"`
	LineTotal        decimal.Decimal `json:"lineTotal"`
	DisplayPrice     string          `json:"displayPrice"`
	DisplayLineTotal string          `json:"displayLineTotal"`
}

type DisplayTotals struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Discount string `json:"discount"`
	Total    string `json:"total"`
}

type CartResponse struct {
	Items     []CartItemResponse `json:"items"`
	ItemCount int                `json:"itemCount"`
	Totals    domain.OrderTotals `json:"totals"`
	Display   DisplayTotals      `json:"display"`
}

// GET /api/v1/cart?promo=
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	items, err := h.carts.GetItems(ctx, getOwner(r.Context()))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, h.render(items, r.URL.Query().Get("promo"), getLanguage(r.Context())))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > cart.MaxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	items, err := h.carts.AddProduct(ctx, getOwner(r.Context()), req.ProductID, req.Quantity, req.UnitType)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, h.render(items, r.URL.Query().Get("promo"), getLanguage(r.Context())))
}

// PUT /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "missing_item_id", "item_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}
	if *req.Quantity > cart.MaxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not exceed 99")
		return
	}

	items, err := h.carts.UpdateQuantity(ctx, getOwner(r.Context()), itemID, *req.Quantity)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, h.render(items, r.URL.Query().Get("promo"), getLanguage(r.Context())))
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID := chi.URLParam(r, "item_id")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "missing_item_id", "item_id is required")
		return
	}

	items, err := h.carts.RemoveItem(ctx, getOwner(r.Context()), itemID)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, h.render(items, r.URL.Query().Get("promo"), getLanguage(r.Context())))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.Clear(ctx, getOwner(r.Context())); err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) render(items []domain.CartLineItem, promo string, lang language.Tag) CartResponse {
	totals := h.calculator.Calculate(items, promo)
	resp := CartResponse{
		Items:     make([]CartItemResponse, len(items)),
		ItemCount: cart.ItemCount(items),
		Totals:    totals,
		Display:   displayTotals(totals, lang),
	}
	for i, it := range items {
		lineTotal := it.LineTotal()
		resp.Items[i] = CartItemResponse{
			CartLineItem:     it,
			DisplayName:      localizedItemName(it, lang),
			LineTotal:        lineTotal,
			DisplayPrice:     pricing.FormatPrice(it.Price, lang),
			DisplayLineTotal: pricing.FormatPrice(lineTotal, lang),
		}
	}
	return resp
}

func displayTotals(t domain.OrderTotals, lang language.Tag) DisplayTotals {
	return DisplayTotals{
		Subtotal: pricing.FormatPrice(t.Subtotal, lang),
		Shipping: pricing.FormatPrice(t.Shipping, lang),
		Discount: pricing.FormatPrice(t.Discount, lang),
		Total:    pricing.FormatPrice(t.Total, lang),
	}
}

func localizedItemName(it domain.CartLineItem, lang language.Tag) string {
	p := domain.Product{Name: it.Name, NameZh: it.NameZh}
	return p.LocalizedName(lang)
}
