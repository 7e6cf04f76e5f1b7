package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/checkout"
	"github.com/fjod/bakery-storefront/internal/domain"
)

type CheckoutService interface {
	Preview(ctx context.Context, owner domain.OwnerScope, promoCode string) (*checkout.Summary, error)
	PlaceOrder(ctx context.Context, owner domain.OwnerScope, form checkout.Form) (*checkout.Result, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	logger   *zap.Logger
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, logger *zap.Logger, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		logger:   logger,
		timeout:  timeout,
	}
}

type SummaryResponseDTO struct {
	*checkout.Summary
	Display DisplayTotals `json:"display"`
}

type CheckoutResponseDTO struct {
	OrderID   string             `json:"orderId"`
	SessionID string             `json:"sessionId"`
	Status    domain.OrderStatus `json:"status"`
	Totals    domain.OrderTotals `json:"totals"`
	Display   DisplayTotals      `json:"display"`
	CreatedAt time.Time          `json:"createdAt"`
}

// GET /api/v1/checkout/summary?promo=
func (h *CheckoutHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.checkout.Preview(ctx, getOwner(r.Context()), r.URL.Query().Get("promo"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, SummaryResponseDTO{
		Summary: summary,
		Display: displayTotals(summary.Totals, getLanguage(r.Context())),
	})
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var form checkout.Form
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	form.IdempotencyKey = r.Header.Get("Idempotency-Key")
	lang := getLanguage(r.Context())
	if form.Language == "" {
		form.Language = lang.String()
	}

	res, err := h.checkout.PlaceOrder(ctx, getOwner(r.Context()), form)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{
		OrderID:   res.Ack.OrderID,
		SessionID: res.Request.SessionID,
		Status:    res.Ack.Status,
		Totals:    res.Request.Totals,
		Display:   displayTotals(res.Request.Totals, lang),
		CreatedAt: res.Ack.CreatedAt,
	})
}
