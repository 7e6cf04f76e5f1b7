package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/address"
	"github.com/fjod/bakery-storefront/internal/cart"
	"github.com/fjod/bakery-storefront/internal/catalog"
	"github.com/fjod/bakery-storefront/internal/checkout"
	"github.com/fjod/bakery-storefront/internal/orders"
	"github.com/fjod/bakery-storefront/pkg/circuitbreaker"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps service errors onto HTTP statuses. Unknown errors are
// logged and reported as 500 without leaking their text.
func handleError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Code:    "validation_failed",
			Details: verr.Fields,
		})
	case errors.Is(err, checkout.ErrTermsNotAccepted):
		respondError(w, http.StatusUnprocessableEntity, "terms_not_accepted", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrQuantityLimit):
		respondError(w, http.StatusBadRequest, "quantity_limit", err.Error())
	case errors.Is(err, cart.ErrUnitTypeRequired):
		respondError(w, http.StatusBadRequest, "unit_type_required", err.Error())
	case errors.Is(err, orders.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, address.ErrNotFound):
		respondError(w, http.StatusNotFound, "address_not_found", err.Error())
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrStatusConflict):
		respondError(w, http.StatusConflict, "status_conflict", err.Error())
	case errors.Is(err, orders.ErrRejected):
		respondError(w, http.StatusUnprocessableEntity, "order_rejected", err.Error())
	case errors.Is(err, circuitbreaker.ErrOpen):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "upstream temporarily unavailable")
	case errors.Is(err, catalog.ErrUpstream),
		errors.Is(err, address.ErrUpstream),
		errors.Is(err, checkout.ErrAddressLookup),
		errors.Is(err, orders.ErrSubmitFailed):
		respondError(w, http.StatusBadGateway, "upstream_error", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timeout")
	default:
		requestLogger(r, logger).Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
