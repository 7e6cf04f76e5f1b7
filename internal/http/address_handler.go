package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/address"
)

type AddressDirectory interface {
	Provinces(ctx context.Context) ([]address.Division, error)
	Districts(ctx context.Context, provinceCode string) ([]address.Division, error)
	Wards(ctx context.Context, districtCode string) ([]address.Division, error)
}

type AddressHandler struct {
	directory AddressDirectory
	logger    *zap.Logger
	timeout   time.Duration
}

func NewAddressHandler(directory AddressDirectory, logger *zap.Logger, timeout time.Duration) *AddressHandler {
	return &AddressHandler{directory: directory, logger: logger, timeout: timeout}
}

type DivisionsResponse struct {
	Divisions []address.Division `json:"divisions"`
}

// GET /api/v1/addresses/provinces
func (h *AddressHandler) Provinces(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(ctx context.Context) ([]address.Division, error) {
		return h.directory.Provinces(ctx)
	})
}

// GET /api/v1/addresses/provinces/{code}/districts
func (h *AddressHandler) Districts(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	h.respond(w, r, func(ctx context.Context) ([]address.Division, error) {
		return h.directory.Districts(ctx, code)
	})
}

// GET /api/v1/addresses/districts/{code}/wards
func (h *AddressHandler) Wards(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	h.respond(w, r, func(ctx context.Context) ([]address.Division, error) {
		return h.directory.Wards(ctx, code)
	})
}

func (h *AddressHandler) respond(w http.ResponseWriter, r *http.Request, load func(context.Context) ([]address.Division, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	divisions, err := load(ctx)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}
	if divisions == nil {
		divisions = []address.Division{}
	}
	respondJSON(w, http.StatusOK, DivisionsResponse{Divisions: divisions})
}
