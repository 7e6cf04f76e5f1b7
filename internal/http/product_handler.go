package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/fjod/bakery-storefront/internal/catalog"
	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/internal/pricing"
)

type ProductHandler struct {
	catalog catalog.Catalog
	logger  *zap.Logger
	timeout time.Duration
}

func NewProductHandler(c catalog.Catalog, logger *zap.Logger, timeout time.Duration) *ProductHandler {
	return &ProductHandler{
		catalog: c,
		logger:  logger,
		timeout: timeout,
	}
}

type UnitOptionResponse struct {
	UnitType     string          `json:"unitType"`
	Price        decimal.Decimal `json:"price"`
	DisplayPrice string          `json:"displayPrice"`
	Stock        int             `json:"stock"`
}

// ProductResponse is a product rendered for the request's language. Price is
// the discount price when the product has one, with the regular price moved
// to ListPrice.
type ProductResponse struct {
	ID               string               `json:"id"`
	Name             string               `json:"name"`
	Description      string               `json:"description,omitempty"`
	Price            decimal.Decimal      `json:"price"`
	DisplayPrice     string               `json:"displayPrice"`
	ListPrice        *decimal.Decimal     `json:"listPrice,omitempty"`
	DisplayListPrice string               `json:"displayListPrice,omitempty"`
	UnitOptions      []UnitOptionResponse `json:"unitOptions,omitempty"`
	Image            string               `json:"image,omitempty"`
	CategoryID       string               `json:"categoryId,omitempty"`
	Featured         bool                 `json:"featured"`
	BestSeller       bool                 `json:"bestSeller"`
	NewArrival       bool                 `json:"newArrival"`
	InStock          bool                 `json:"inStock"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

// GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	filter := catalog.Filter{CategoryID: q.Get("category")}
	for name, dst := range map[string]*bool{
		"featured":   &filter.Featured,
		"bestSeller": &filter.BestSeller,
		"newArrival": &filter.NewArrival,
	} {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_filter", name+" must be a boolean")
				return
			}
			*dst = v
		}
	}

	res, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	lang := getLanguage(r.Context())
	products := make([]ProductResponse, len(res))
	for i := range res {
		products[i] = toProductResponse(&res[i], lang)
	}

	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products})
}

// GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toProductResponse(p, getLanguage(r.Context())))
}

func toProductResponse(p *domain.Product, lang language.Tag) ProductResponse {
	price := p.Price
	if p.DiscountPrice != nil && p.DiscountPrice.LessThan(p.Price) {
		price = *p.DiscountPrice
	}
	resp := ProductResponse{
		ID:           p.ID,
		Name:         p.LocalizedName(lang),
		Description:  p.Description,
		Price:        price,
		DisplayPrice: pricing.FormatPrice(price, lang),
		Image:        p.MainImage,
		CategoryID:   p.Category.ID(),
		Featured:     p.Featured,
		BestSeller:   p.BestSeller,
		NewArrival:   p.NewArrival,
		InStock:      p.InStock(),
	}
	if !price.Equal(p.Price) {
		list := p.Price
		resp.ListPrice = &list
		resp.DisplayListPrice = pricing.FormatPrice(list, lang)
	}
	for _, u := range p.UnitOptions {
		resp.UnitOptions = append(resp.UnitOptions, UnitOptionResponse{
			UnitType:     u.UnitType,
			Price:        u.Price,
			DisplayPrice: pricing.FormatPrice(u.Price, lang),
			Stock:        u.Stock,
		})
	}
	return resp
}
