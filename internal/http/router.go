package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/fjod/bakery-storefront/internal/catalog"
	"github.com/fjod/bakery-storefront/internal/pricing"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps wires the handlers. Orders is optional: without it the order history
// and back-office routes are not mounted.
type Deps struct {
	Catalog    catalog.Catalog
	Carts      CartService
	Calculator *pricing.Calculator
	Events     CartSubscriber
	Addresses  AddressDirectory
	Checkout   CheckoutService
	Orders     OrderService
	Health     func(ctx context.Context) error

	Logger          *zap.Logger
	JWTSecret       string
	SecureCookies   bool
	DefaultLanguage language.Tag
	RequestTimeout  time.Duration
}

// NewRouter builds the storefront route table wrapped in OpenTelemetry
// server instrumentation.
func NewRouter(d Deps) http.Handler {
	products := NewProductHandler(d.Catalog, d.Logger, d.RequestTimeout)
	carts := NewCartHandler(d.Carts, d.Calculator, d.Logger, d.RequestTimeout)
	events := NewEventsHandler(d.Events, d.Carts, d.Logger, d.RequestTimeout)
	addresses := NewAddressHandler(d.Addresses, d.Logger, d.RequestTimeout)
	checkout := NewCheckoutHandler(d.Checkout, d.Logger, d.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if d.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Health(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequestSize(maxRequestBodySize))
		r.Use(LanguageMiddleware(d.DefaultLanguage))
		r.Use(OwnerMiddleware(d.JWTSecret, d.SecureCookies))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Get("/{id}", products.Get)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{item_id}", carts.UpdateQuantity)
			r.Delete("/items/{item_id}", carts.RemoveItem)
			r.Get("/events", events.Stream)
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/provinces", addresses.Provinces)
			r.Get("/provinces/{code}/districts", addresses.Districts)
			r.Get("/districts/{code}/wards", addresses.Wards)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/summary", checkout.Summary)
			r.Post("/", checkout.PlaceOrder)
		})

		if d.Orders != nil {
			orders := NewOrdersHandler(d.Orders, d.Logger, d.RequestTimeout)

			r.Route("/orders", func(r chi.Router) {
				r.Use(RequireUser)
				r.Get("/", orders.ListOrders)
				r.Get("/{order_id}", orders.GetOrder)
			})

			r.Route("/admin/orders", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/", orders.AdminListOrders)
				r.Patch("/{order_id}/status", orders.AdminUpdateStatus)
			})
		}
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }))
}
