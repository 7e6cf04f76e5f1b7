package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/pkg/circuitbreaker"
)

// Client talks to the catalog REST API.
type Client struct {
	baseURL  string
	http     *http.Client
	products *circuitbreaker.Breaker[*domain.Product]
	lists    *circuitbreaker.Breaker[[]domain.Product]
	logger   *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	settings := circuitbreaker.DefaultSettings("catalog")
	settings.Ignore = []error{ErrProductNotFound}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		products: circuitbreaker.New[*domain.Product](settings, logger),
		lists:    circuitbreaker.New[[]domain.Product](settings, logger),
		logger:   logger,
	}
}

// wireProduct accepts documents that carry their id as "_id".
type wireProduct struct {
	domain.Product
	MongoID string `json:"_id"`
}

func (w wireProduct) normalize() domain.Product {
	p := w.Product
	if p.ID == "" {
		p.ID = w.MongoID
	}
	return p
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return c.products.Execute(func() (*domain.Product, error) {
		var w wireProduct
		if err := c.get(ctx, "/products/"+url.PathEscape(id), &w); err != nil {
			return nil, err
		}
		p := w.normalize()
		return &p, nil
	})
}

func (c *Client) ListProducts(ctx context.Context, f Filter) ([]domain.Product, error) {
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("category", f.CategoryID)
	}
	if f.Featured {
		q.Set("featured", "true")
	}
	if f.BestSeller {
		q.Set("bestSeller", "true")
	}
	if f.NewArrival {
		q.Set("newArrival", "true")
	}
	path := "/products"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	return c.lists.Execute(func() ([]domain.Product, error) {
		var wire []wireProduct
		if err := c.get(ctx, path, &wire); err != nil {
			return nil, err
		}
		products := make([]domain.Product, len(wire))
		for i, w := range wire {
			products[i] = w.normalize()
		}
		return products, nil
	})
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProductNotFound
	case resp.StatusCode >= 300:
		c.logger.Warn("catalog request failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: GET %s returned %d", ErrUpstream, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}
