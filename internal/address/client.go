// Package address resolves Vietnamese administrative divisions
// (province, district, ward) through the provinces open API.
package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/bakery-storefront/pkg/circuitbreaker"
)

var (
	ErrNotFound = errors.New("address division not found")
	ErrUpstream = errors.New("address lookup upstream error")
)

const (
	DefaultCacheTTL = 24 * time.Hour

	opProvinces = "provinces"
	opDistricts = "districts"
	opWards     = "wards"
)

// Division is one node of the province > district > ward hierarchy.
type Division struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Resolved carries the names of a full shipping address selection.
type Resolved struct {
	Province Division
	District Division
	Ward     Division
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	ttl     time.Duration
	sfg     singleflight.Group
	breaker *circuitbreaker.Breaker[[]Division]
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, cache Cache, ttl time.Duration, logger *zap.Logger) *Client {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	settings := circuitbreaker.DefaultSettings("address")
	settings.Ignore = []error{ErrNotFound}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache:   cache,
		ttl:     ttl,
		breaker: circuitbreaker.New[[]Division](settings, logger),
		logger:  logger,
	}
}

func (c *Client) Provinces(ctx context.Context) ([]Division, error) {
	return c.lookup(ctx, opProvinces, "all", "/p/", false)
}

func (c *Client) Districts(ctx context.Context, provinceCode string) ([]Division, error) {
	return c.lookup(ctx, opDistricts, provinceCode, "/p/"+url.PathEscape(provinceCode)+"?depth=2", true)
}

func (c *Client) Wards(ctx context.Context, districtCode string) ([]Division, error) {
	return c.lookup(ctx, opWards, districtCode, "/d/"+url.PathEscape(districtCode)+"?depth=2", true)
}

// Resolve checks that the codes form a valid chain and returns their names.
// District and ward are optional; a ward requires its district.
func (c *Client) Resolve(ctx context.Context, provinceCode, districtCode, wardCode string) (*Resolved, error) {
	provinces, err := c.Provinces(ctx)
	if err != nil {
		return nil, err
	}
	var r Resolved
	if r.Province, err = find(provinces, provinceCode, "province"); err != nil {
		return nil, err
	}

	if districtCode == "" {
		if wardCode != "" {
			return nil, fmt.Errorf("%w: ward %s without district", ErrNotFound, wardCode)
		}
		return &r, nil
	}
	districts, err := c.Districts(ctx, provinceCode)
	if err != nil {
		return nil, err
	}
	if r.District, err = find(districts, districtCode, "district"); err != nil {
		return nil, err
	}

	if wardCode == "" {
		return &r, nil
	}
	wards, err := c.Wards(ctx, districtCode)
	if err != nil {
		return nil, err
	}
	if r.Ward, err = find(wards, wardCode, "ward"); err != nil {
		return nil, err
	}
	return &r, nil
}

func find(divisions []Division, code, level string) (Division, error) {
	for _, d := range divisions {
		if d.Code == code {
			return d, nil
		}
	}
	return Division{}, fmt.Errorf("%w: %s %s", ErrNotFound, level, code)
}

func (c *Client) lookup(ctx context.Context, op, code, path string, nested bool) ([]Division, error) {
	key := c.cache.GenerateKey(op, code)

	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		cached, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logger.Warn("address cache get failed", zap.String("key", key), zap.Error(err))
		}
		if cached != "" {
			var divisions []Division
			if err := json.Unmarshal([]byte(cached), &divisions); err == nil {
				return divisions, nil
			}
		}

		divisions, err := c.breaker.Execute(func() ([]Division, error) {
			return c.fetch(ctx, path, nested)
		})
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(divisions); err == nil {
			if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
				c.logger.Warn("address cache set failed", zap.String("key", key), zap.Error(err))
			}
		}
		return divisions, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Division), nil
}

type wireDivision struct {
	Code      int            `json:"code"`
	Name      string         `json:"name"`
	Districts []wireDivision `json:"districts"`
	Wards     []wireDivision `json:"wards"`
}

func (w wireDivision) children() []wireDivision {
	if len(w.Districts) > 0 {
		return w.Districts
	}
	return w.Wards
}

func (c *Client) fetch(ctx context.Context, path string, nested bool) ([]Division, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build address request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: GET %s returned %d", ErrUpstream, path, resp.StatusCode)
	}

	var wire []wireDivision
	if nested {
		var parent wireDivision
		if err := json.NewDecoder(resp.Body).Decode(&parent); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
		}
		wire = parent.children()
	} else if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}

	divisions := make([]Division, len(wire))
	for i, w := range wire {
		divisions[i] = Division{Code: strconv.Itoa(w.Code), Name: w.Name}
	}
	return divisions, nil
}
