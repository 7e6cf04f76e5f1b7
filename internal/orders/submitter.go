package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/domain"
	"github.com/fjod/bakery-storefront/pkg/circuitbreaker"
)

var (
	ErrSubmitFailed = errors.New("order submission failed")
	ErrRejected     = errors.New("order rejected")
)

// Submitter hands a checkout's OrderRequest to whoever records orders.
type Submitter interface {
	Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderAck, error)
}

// Client submits orders to the remote order API.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker[*domain.OrderAck]
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	settings := circuitbreaker.DefaultSettings("orders")
	settings.Ignore = []error{ErrRejected}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: circuitbreaker.New[*domain.OrderAck](settings, logger),
		logger:  logger,
	}
}

func (c *Client) Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderAck, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal order request: %w", err)
	}

	return c.breaker.Execute(func() (*domain.OrderAck, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build order request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		// one key per checkout session
		httpReq.Header.Set("Idempotency-Key", req.SessionID)

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("%w: %d %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		if resp.StatusCode >= 300 {
			c.logger.Warn("order api failed", zap.Int("status", resp.StatusCode), zap.String("session_id", req.SessionID))
			return nil, fmt.Errorf("%w: status %d", ErrSubmitFailed, resp.StatusCode)
		}

		var ack domain.OrderAck
		if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
			return nil, fmt.Errorf("%w: decode acknowledgement: %v", ErrSubmitFailed, err)
		}
		return &ack, nil
	})
}

// Intake records orders directly in the order repository.
type Intake struct {
	repo OrderRepository
}

func NewIntake(repo OrderRepository) *Intake {
	return &Intake{repo: repo}
}

// Submit records req as a pending order. Resubmitting a session the same
// owner already placed returns the original acknowledgement.
func (i *Intake) Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderAck, error) {
	order := &domain.Order{
		ID:        uuid.New(),
		SessionID: req.SessionID,
		OwnerKey:  req.OwnerKey,
		UserID:    req.UserID,
		Request:   req,
		Status:    domain.OrderStatusPending,
	}
	if err := i.repo.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, ErrDuplicateSession) {
			existing, lookupErr := i.FindSession(ctx, req.OwnerKey, req.SessionID)
			if lookupErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrRejected, err)
			}
			return ackFor(existing), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	return ackFor(order), nil
}

// FindSession returns the order placed for sessionID by ownerKey. Sessions of
// other owners are reported as ErrOrderNotFound.
func (i *Intake) FindSession(ctx context.Context, ownerKey, sessionID string) (*domain.Order, error) {
	order, err := i.repo.GetOrderBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if order.OwnerKey != ownerKey {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func ackFor(order *domain.Order) *domain.OrderAck {
	return &domain.OrderAck{
		OrderID:   order.ID.String(),
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
	}
}
