package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fjod/bakery-storefront/internal/cart"
	"github.com/fjod/bakery-storefront/internal/domain"
)

const (
	subscriberBuffer = 16
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
)

type CartSubscriber interface {
	Subscribe(ownerKey string, buffer int) (<-chan domain.CartChanged, func())
}

// EventsHandler streams CartChanged events for the caller's cart over a
// websocket so other tabs and devices refresh their badge and totals.
type EventsHandler struct {
	bus      CartSubscriber
	carts    CartService
	upgrader websocket.Upgrader
	logger   *zap.Logger
	timeout  time.Duration
}

func NewEventsHandler(bus CartSubscriber, carts CartService, logger *zap.Logger, timeout time.Duration) *EventsHandler {
	return &EventsHandler{
		bus:   bus,
		carts: carts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		timeout: timeout,
	}
}

// GET /api/v1/cart/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	owner := getOwner(r.Context())
	key := owner.StorageKey()
	log := requestLogger(r, h.logger).With(zap.String("owner_key", key))

	// subscribe before the snapshot so no change falls between the two
	events, unsubscribe := h.bus.Subscribe(key, subscriberBuffer)
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if snapshot, err := h.snapshot(r.Context(), owner); err != nil {
		log.Warn("failed to load cart snapshot", zap.Error(err))
	} else if err := writeJSON(conn, snapshot); err != nil {
		return
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(conn, evt); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *EventsHandler) snapshot(ctx context.Context, owner domain.OwnerScope) (domain.CartChanged, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	items, err := h.carts.GetItems(ctx, owner)
	if err != nil {
		return domain.CartChanged{}, err
	}
	return domain.CartChanged{
		OwnerKey:  owner.StorageKey(),
		ItemCount: cart.ItemCount(items),
		Total:     cart.Total(items),
		At:        time.Now().UTC(),
	}, nil
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}
