package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/bakery-storefront/internal/domain"
)

func dialCartEvents(t *testing.T, srv *httptest.Server, guest string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/cart/events"
	header := http.Header{}
	header.Set("Cookie", GuestCookieName+"="+guest)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	})
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.CartChanged {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var evt domain.CartChanged
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestCartEvents_SnapshotThenChanges(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	guest := uuid.NewString()
	key := domain.GuestScope(guest).StorageKey()
	conn := dialCartEvents(t, srv, guest)

	snapshot := readEvent(t, conn)
	assert.Equal(t, key, snapshot.OwnerKey)
	assert.Equal(t, 0, snapshot.ItemCount)

	body, err := json.Marshal(AddItemRequestDTO{ProductID: "egg-tart", Quantity: 2})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/cart/items", bytes.NewReader(body))
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: GuestCookieName, Value: guest})
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	evt := readEvent(t, conn)
	assert.Equal(t, key, evt.OwnerKey)
	assert.Equal(t, 2, evt.ItemCount)
	assert.True(t, evt.Total.Equal(decimal.NewFromInt(90000)))
}

func TestCartEvents_OnlyOwnCart(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	watcher := uuid.NewString()
	conn := dialCartEvents(t, srv, watcher)
	readEvent(t, conn)

	_, err := env.store.AddProduct(testContext(t), domain.GuestScope(uuid.NewString()), "egg-tart", 1, "")
	require.NoError(t, err)
	_, err = env.store.AddProduct(testContext(t), domain.GuestScope(watcher), "cream-puff", 1, "")
	require.NoError(t, err)

	evt := readEvent(t, conn)
	assert.Equal(t, domain.GuestScope(watcher).StorageKey(), evt.OwnerKey)
	assert.Equal(t, 1, evt.ItemCount)
}

func TestCartEvents_UnsubscribesOnClose(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	guest := uuid.NewString()
	key := domain.GuestScope(guest).StorageKey()
	conn := dialCartEvents(t, srv, guest)
	readEvent(t, conn)
	require.Equal(t, 1, env.bus.Subscribers(key))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return env.bus.Subscribers(key) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// testContext stands in for testing.T.Context, which needs Go 1.24.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
