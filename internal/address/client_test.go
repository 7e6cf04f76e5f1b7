package address

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	provincesJSON = `[
		{"name": "Thành phố Hà Nội", "code": 1, "division_type": "thành phố trung ương", "districts": []},
		{"name": "Thành phố Hồ Chí Minh", "code": 79, "division_type": "thành phố trung ương", "districts": []}
	]`
	hcmJSON = `{"name": "Thành phố Hồ Chí Minh", "code": 79, "districts": [
		{"name": "Quận 1", "code": 760, "wards": []},
		{"name": "Quận 5", "code": 774, "wards": []}
	]}`
	district5JSON = `{"name": "Quận 5", "code": 774, "wards": [
		{"name": "Phường 11", "code": 27301},
		{"name": "Phường 12", "code": 27304}
	]}`
)

type fakeAPI struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.fail.Load() {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	switch r.URL.Path {
	case "/api/p/":
		_, _ = w.Write([]byte(provincesJSON))
	case "/api/p/79":
		_, _ = w.Write([]byte(hcmJSON))
	case "/api/d/774":
		_, _ = w.Write([]byte(district5JSON))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, cache Cache) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", time.Second, cache, time.Hour, zap.NewNop()), api
}

func TestProvinces(t *testing.T) {
	c, _ := newTestClient(t, NewMemoryCache("address"))

	provinces, err := c.Provinces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Division{
		{Code: "1", Name: "Thành phố Hà Nội"},
		{Code: "79", Name: "Thành phố Hồ Chí Minh"},
	}, provinces)
}

func TestDistrictsAndWards(t *testing.T) {
	c, _ := newTestClient(t, NewMemoryCache("address"))
	ctx := context.Background()

	districts, err := c.Districts(ctx, "79")
	require.NoError(t, err)
	require.Len(t, districts, 2)
	assert.Equal(t, "Quận 5", districts[1].Name)

	wards, err := c.Wards(ctx, "774")
	require.NoError(t, err)
	require.Len(t, wards, 2)
	assert.Equal(t, Division{Code: "27304", Name: "Phường 12"}, wards[1])
}

func TestLookupsAreCachedPerLevel(t *testing.T) {
	c, api := newTestClient(t, NewMemoryCache("address"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Provinces(ctx)
		require.NoError(t, err)
		_, err = c.Districts(ctx, "79")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), api.calls.Load())
}

func TestRedisCacheBacksLookups(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c, api := newTestClient(t, NewRedisCache(rdb, "address"))
	ctx := context.Background()

	_, err := c.Wards(ctx, "774")
	require.NoError(t, err)

	assert.True(t, mr.Exists("address:wards:774"))
	assert.Equal(t, time.Hour, mr.TTL("address:wards:774"))

	api.fail.Store(true)
	wards, err := c.Wards(ctx, "774")
	require.NoError(t, err)
	assert.Len(t, wards, 2)
	assert.Equal(t, int32(1), api.calls.Load())
}

func TestConcurrentLookupsShareOneRequest(t *testing.T) {
	c, api := newTestClient(t, NewMemoryCache("address"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Provinces(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fetched := api.calls.Load()
	assert.GreaterOrEqual(t, fetched, int32(1))
	assert.LessOrEqual(t, fetched, int32(10))

	_, err := c.Provinces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fetched, api.calls.Load())
}

func TestResolve(t *testing.T) {
	c, _ := newTestClient(t, NewMemoryCache("address"))
	ctx := context.Background()

	r, err := c.Resolve(ctx, "79", "774", "27301")
	require.NoError(t, err)
	assert.Equal(t, "Thành phố Hồ Chí Minh", r.Province.Name)
	assert.Equal(t, "Quận 5", r.District.Name)
	assert.Equal(t, "Phường 11", r.Ward.Name)

	r, err = c.Resolve(ctx, "1", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Thành phố Hà Nội", r.Province.Name)
	assert.Empty(t, r.District.Code)
}

func TestResolve_UnknownCodes(t *testing.T) {
	c, _ := newTestClient(t, NewMemoryCache("address"))
	ctx := context.Background()

	_, err := c.Resolve(ctx, "99", "", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve(ctx, "79", "999", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve(ctx, "79", "774", "1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Resolve(ctx, "79", "", "27301")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpstreamFailure(t *testing.T) {
	c, api := newTestClient(t, NewMemoryCache("address"))
	api.fail.Store(true)

	_, err := c.Provinces(context.Background())
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestMemoryCache_Expires(t *testing.T) {
	mc := NewMemoryCache("address")
	go mc.Start()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	require.NoError(t, mc.Set(ctx, "long", "kept", time.Hour))
	v, err := mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	// expired entries are dropped without being read again
	assert.Eventually(t, func() bool { return mc.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	v, err = mc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, v)
	v, err = mc.Get(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, "kept", v)
	assert.Equal(t, "address:wards:774", mc.GenerateKey(opWards, "774"))
}
