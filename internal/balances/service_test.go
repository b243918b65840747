package balances

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/ledger/memstore"
	"github.com/yfarmers/feedledger/internal/rbac"
	"github.com/yfarmers/feedledger/internal/shared"
)

type countingSource struct {
	ledger.Store
	scans atomic.Int64
	err   error
}

func (c *countingSource) ListRecords(ctx context.Context, shop string) ([]ledger.Record, error) {
	c.scans.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Store.ListRecords(ctx, shop)
}

type staticCatalog struct{ cat catalog.Catalog }

func (s staticCatalog) Catalog(ctx context.Context) (catalog.Catalog, error) { return s.cat, nil }

func seedStore(t *testing.T) *memstore.Store {
	t.Helper()
	store := memstore.New()
	rec := ledger.NewRecord("Main", day1)
	rec.Append(creditSale("Ama", "", "2"))
	require.NoError(t, store.PutRecord(context.Background(), "Main", day1, rec, false))
	return store
}

func newCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestServiceCachesUntilBump(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t)
	source := &countingSource{Store: store}
	cache := newCache(t)
	svc := NewService(source, staticCatalog{testCatalog()}, []string{"Main", "Annex"}, cache, nil)

	first, err := svc.Debtors(ctx)
	require.NoError(t, err)
	assert.True(t, d("2000").Equal(first.TotalOutstanding))
	scans := source.scans.Load()

	_, err = svc.Debtors(ctx)
	require.NoError(t, err)
	assert.Equal(t, scans, source.scans.Load())

	rec, _, err := store.GetRecord(ctx, "Main", day1)
	require.NoError(t, err)
	rec.Append(payment(ledger.KindDebtPayments, "Ama", "", "500"))
	require.NoError(t, store.PutRecord(ctx, "Main", day1, rec, false))
	require.NoError(t, cache.Bump(ctx))

	second, err := svc.Debtors(ctx)
	require.NoError(t, err)
	assert.True(t, d("1500").Equal(second.TotalOutstanding))
	assert.Greater(t, source.scans.Load(), scans)
}

func TestServiceWithoutCache(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{Store: seedStore(t)}
	svc := NewService(source, staticCatalog{testCatalog()}, []string{"Main"}, nil, nil)

	nv, err := svc.NetValue(ctx, day1)
	require.NoError(t, err)
	assert.True(t, d("2000").Equal(nv.DebtorsValue))
	assert.True(t, nv.Date.Equal(day1))

	_, err = svc.NetValue(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), source.scans.Load())
}

func TestServiceStorageFailure(t *testing.T) {
	source := &countingSource{Store: memstore.New(), err: errors.New("connection reset")}
	svc := NewService(source, staticCatalog{testCatalog()}, []string{"Main"}, nil, nil)

	_, err := svc.Creditors(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestWarmFillsCache(t *testing.T) {
	ctx := context.Background()
	source := &countingSource{Store: seedStore(t)}
	svc := NewService(source, staticCatalog{testCatalog()}, []string{"Main"}, newCache(t), nil)

	require.NoError(t, svc.Warm(ctx, day1))
	scans := source.scans.Load()
	_, err := svc.SalesSummary(ctx, day1)
	require.NoError(t, err)
	_, err = svc.NetValue(ctx, day1)
	require.NoError(t, err)
	assert.Equal(t, scans, source.scans.Load())
}

func TestCacheSubscribeSeesBump(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache := newCache(t)
	versions := cache.Subscribe(ctx)

	require.Eventually(t, func() bool {
		_ = cache.Bump(ctx)
		select {
		case v := <-versions:
			return v > 0
		default:
			return false
		}
	}, time.Second, 20*time.Millisecond)
}

func TestHandlerRoutes(t *testing.T) {
	svc := NewService(&countingSource{Store: seedStore(t)}, staticCatalog{testCatalog()}, []string{"Main"}, nil, nil)
	h := NewHandler(nil, svc, rbac.Middleware{})
	router := chi.NewRouter()
	router.Use(rbac.Middleware{}.Identify)
	h.MountRoutes(router)

	req := httptest.NewRequest(http.MethodGet, "/balances/debtors", nil)
	req.Header.Set("X-Actor-ID", "u1")
	req.Header.Set("X-Actor-Role", string(shared.RoleManager))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Ama"`)

	req = httptest.NewRequest(http.MethodGet, "/balances/net-value?date=01-03-2024", nil)
	req.Header.Set("X-Actor-ID", "u2")
	req.Header.Set("X-Actor-Role", string(shared.RoleAttendant))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/balances/sales?date=31-02-2024", nil)
	req.Header.Set("X-Actor-ID", "u1")
	req.Header.Set("X-Actor-Role", string(shared.RoleManager))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
