package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/rbac"
	"github.com/yfarmers/feedledger/internal/shared"
)

type countingNotifier struct {
	bumps int
}

func (n *countingNotifier) Bump(ctx context.Context) error {
	n.bumps++
	return nil
}

type failingRepo struct {
	Repository
}

func (failingRepo) ListProducts(ctx context.Context) ([]Product, error) {
	return nil, errors.New("connection refused")
}

func TestCatalogRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]Product{{ID: "X"}, {ID: "X"}})
	require.ErrorIs(t, err, ErrDuplicateProduct)
}

func TestDefaultCatalogPrices(t *testing.T) {
	c := MustNew(DefaultProducts())
	require.Equal(t, 7, c.Len())
	assert.Equal(t, "STARTER MASH", c.IDs()[0])
	assert.True(t, decimal.NewFromInt(4600).Equal(c.SellingPrice("STARTER MASH")))
	assert.True(t, c.SellingPrice("UNKNOWN").IsZero())
}

func TestServiceUpsertValidatesAndBumps(t *testing.T) {
	notifier := &countingNotifier{}
	svc := NewService(NewMemoryRepository(DefaultProducts()), notifier, nil)
	ctx := context.Background()

	_, err := svc.Upsert(ctx, ProductInput{ID: " ", Name: "Blank"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Upsert(ctx, ProductInput{ID: "X", Name: "Grower", SellingPrice: decimal.NewFromInt(-1)})
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "selling_price", vErr.Field)
	assert.Equal(t, 0, notifier.bumps)

	p, err := svc.Upsert(ctx, ProductInput{ID: "X", Name: "Grower", CostPrice: decimal.NewFromInt(4000), SellingPrice: decimal.NewFromInt(4600)})
	require.NoError(t, err)
	assert.Equal(t, "X", p.ID)
	assert.Equal(t, 1, notifier.bumps)

	c, err := svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Len())
	assert.True(t, decimal.NewFromInt(4600).Equal(c.SellingPrice("X")))

	_, err = svc.Upsert(ctx, ProductInput{ID: "X", Name: "Grower", SellingPrice: decimal.NewFromInt(4800)})
	require.NoError(t, err)
	c, err = svc.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Len())
	assert.True(t, decimal.NewFromInt(4800).Equal(c.SellingPrice("X")))
}

func TestServiceDelete(t *testing.T) {
	notifier := &countingNotifier{}
	svc := NewService(NewMemoryRepository(DefaultProducts()), notifier, nil)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, "BROODSTOCK"))
	require.ErrorIs(t, svc.Delete(ctx, "BROODSTOCK"), shared.ErrNotFound)
	assert.Equal(t, 1, notifier.bumps)
}

func TestServiceSeedSkipsExisting(t *testing.T) {
	svc := NewService(NewMemoryRepository(DefaultProducts()[:2]), nil, nil)
	added, err := svc.Seed(context.Background(), DefaultProducts())
	require.NoError(t, err)
	assert.Equal(t, 5, added)
}

func TestServiceWrapsStorageFailures(t *testing.T) {
	svc := NewService(failingRepo{}, nil, nil)
	_, err := svc.Catalog(context.Background())
	require.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestHandlerUpsertRequiresManagerFull(t *testing.T) {
	svc := NewService(NewMemoryRepository(DefaultProducts()), nil, nil)
	mw := rbac.Middleware{}
	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.Route("/catalog", NewHandler(nil, svc, mw).MountRoutes)

	body := `{"name":"Grower","cost_price":"4000","selling_price":"4600.50"}`

	req := httptest.NewRequest(http.MethodPut, "/catalog/products/GROWER", strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "m1")
	req.Header.Set(rbac.HeaderActorRole, "manager")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPut, "/catalog/products/GROWER", strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "boss")
	req.Header.Set(rbac.HeaderActorRole, "manager_full")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selling_price":"4600.5"`)

	req = httptest.NewRequest(http.MethodPut, "/catalog/products/BAD", strings.NewReader(`{"name":"Bad","selling_price":"abc"}`))
	req.Header.Set(rbac.HeaderActorID, "boss")
	req.Header.Set(rbac.HeaderActorRole, "manager_full")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "selling_price")
}
