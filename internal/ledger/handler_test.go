package ledger_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/ledger/memstore"
	"github.com/yfarmers/feedledger/internal/rbac"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	shops, err := ledger.NewShopSet(ledger.DefaultShops())
	require.NoError(t, err)
	svc := ledger.NewService(ledger.ServiceConfig{
		Store:   memstore.New(),
		Catalog: catalog.NewService(catalog.NewMemoryRepository(catalog.DefaultProducts()), nil, nil),
		Shops:   shops,
	})
	mw := rbac.Middleware{}
	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.Route("/ledger", ledger.NewHandler(nil, svc, mw).MountRoutes)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path, role, shop, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(rbac.HeaderActorID, "user-"+role)
	req.Header.Set(rbac.HeaderActorRole, role)
	if shop != "" {
		req.Header.Set(rbac.HeaderActorShop, shop)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerRecordAndDelete(t *testing.T) {
	h := newTestRouter(t)

	res := doRequest(t, h, http.MethodPost, "/ledger/shops/Mbita/days/2024-05-02/entries/regularSales", "attendant", "Mbita",
		`{"productId":"STARTER MASH","quantity":"2"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	var rec ledger.Record
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &rec))
	require.Len(t, rec.RegularSales, 1)
	assert.Equal(t, "02-05-2024", rec.Date.Key())

	res = doRequest(t, h, http.MethodPost, "/ledger/shops/Sori/days/2024-05-02/entries/regularSales", "attendant", "Mbita",
		`{"productId":"STARTER MASH","quantity":"2"}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(t, h, http.MethodPost, "/ledger/shops/Mbita/days/2024-05-02/entries/regularSales", "attendant", "Mbita",
		`{"productId":"STARTER MASH","quantity":"0"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "quantity")

	res = doRequest(t, h, http.MethodPost, "/ledger/shops/Mbita/days/2024-05-02/entries/refunds", "manager", "",
		`{"productId":"STARTER MASH","quantity":"1"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	path := "/ledger/shops/Mbita/days/02-05-2024/entries/regularSales/" + rec.RegularSales[0].ID
	res = doRequest(t, h, http.MethodDelete, path, "manager", "", "")
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(t, h, http.MethodDelete, path, "manager_full", "", "")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = doRequest(t, h, http.MethodDelete, path, "manager_full", "", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestHandlerDayViewAndOpening(t *testing.T) {
	h := newTestRouter(t)

	res := doRequest(t, h, http.MethodGet, "/ledger/shops/Usigu/days/02-05-2024", "manager", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	var view ledger.DayView
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &view))
	assert.True(t, view.Opening.IsFirstEntry)
	assert.Len(t, view.Movements, 7)

	res = doRequest(t, h, http.MethodPut, "/ledger/shops/Usigu/days/02-05-2024/opening", "attendant", "Usigu",
		`{"openingStock":{"BROODSTOCK":"3"}}`)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doRequest(t, h, http.MethodPut, "/ledger/shops/Usigu/days/02-05-2024/opening", "manager", "",
		`{"openingStock":{"BROODSTOCK":"3"}}`)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	res = doRequest(t, h, http.MethodGet, "/ledger/shops/Usigu/days/03-05-2024", "manager", "", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &view))
	assert.True(t, view.Opening.WasAutoCarried)
	assert.Equal(t, "3", view.Opening.OpeningStock["BROODSTOCK"].String())

	res = doRequest(t, h, http.MethodGet, "/ledger/shops/Usigu/days/31-02-2024", "manager", "", "")
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHandlerPendingUserDenied(t *testing.T) {
	h := newTestRouter(t)
	res := doRequest(t, h, http.MethodGet, "/ledger/shops", "pending", "", "")
	assert.Equal(t, http.StatusForbidden, res.Code)
}
