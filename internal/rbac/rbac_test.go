package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/shared"
)

func TestParseRoleFallsBackToPending(t *testing.T) {
	assert.Equal(t, shared.RoleManagerFull, ParseRole(" Manager_Full "))
	assert.Equal(t, shared.RoleAttendant, ParseRole("attendant"))
	assert.Equal(t, shared.RolePending, ParseRole("admin"))
	assert.Equal(t, shared.RolePending, ParseRole(""))
}

func TestCanDeleteOnlyManagerFull(t *testing.T) {
	assert.True(t, CanDelete(shared.Actor{ID: "u1", Role: shared.RoleManagerFull}))
	assert.False(t, CanDelete(shared.Actor{ID: "u2", Role: shared.RoleManager}))
	assert.False(t, CanDelete(shared.Actor{ID: "u3", Role: shared.RoleAttendant, Shop: "Mbita"}))
	assert.False(t, CanDelete(shared.Actor{ID: "u4", Role: shared.RolePending}))
}

func TestCanAccessShop(t *testing.T) {
	attendant := shared.Actor{ID: "a", Role: shared.RoleAttendant, Shop: "Mbita"}
	assert.True(t, CanAccessShop(attendant, "Mbita"))
	assert.False(t, CanAccessShop(attendant, "Sori"))
	assert.True(t, CanAccessShop(shared.Actor{ID: "m", Role: shared.RoleManager}, "Sori"))
	assert.False(t, CanAccessShop(shared.Actor{ID: "p", Role: shared.RolePending, Shop: "Sori"}, "Sori"))
}

func TestMiddlewareRequireAny(t *testing.T) {
	mw := Middleware{}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := mw.Identify(mw.RequireAny(shared.PermCatalogEdit)(ok))

	cases := []struct {
		name   string
		role   string
		id     string
		status int
	}{
		{name: "manager full", role: "manager_full", id: "u1", status: http.StatusNoContent},
		{name: "manager", role: "manager", id: "u2", status: http.StatusForbidden},
		{name: "pending", role: "pending", id: "u3", status: http.StatusForbidden},
		{name: "anonymous", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/catalog/products/X", nil)
			if tc.id != "" {
				req.Header.Set(HeaderActorID, tc.id)
				req.Header.Set(HeaderActorRole, tc.role)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
