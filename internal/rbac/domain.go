package rbac

import (
	"strings"

	"github.com/yfarmers/feedledger/internal/shared"
)

var rolePermissions = map[shared.Role][]string{
	shared.RoleManagerFull: shared.LedgerScopes(),
	shared.RoleManager: {
		shared.PermLedgerView,
		shared.PermLedgerWrite,
		shared.PermOpeningWrite,
		shared.PermLedgerAnyShop,
		shared.PermCatalogView,
		shared.PermBalancesView,
		shared.PermJobsView,
	},
	shared.RoleAttendant: {
		shared.PermLedgerView,
		shared.PermLedgerWrite,
		shared.PermCatalogView,
	},
	// Pending users hold no permissions until approved.
	shared.RolePending: nil,
}

// ParseRole normalises a role name; unknown names resolve to pending.
func ParseRole(raw string) shared.Role {
	role := shared.Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := rolePermissions[role]; !ok {
		return shared.RolePending
	}
	return role
}

// EffectivePermissions returns the permission names granted to a role.
func EffectivePermissions(role shared.Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Has reports whether the actor holds the permission.
func Has(actor shared.Actor, perm string) bool {
	return hasAnyPermission(rolePermissions[actor.Role], normalizePermissions([]string{perm}))
}

// CanDelete reports whether the actor may delete ledger entries.
func CanDelete(actor shared.Actor) bool {
	return Has(actor, shared.PermLedgerDelete)
}

// CanAccessShop reports whether the actor may read or write the shop's ledger.
// Attendants are bound to the shop supplied by the gateway.
func CanAccessShop(actor shared.Actor, shop string) bool {
	if !Has(actor, shared.PermLedgerView) {
		return false
	}
	if Has(actor, shared.PermLedgerAnyShop) {
		return true
	}
	return actor.Shop != "" && strings.EqualFold(actor.Shop, shop)
}
