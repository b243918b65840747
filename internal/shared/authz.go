package shared

// Ledger permissions.
const (
	PermLedgerView    = "ledger.view"
	PermLedgerWrite   = "ledger.write"
	PermLedgerDelete  = "ledger.delete"
	PermOpeningWrite  = "ledger.opening.write"
	PermLedgerAnyShop = "ledger.shops.all"

	PermCatalogView = "catalog.view"
	PermCatalogEdit = "catalog.edit"

	PermBalancesView = "balances.view"
	PermJobsView     = "jobs.view"
)

// LedgerScopes lists all permissions known to the service.
func LedgerScopes() []string {
	return []string{
		PermLedgerView,
		PermLedgerWrite,
		PermLedgerDelete,
		PermOpeningWrite,
		PermLedgerAnyShop,
		PermCatalogView,
		PermCatalogEdit,
		PermBalancesView,
		PermJobsView,
	}
}
