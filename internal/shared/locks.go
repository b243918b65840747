package shared

import "fmt"

// LedgerLockKey builds redis keys for ledger critical sections.
func LedgerLockKey(name string) string {
	return fmt.Sprintf("feedledger:%s:lock", name)
}
