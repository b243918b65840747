// Package balances reduces every ledger record into debtor, creditor and
// stock value positions.
package balances

import (
	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/ledger"
)

// Snapshot is a read-only copy of every record of every shop, taken for one
// aggregation pass.
type Snapshot struct {
	Shops   []string
	Records map[string][]ledger.Record
}

// Find returns the record of shop for date.
func (s Snapshot) Find(shop string, date ledger.Date) (ledger.Record, bool) {
	for _, rec := range s.Records[shop] {
		if rec.Date.Equal(date) {
			return rec, true
		}
	}
	return ledger.Record{}, false
}

// DebtorBalance is what one debtor name owes. Parent rows sum their Children.
type DebtorBalance struct {
	Name           string          `json:"name"`
	ParentClientID string          `json:"parentClientId,omitempty"`
	Owed           decimal.Decimal `json:"owed"`
	Paid           decimal.Decimal `json:"paid"`
	Balance        decimal.Decimal `json:"balance"`
	Children       []DebtorBalance `json:"children,omitempty"`
}

// DebtorReport lists outstanding debt, grouped by parent client.
type DebtorReport struct {
	Debtors          []DebtorBalance `json:"debtors"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
}

// CreditorBalance is what one creditor has prepaid against feeds released.
type CreditorBalance struct {
	Name           string            `json:"name"`
	ParentClientID string            `json:"parentClientId,omitempty"`
	Prepaid        decimal.Decimal   `json:"prepaid"`
	FeedsValue     decimal.Decimal   `json:"feedsValue"`
	Balance        decimal.Decimal   `json:"balance"`
	Children       []CreditorBalance `json:"children,omitempty"`
}

// CreditorReport lists every creditor balance, positive or negative.
type CreditorReport struct {
	Creditors []CreditorBalance `json:"creditors"`
	NetTotal  decimal.Decimal   `json:"netTotal"`
}

// ShopValue is the priced closing stock of one shop.
type ShopValue struct {
	Shop       string          `json:"shop"`
	Bags       decimal.Decimal `json:"bags"`
	StockValue decimal.Decimal `json:"stockValue"`
}

// NetValue is the business position on a date.
type NetValue struct {
	Date           ledger.Date     `json:"date"`
	Shops          []ShopValue     `json:"shops"`
	StockValue     decimal.Decimal `json:"stockValue"`
	DebtorsValue   decimal.Decimal `json:"debtorsValue"`
	CreditorsValue decimal.Decimal `json:"creditorsValue"`
	NetValue       decimal.Decimal `json:"netValue"`
}

// ShopSales is one row of the daily sales summary.
type ShopSales struct {
	Shop      string          `json:"shop"`
	Remaining decimal.Decimal `json:"remaining"`
	Sold      decimal.Decimal `json:"sold"`
	Amount    decimal.Decimal `json:"amount"`
}

// SalesSummary totals a day's sales across shops.
type SalesSummary struct {
	Date           ledger.Date     `json:"date"`
	Shops          []ShopSales     `json:"shops"`
	TotalRemaining decimal.Decimal `json:"totalRemaining"`
	TotalSold      decimal.Decimal `json:"totalSold"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}
