package ledger

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/catalog"
)

// Movement is the per-product summary of one ledger record.
type Movement struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Opening        decimal.Decimal `json:"opening"`
	Restocked      decimal.Decimal `json:"restocked"`
	TransferredIn  decimal.Decimal `json:"transferredIn"`
	Sold           decimal.Decimal `json:"sold"`
	TransferredOut decimal.Decimal `json:"transferredOut"`
	Released       decimal.Decimal `json:"released"`
	Closing        decimal.Decimal `json:"closing"`
	SalesAmount    decimal.Decimal `json:"salesAmount"`
	Known          bool            `json:"known"`
}

// Received is everything that came into the shop: restocking plus transfers in.
func (m Movement) Received() decimal.Decimal {
	return m.Restocked.Add(m.TransferredIn)
}

// ComputeMovements reduces the record's lists into per-product movements.
// Catalog products come first in catalog order, followed by ids that only
// stale entries or opening stock still reference, sorted.
func ComputeMovements(rec Record, cat catalog.Catalog) []Movement {
	byID := make(map[string]*Movement)
	order := make([]string, 0, cat.Len())
	get := func(id string) *Movement {
		if m, ok := byID[id]; ok {
			return m
		}
		m := &Movement{ProductID: id, Name: id}
		if p, ok := cat.Lookup(id); ok {
			m.Name = p.Name
			m.Known = true
		}
		byID[id] = m
		return m
	}
	for _, id := range cat.IDs() {
		get(id)
		order = append(order, id)
	}

	var stale []string
	track := func(id string) *Movement {
		if _, ok := byID[id]; !ok && !cat.Has(id) {
			stale = append(stale, id)
		}
		return get(id)
	}

	for id, qty := range rec.OpeningStock {
		m := track(id)
		m.Opening = m.Opening.Add(qty)
	}
	for _, e := range rec.Restocking {
		m := track(e.ProductID())
		m.Restocked = m.Restocked.Add(e.Quantity())
	}
	for _, e := range rec.TransfersIn {
		m := track(e.ProductID())
		m.TransferredIn = m.TransferredIn.Add(e.Quantity())
	}
	for _, list := range [][]Entry{rec.RegularSales, rec.CreditSales} {
		for _, e := range list {
			m := track(e.ProductID())
			m.Sold = m.Sold.Add(e.Quantity())
			if e.Sale != nil {
				price := EffectivePrice(e.Sale.UnitPrice, e.Sale.ProductID, cat)
				m.SalesAmount = m.SalesAmount.Add(LineAmount(e.Sale.Quantity, price, e.Sale.Discount))
			}
		}
	}
	for _, e := range rec.TransfersOut {
		m := track(e.ProductID())
		m.TransferredOut = m.TransferredOut.Add(e.Quantity())
	}
	for _, e := range rec.CreditorReleases {
		m := track(e.ProductID())
		m.Released = m.Released.Add(e.Quantity())
	}

	slices.Sort(stale)
	order = append(order, stale...)
	out := make([]Movement, 0, len(order))
	for _, id := range order {
		m := byID[id]
		m.Closing = m.Opening.
			Add(m.Restocked).
			Add(m.TransferredIn).
			Sub(m.Sold).
			Sub(m.TransferredOut).
			Sub(m.Released)
		out = append(out, *m)
	}
	return out
}

// ComputeClosingStock returns closing stock per product id. It always
// recomputes from the entry lists.
func ComputeClosingStock(rec Record, cat catalog.Catalog) map[string]decimal.Decimal {
	movements := ComputeMovements(rec, cat)
	closing := make(map[string]decimal.Decimal, len(movements))
	for _, m := range movements {
		closing[m.ProductID] = m.Closing
	}
	return closing
}

// SalesAmount returns the sales amount per product over regular and credit sales.
func SalesAmount(rec Record, cat catalog.Catalog) map[string]decimal.Decimal {
	amounts := make(map[string]decimal.Decimal)
	for _, m := range ComputeMovements(rec, cat) {
		amounts[m.ProductID] = m.SalesAmount
	}
	return amounts
}

// StockValue prices closing stock at catalog selling prices; unknown ids are worth nothing.
func StockValue(closing map[string]decimal.Decimal, cat catalog.Catalog) decimal.Decimal {
	total := decimal.Zero
	for id, qty := range closing {
		total = total.Add(qty.Mul(cat.SellingPrice(id)))
	}
	return total
}

// LineAmount is quantity × unit price − discount.
func LineAmount(qty, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitPrice).Sub(discount)
}

// EffectivePrice is the recorded price when present, else the catalog selling price.
func EffectivePrice(recorded decimal.NullDecimal, productID string, cat catalog.Catalog) decimal.Decimal {
	if recorded.Valid {
		return recorded.Decimal
	}
	return cat.SellingPrice(productID)
}

// SameQuantities compares two quantity maps treating missing keys as zero.
func SameQuantities(a, b map[string]decimal.Decimal) bool {
	for id, qa := range a {
		if !qa.Equal(b[id]) {
			return false
		}
	}
	for id, qb := range b {
		if _, seen := a[id]; !seen && !qb.IsZero() {
			return false
		}
	}
	return true
}
