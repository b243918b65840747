package balances

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
)

// Counterparties are matched by their exact name string.

type debtorAcc struct {
	owed, paid decimal.Decimal
	parent     string
}

// Debtors computes debt per debtor: owed over creditSales, paid over
// debtPayments. Only strictly positive balances are reported.
func Debtors(snap Snapshot, cat catalog.Catalog) DebtorReport {
	acc := map[string]*debtorAcc{}
	get := func(name string) *debtorAcc {
		a, ok := acc[name]
		if !ok {
			a = &debtorAcc{}
			acc[name] = a
		}
		return a
	}
	eachRecord(snap, func(rec ledger.Record) {
		for _, e := range rec.CreditSales {
			if e.Sale == nil {
				continue
			}
			a := get(e.Sale.Customer)
			price := ledger.EffectivePrice(e.Sale.UnitPrice, e.Sale.ProductID, cat)
			a.owed = a.owed.Add(ledger.LineAmount(e.Sale.Quantity, price, e.Sale.Discount))
			setParent(&a.parent, e.Sale.ParentClientID)
		}
		for _, e := range rec.DebtPayments {
			if e.Payment == nil {
				continue
			}
			a := get(e.Payment.Counterparty)
			a.paid = a.paid.Add(e.Payment.Amount)
			setParent(&a.parent, e.Payment.ParentClientID)
		}
	})

	var all []DebtorBalance
	report := DebtorReport{TotalOutstanding: decimal.Zero}
	for _, name := range sortedKeys(acc) {
		a := acc[name]
		b := DebtorBalance{Name: name, ParentClientID: a.parent, Owed: a.owed, Paid: a.paid, Balance: a.owed.Sub(a.paid)}
		if b.Balance.IsPositive() {
			report.TotalOutstanding = report.TotalOutstanding.Add(b.Balance)
		}
		all = append(all, b)
	}
	report.Debtors = groupDebtors(all)
	return report
}

// groupDebtors nests debtors under their parent. A parent row sums every
// child, settled ones included, but lists only children that still owe, and
// is shown while at least one of them does.
func groupDebtors(all []DebtorBalance) []DebtorBalance {
	var rows []DebtorBalance
	parents := map[string]int{}
	for _, b := range all {
		if b.ParentClientID == "" {
			if b.Balance.IsPositive() {
				rows = append(rows, b)
			}
			continue
		}
		idx, ok := parents[b.ParentClientID]
		if !ok {
			rows = append(rows, DebtorBalance{Name: b.ParentClientID})
			idx = len(rows) - 1
			parents[b.ParentClientID] = idx
		}
		p := &rows[idx]
		p.Owed = p.Owed.Add(b.Owed)
		p.Paid = p.Paid.Add(b.Paid)
		p.Balance = p.Balance.Add(b.Balance)
		if b.Balance.IsPositive() {
			p.Children = append(p.Children, b)
		}
	}
	out := make([]DebtorBalance, 0, len(rows))
	for i, row := range rows {
		if idx, ok := parents[row.Name]; ok && idx == i && len(row.Children) == 0 {
			continue
		}
		out = append(out, row)
	}
	return out
}

type creditorAcc struct {
	prepaid, feeds decimal.Decimal
	parent         string
}

// Creditors computes prepaid minus the value of feeds released per creditor.
// Both credit remaining and over-released balances are reported.
func Creditors(snap Snapshot, cat catalog.Catalog) CreditorReport {
	acc := map[string]*creditorAcc{}
	get := func(name string) *creditorAcc {
		a, ok := acc[name]
		if !ok {
			a = &creditorAcc{}
			acc[name] = a
		}
		return a
	}
	eachRecord(snap, func(rec ledger.Record) {
		for _, e := range rec.Prepayments {
			if e.Payment == nil {
				continue
			}
			a := get(e.Payment.Counterparty)
			a.prepaid = a.prepaid.Add(e.Payment.Amount)
			setParent(&a.parent, e.Payment.ParentClientID)
		}
		for _, e := range rec.CreditorReleases {
			if e.Release == nil {
				continue
			}
			a := get(e.Release.Creditor)
			price := ledger.EffectivePrice(e.Release.UnitPrice, e.Release.ProductID, cat)
			a.feeds = a.feeds.Add(ledger.LineAmount(e.Release.Quantity, price, e.Release.Discount))
			setParent(&a.parent, e.Release.ParentClientID)
		}
	})

	report := CreditorReport{NetTotal: decimal.Zero}
	parents := map[string]int{}
	for _, name := range sortedKeys(acc) {
		a := acc[name]
		b := CreditorBalance{Name: name, ParentClientID: a.parent, Prepaid: a.prepaid, FeedsValue: a.feeds, Balance: a.prepaid.Sub(a.feeds)}
		report.NetTotal = report.NetTotal.Add(b.Balance)
		if b.ParentClientID == "" {
			report.Creditors = append(report.Creditors, b)
			continue
		}
		idx, ok := parents[b.ParentClientID]
		if !ok {
			report.Creditors = append(report.Creditors, CreditorBalance{Name: b.ParentClientID})
			idx = len(report.Creditors) - 1
			parents[b.ParentClientID] = idx
		}
		p := &report.Creditors[idx]
		p.Prepaid = p.Prepaid.Add(b.Prepaid)
		p.FeedsValue = p.FeedsValue.Add(b.FeedsValue)
		p.Balance = p.Balance.Add(b.Balance)
		p.Children = append(p.Children, b)
	}
	return report
}

// ClosingOn returns the closing stock of shop on date without writing
// anything: the opening is the previous day's closing when that day exists,
// and a missing day closes at what it would have opened with.
func ClosingOn(snap Snapshot, shop string, date ledger.Date, cat catalog.Catalog) map[string]decimal.Decimal {
	rec, ok := snap.Find(shop, date)
	prev, prevOK := snap.Find(shop, date.Prev())
	if !ok {
		if !prevOK {
			return map[string]decimal.Decimal{}
		}
		return ledger.ComputeClosingStock(prev, cat)
	}
	if prevOK {
		rec = rec.Clone()
		rec.OpeningStock = ledger.ComputeClosingStock(prev, cat)
	}
	return ledger.ComputeClosingStock(rec, cat)
}

// ComputeNetValue is Σ shops Σ products closing × selling price, plus positive
// debtor balances, minus the signed creditor total.
func ComputeNetValue(snap Snapshot, date ledger.Date, cat catalog.Catalog) NetValue {
	nv := NetValue{Date: date, StockValue: decimal.Zero}
	for _, shop := range snap.Shops {
		closing := ClosingOn(snap, shop, date, cat)
		sv := ShopValue{Shop: shop, Bags: decimal.Zero, StockValue: ledger.StockValue(closing, cat)}
		for _, qty := range closing {
			sv.Bags = sv.Bags.Add(qty)
		}
		nv.Shops = append(nv.Shops, sv)
		nv.StockValue = nv.StockValue.Add(sv.StockValue)
	}
	nv.DebtorsValue = Debtors(snap, cat).TotalOutstanding
	nv.CreditorsValue = Creditors(snap, cat).NetTotal
	nv.NetValue = nv.StockValue.Add(nv.DebtorsValue).Sub(nv.CreditorsValue)
	return nv
}

// ComputeSalesSummary reports remaining bags, bags sold and sales amount per shop.
func ComputeSalesSummary(snap Snapshot, date ledger.Date, cat catalog.Catalog) SalesSummary {
	summary := SalesSummary{Date: date, TotalRemaining: decimal.Zero, TotalSold: decimal.Zero, TotalAmount: decimal.Zero}
	for _, shop := range snap.Shops {
		row := ShopSales{Shop: shop, Remaining: decimal.Zero, Sold: decimal.Zero, Amount: decimal.Zero}
		for _, qty := range ClosingOn(snap, shop, date, cat) {
			row.Remaining = row.Remaining.Add(qty)
		}
		if rec, ok := snap.Find(shop, date); ok {
			for _, m := range ledger.ComputeMovements(rec, cat) {
				row.Sold = row.Sold.Add(m.Sold)
				row.Amount = row.Amount.Add(m.SalesAmount)
			}
		}
		summary.Shops = append(summary.Shops, row)
		summary.TotalRemaining = summary.TotalRemaining.Add(row.Remaining)
		summary.TotalSold = summary.TotalSold.Add(row.Sold)
		summary.TotalAmount = summary.TotalAmount.Add(row.Amount)
	}
	return summary
}

func eachRecord(snap Snapshot, fn func(ledger.Record)) {
	for _, shop := range snap.Shops {
		for _, rec := range snap.Records[shop] {
			fn(rec)
		}
	}
}

// setParent keeps the latest non-empty parent id seen for a counterparty.
func setParent(dst *string, parent string) {
	if parent != "" {
		*dst = parent
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
