package balances

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testCatalog() catalog.Catalog {
	return catalog.MustNew([]catalog.Product{
		{ID: "broiler", Name: "Broiler Starter", CostPrice: d("900"), SellingPrice: d("1000")},
		{ID: "layer", Name: "Layer Mash", CostPrice: d("400"), SellingPrice: d("500")},
	})
}

var day1 = ledger.NewDate(2024, time.March, 1)

func creditSale(customer, parent string, qty string) ledger.Entry {
	return ledger.Entry{Kind: ledger.KindCreditSales, Sale: &ledger.Sale{
		ProductID: "broiler", Quantity: d(qty), Customer: customer, ParentClientID: parent,
	}}
}

func payment(kind ledger.Kind, name, parent, amount string) ledger.Entry {
	return ledger.Entry{Kind: kind, Payment: &ledger.Payment{Counterparty: name, Amount: d(amount), ParentClientID: parent}}
}

func release(creditor, qty string) ledger.Entry {
	return ledger.Entry{Kind: ledger.KindCreditorReleases, Release: &ledger.Release{
		ProductID: "layer", Quantity: d(qty), Creditor: creditor,
	}}
}

func snapshotOf(recs ...ledger.Record) Snapshot {
	snap := Snapshot{Records: map[string][]ledger.Record{}}
	for _, rec := range recs {
		if _, ok := snap.Records[rec.Shop]; !ok {
			snap.Shops = append(snap.Shops, rec.Shop)
		}
		snap.Records[rec.Shop] = append(snap.Records[rec.Shop], rec)
	}
	return snap
}

func TestDebtorsPaymentReducesBalance(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	rec.Append(creditSale("Ama", "", "3"))
	before := Debtors(snapshotOf(rec), testCatalog())
	require.Len(t, before.Debtors, 1)
	assert.True(t, d("3000").Equal(before.Debtors[0].Balance))

	rec.Append(payment(ledger.KindDebtPayments, "Ama", "", "1200"))
	after := Debtors(snapshotOf(rec), testCatalog())
	require.Len(t, after.Debtors, 1)
	assert.True(t, d("1800").Equal(after.Debtors[0].Balance))
	assert.True(t, d("1200").Equal(before.Debtors[0].Balance.Sub(after.Debtors[0].Balance)))
}

func TestDebtorsHidesSettledAndOverpaid(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	rec.Append(creditSale("Ama", "", "1"))
	rec.Append(payment(ledger.KindDebtPayments, "Ama", "", "1000"))
	rec.Append(creditSale("Kofi", "", "1"))
	rec.Append(payment(ledger.KindDebtPayments, "Kofi", "", "1500"))
	rec.Append(creditSale("Esi", "", "2"))

	report := Debtors(snapshotOf(rec), testCatalog())
	require.Len(t, report.Debtors, 1)
	assert.Equal(t, "Esi", report.Debtors[0].Name)
	assert.True(t, d("2000").Equal(report.TotalOutstanding))
}

func TestDebtorsNamesMatchExactly(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	rec.Append(creditSale("Ama", "", "1"))
	rec.Append(payment(ledger.KindDebtPayments, "ama", "", "1000"))

	report := Debtors(snapshotOf(rec), testCatalog())
	require.Len(t, report.Debtors, 1)
	assert.Equal(t, "Ama", report.Debtors[0].Name)
	assert.True(t, d("1000").Equal(report.Debtors[0].Balance))
}

func TestDebtorsRecordedPriceAndDiscount(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	entry := creditSale("Ama", "", "2")
	entry.Sale.UnitPrice = decimal.NewNullDecimal(d("950"))
	entry.Sale.Discount = d("100")
	rec.Append(entry)

	report := Debtors(snapshotOf(rec), testCatalog())
	require.Len(t, report.Debtors, 1)
	assert.True(t, d("1800").Equal(report.Debtors[0].Owed))
}

func TestDebtorsAcrossShopsAndDays(t *testing.T) {
	a := ledger.NewRecord("Main", day1)
	a.Append(creditSale("Ama", "", "1"))
	b := ledger.NewRecord("Annex", day1.Next())
	b.Append(creditSale("Ama", "", "1"))
	b.Append(payment(ledger.KindDebtPayments, "Ama", "", "500"))

	report := Debtors(snapshotOf(a, b), testCatalog())
	require.Len(t, report.Debtors, 1)
	assert.True(t, d("1500").Equal(report.Debtors[0].Balance))
}

func TestDebtorsGroupedByParent(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	rec.Append(creditSale("Farm A", "Coop", "1"))
	rec.Append(creditSale("Farm B", "Coop", "2"))
	rec.Append(creditSale("Solo", "", "1"))

	report := Debtors(snapshotOf(rec), testCatalog())
	require.Len(t, report.Debtors, 2)
	var coop DebtorBalance
	for _, row := range report.Debtors {
		if row.Name == "Coop" {
			coop = row
		}
	}
	require.Len(t, coop.Children, 2)
	assert.True(t, d("3000").Equal(coop.Balance))
	assert.True(t, d("4000").Equal(report.TotalOutstanding))
}

func TestDebtorParentSumsSettledChildren(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	rec.Append(creditSale("Farm A", "FAM", "1"))
	rec.Append(creditSale("Farm B", "FAM", "1"))
	rec.Append(payment(ledger.KindDebtPayments, "Farm B", "FAM", "99999"))
	rec.Append(creditSale("Farm C", "SETTLED", "1"))
	rec.Append(payment(ledger.KindDebtPayments, "Farm C", "SETTLED", "1000"))

	report := Debtors(snapshotOf(rec), testCatalog())
	require.Len(t, report.Debtors, 1, "a parent with no child still owing is hidden")
	fam := report.Debtors[0]
	assert.Equal(t, "FAM", fam.Name)
	assert.True(t, d("2000").Equal(fam.Owed))
	assert.True(t, d("99999").Equal(fam.Paid))
	assert.True(t, d("-97999").Equal(fam.Balance))
	require.Len(t, fam.Children, 1)
	assert.Equal(t, "Farm A", fam.Children[0].Name)
	assert.True(t, d("1000").Equal(report.TotalOutstanding))
}

func TestCreditorsKeepSignedBalances(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	rec.Append(payment(ledger.KindPrepayments, "Hatchery", "", "5000"))
	rec.Append(release("Hatchery", "4"))
	rec.Append(payment(ledger.KindPrepayments, "Poultry Ltd", "", "1000"))
	rec.Append(release("Poultry Ltd", "6"))

	report := Creditors(snapshotOf(rec), testCatalog())
	require.Len(t, report.Creditors, 2)
	byName := map[string]CreditorBalance{}
	for _, row := range report.Creditors {
		byName[row.Name] = row
	}
	assert.True(t, d("3000").Equal(byName["Hatchery"].Balance))
	assert.True(t, d("-2000").Equal(byName["Poultry Ltd"].Balance))
	assert.True(t, d("1000").Equal(report.NetTotal))
}

func TestClosingOnCarriesForward(t *testing.T) {
	prev := ledger.NewRecord("Main", day1)
	prev.OpeningStock = map[string]decimal.Decimal{"broiler": d("10")}
	prev.Append(ledger.Entry{Kind: ledger.KindRegularSales, Sale: &ledger.Sale{ProductID: "broiler", Quantity: d("4")}})
	snap := snapshotOf(prev)

	closing := ClosingOn(snap, "Main", day1.Next(), testCatalog())
	assert.True(t, d("6").Equal(closing["broiler"]))

	today := ledger.NewRecord("Main", day1.Next())
	today.OpeningStock = map[string]decimal.Decimal{"broiler": d("99")}
	today.Append(ledger.Entry{Kind: ledger.KindRegularSales, Sale: &ledger.Sale{ProductID: "broiler", Quantity: d("1")}})
	snap = snapshotOf(prev, today)
	closing = ClosingOn(snap, "Main", day1.Next(), testCatalog())
	assert.True(t, d("5").Equal(closing["broiler"]))

	assert.Empty(t, ClosingOn(snap, "Annex", day1, testCatalog()))
}

func TestComputeNetValue(t *testing.T) {
	rec := ledger.NewRecord("Main", day1)
	rec.OpeningStock = map[string]decimal.Decimal{"broiler": d("10"), "layer": d("4")}
	rec.Append(creditSale("Ama", "", "2"))
	rec.Append(payment(ledger.KindPrepayments, "Hatchery", "", "2000"))
	rec.Append(release("Hatchery", "2"))

	nv := ComputeNetValue(snapshotOf(rec), day1, testCatalog())
	// closing: broiler 8 × 1000, layer 2 × 500
	assert.True(t, d("9000").Equal(nv.StockValue))
	assert.True(t, d("2000").Equal(nv.DebtorsValue))
	assert.True(t, d("1000").Equal(nv.CreditorsValue))
	assert.True(t, d("10000").Equal(nv.NetValue))
	require.Len(t, nv.Shops, 1)
	assert.True(t, d("10").Equal(nv.Shops[0].Bags))
}

func TestComputeSalesSummary(t *testing.T) {
	a := ledger.NewRecord("Main", day1)
	a.OpeningStock = map[string]decimal.Decimal{"broiler": d("10")}
	a.Append(ledger.Entry{Kind: ledger.KindRegularSales, Sale: &ledger.Sale{ProductID: "broiler", Quantity: d("3")}})
	b := ledger.NewRecord("Annex", day1)
	b.OpeningStock = map[string]decimal.Decimal{"layer": d("5")}
	b.Append(ledger.Entry{Kind: ledger.KindRegularSales, Sale: &ledger.Sale{ProductID: "layer", Quantity: d("1")}})

	summary := ComputeSalesSummary(snapshotOf(a, b), day1, testCatalog())
	require.Len(t, summary.Shops, 2)
	assert.True(t, d("11").Equal(summary.TotalRemaining))
	assert.True(t, d("4").Equal(summary.TotalSold))
	assert.True(t, d("3500").Equal(summary.TotalAmount))
}
