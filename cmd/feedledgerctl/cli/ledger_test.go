package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/balances"
	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/ledger/memstore"
)

func newTestCLI(t *testing.T) (*LedgerCLI, *ledger.Service, ledger.Store) {
	t.Helper()
	shops, err := ledger.NewShopSet([]string{"Mbita", "Sori"})
	require.NoError(t, err)
	store := memstore.New()
	cat := catalog.NewService(catalog.NewMemoryRepository(catalog.DefaultProducts()), nil, nil)
	svc := ledger.NewService(ledger.ServiceConfig{Store: store, Catalog: cat, Shops: shops})
	bal := balances.NewService(store, cat, shops.Names(), nil, nil)
	return NewLedgerCLI(svc, bal), svc, store
}

func TestClosingCommandHuman(t *testing.T) {
	c, svc, _ := newTestCLI(t)
	ctx := context.Background()
	date := ledger.NewDate(2024, 3, 1)
	_, err := svc.SaveOpeningStock(ctx, "Mbita", date, map[string]decimal.Decimal{"STARTER MASH": decimal.NewFromInt(10)})
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, "Mbita", date, ledger.KindRegularSales, ledger.EntryInput{
		ProductID: "STARTER MASH", Quantity: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := c.ClosingCommand(ctx, ClosingOptions{Shop: "Mbita", Date: "01-03-2024", OutputOptions: OutputOptions{Stdout: stdout, Stderr: stderr}})
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "Mbita on 01-03-2024")
	assert.Contains(t, stdout.String(), "Total closing: 8 bags")
	assert.Contains(t, stdout.String(), "Sales total: 9,200")
}

func TestClosingCommandRejectsBadInput(t *testing.T) {
	c, _, _ := newTestCLI(t)
	stderr := new(bytes.Buffer)

	code := c.ClosingCommand(context.Background(), ClosingOptions{Date: "01-03-2024", OutputOptions: OutputOptions{Stdout: new(bytes.Buffer), Stderr: stderr}})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "--shop is required")

	stderr.Reset()
	code = c.ClosingCommand(context.Background(), ClosingOptions{Shop: "Mbita", Date: "31-31-2024", OutputOptions: OutputOptions{Stdout: new(bytes.Buffer), Stderr: stderr}})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "invalid date")
}

func TestMirrorsCommandRepairs(t *testing.T) {
	c, svc, store := newTestCLI(t)
	ctx := context.Background()
	date := ledger.NewDate(2024, 3, 1)
	_, err := svc.RecordTransaction(ctx, "Mbita", date, ledger.KindTransfersOut, ledger.EntryInput{
		ProductID: "BROODSTOCK", Quantity: decimal.NewFromInt(3), PeerShop: "Sori",
	})
	require.NoError(t, err)
	// Drop the mirror to simulate a lost write.
	require.NoError(t, store.PutRecord(ctx, "Sori", date, ledger.NewRecord("Sori", date), false))

	stdout := new(bytes.Buffer)
	code := c.MirrorsCommand(ctx, MirrorOptions{Date: "01-03-2024", OutputOptions: OutputOptions{Stdout: stdout, Stderr: new(bytes.Buffer)}})
	assert.Equal(t, 10, code)
	assert.Contains(t, stdout.String(), "(missing)")

	stdout.Reset()
	code = c.MirrorsCommand(ctx, MirrorOptions{Date: "01-03-2024", Apply: true, OutputOptions: OutputOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)}})
	assert.Equal(t, 0, code)
	var report ledger.MirrorReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, 1, report.Repaired)

	stdout.Reset()
	code = c.MirrorsCommand(ctx, MirrorOptions{Date: "01-03-2024", OutputOptions: OutputOptions{Stdout: stdout, Stderr: new(bytes.Buffer)}})
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "All transfers are mirrored.")
}

func TestNetValueCommand(t *testing.T) {
	c, svc, _ := newTestCLI(t)
	ctx := context.Background()
	date := ledger.NewDate(2024, 3, 1)
	_, err := svc.SaveOpeningStock(ctx, "Mbita", date, map[string]decimal.Decimal{"BROODSTOCK": decimal.NewFromInt(2)})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := c.NetValueCommand(ctx, NetValueOptions{Date: "2024-03-01", OutputOptions: OutputOptions{Stdout: stdout, Stderr: new(bytes.Buffer)}})
	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "Net value: 7,800")
}
