package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/app"
	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.CatalogSeed = false
	rt, err := app.Bootstrap(ctx, cfg, app.NewLogger(cfg))
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	fmt.Println("→ Seeding catalog...")
	added, err := rt.Catalog.Seed(ctx, catalog.DefaultProducts())
	if err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	fmt.Printf("  %d products added\n", added)

	fmt.Println("→ Seeding opening stock...")
	if err := seedDemoDay(ctx, rt.Ledger, ledger.DateOf(time.Now())); err != nil {
		log.Fatalf("seed demo day: %v", err)
	}

	fmt.Println("✅ Seed completed")
}

// seedDemoDay gives every shop an opening count and a few movements on date.
// Shops that already have a record for date are left alone.
func seedDemoDay(ctx context.Context, svc *ledger.Service, date ledger.Date) error {
	shops := svc.Shops()
	for i, shop := range shops {
		if _, ok, err := svc.GetRecord(ctx, shop, date); err != nil {
			return err
		} else if ok {
			fmt.Printf("  %s already has %s, skipping\n", shop, date.Key())
			continue
		}
		opening := map[string]decimal.Decimal{
			"STARTER MASH": decimal.NewFromInt(20),
			"SAMAKGRO 2MM": decimal.NewFromInt(15),
			"BROODSTOCK":   decimal.NewFromInt(5),
		}
		if _, err := svc.SaveOpeningStock(ctx, shop, date, opening); err != nil {
			return fmt.Errorf("%s opening: %w", shop, err)
		}
		steps := []struct {
			kind  ledger.Kind
			input ledger.EntryInput
		}{
			{ledger.KindRegularSales, ledger.EntryInput{ProductID: "STARTER MASH", Quantity: decimal.NewFromInt(2)}},
			{ledger.KindCreditSales, ledger.EntryInput{ProductID: "SAMAKGRO 2MM", Quantity: decimal.NewFromInt(3), Counterparty: "Okoth Farm"}},
			{ledger.KindDebtPayments, ledger.EntryInput{Counterparty: "Okoth Farm", Amount: decimal.NewFromInt(4000), Method: "mpesa"}},
			{ledger.KindPrepayments, ledger.EntryInput{Counterparty: "Lake Hatchery", Amount: decimal.NewFromInt(7800)}},
			{ledger.KindCreditorReleases, ledger.EntryInput{ProductID: "BROODSTOCK", Quantity: decimal.NewFromInt(1), Counterparty: "Lake Hatchery"}},
		}
		if len(shops) > 1 {
			peer := shops[(i+1)%len(shops)]
			steps = append(steps, struct {
				kind  ledger.Kind
				input ledger.EntryInput
			}{ledger.KindTransfersOut, ledger.EntryInput{ProductID: "STARTER MASH", Quantity: decimal.NewFromInt(1), PeerShop: peer}})
		}
		for _, step := range steps {
			if _, err := svc.RecordTransaction(ctx, shop, date, step.kind, step.input); err != nil {
				return fmt.Errorf("%s %s: %w", shop, step.kind, err)
			}
		}
		fmt.Printf("  %s seeded for %s\n", shop, date.Key())
	}
	return nil
}
