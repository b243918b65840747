// Package storetest holds the behaviour every ledger.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/ledger"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Helper()
	ctx := context.Background()
	day := ledger.NewDate(2024, 1, 31)

	restock := func(qty int64) ledger.Entry {
		return ledger.Entry{
			Kind:    ledger.KindRestocking,
			Restock: &ledger.Restock{ProductID: "X", Quantity: decimal.NewFromInt(qty)},
		}
	}

	t.Run("absent record", func(t *testing.T) {
		store := newStore(t)
		_, ok, err := store.GetRecord(ctx, "Mbita", day)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("run atomic creates record", func(t *testing.T) {
		store := newStore(t)
		err := store.RunAtomic(ctx, []ledger.Mutation{{
			Shop: "Mbita",
			Date: day,
			Apply: func(rec *ledger.Record, exists bool) error {
				assert.False(t, exists)
				rec.Append(restock(5))
				return nil
			},
		}})
		require.NoError(t, err)

		rec, ok, err := store.GetRecord(ctx, "Mbita", day)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Mbita", rec.Shop)
		assert.True(t, rec.Date.Equal(day))
		require.Len(t, rec.Restocking, 1)
		assert.Equal(t, "1", rec.Restocking[0].ID)
		assert.True(t, decimal.NewFromInt(5).Equal(rec.Restocking[0].Quantity()))
		assert.False(t, rec.UpdatedAt.IsZero())
	})

	t.Run("run atomic is all or nothing", func(t *testing.T) {
		store := newStore(t)
		boom := errors.New("boom")
		err := store.RunAtomic(ctx, []ledger.Mutation{
			{Shop: "Mbita", Date: day, Apply: func(rec *ledger.Record, exists bool) error {
				rec.Append(restock(1))
				return nil
			}},
			{Shop: "Sori", Date: day, Apply: func(rec *ledger.Record, exists bool) error {
				return boom
			}},
		})
		require.ErrorIs(t, err, boom)

		_, ok, err := store.GetRecord(ctx, "Mbita", day)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("skip write leaves document untouched", func(t *testing.T) {
		store := newStore(t)
		err := store.RunAtomic(ctx, []ledger.Mutation{
			{Shop: "Mbita", Date: day, Apply: func(rec *ledger.Record, exists bool) error {
				rec.Append(restock(1))
				return nil
			}},
			{Shop: "Sori", Date: day, Apply: func(rec *ledger.Record, exists bool) error {
				return ledger.ErrSkipWrite
			}},
		})
		require.NoError(t, err)

		_, ok, err := store.GetRecord(ctx, "Mbita", day)
		require.NoError(t, err)
		assert.True(t, ok)
		_, ok, err = store.GetRecord(ctx, "Sori", day)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("mutations on one document compose", func(t *testing.T) {
		store := newStore(t)
		add := ledger.Mutation{Shop: "Mbita", Date: day, Apply: func(rec *ledger.Record, exists bool) error {
			rec.Append(restock(2))
			return nil
		}}
		require.NoError(t, store.RunAtomic(ctx, []ledger.Mutation{add, add}))

		rec, _, err := store.GetRecord(ctx, "Mbita", day)
		require.NoError(t, err)
		require.Len(t, rec.Restocking, 2)
		assert.NotEqual(t, rec.Restocking[0].ID, rec.Restocking[1].ID)
	})

	t.Run("merge put overlays opening stock", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.RunAtomic(ctx, []ledger.Mutation{{Shop: "Mbita", Date: day, Apply: func(rec *ledger.Record, exists bool) error {
			rec.OpeningStock["Y"] = decimal.NewFromInt(3)
			rec.Append(restock(4))
			return nil
		}}}))

		incoming := ledger.Record{OpeningStock: map[string]decimal.Decimal{"X": decimal.NewFromInt(10)}}
		require.NoError(t, store.PutRecord(ctx, "Mbita", day, incoming, true))

		rec, _, err := store.GetRecord(ctx, "Mbita", day)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(10).Equal(rec.OpeningStock["X"]))
		assert.True(t, decimal.NewFromInt(3).Equal(rec.OpeningStock["Y"]))
		assert.Len(t, rec.Restocking, 1)

		require.NoError(t, store.PutRecord(ctx, "Mbita", day, incoming, false))
		rec, _, err = store.GetRecord(ctx, "Mbita", day)
		require.NoError(t, err)
		assert.Empty(t, rec.Restocking)
		_, hasY := rec.OpeningStock["Y"]
		assert.False(t, hasY)
	})

	t.Run("list records ascending by date", func(t *testing.T) {
		store := newStore(t)
		days := []ledger.Date{
			ledger.NewDate(2024, 2, 1),
			ledger.NewDate(2023, 12, 31),
			ledger.NewDate(2024, 1, 15),
		}
		for _, d := range days {
			require.NoError(t, store.PutRecord(ctx, "Usigu", d, ledger.NewRecord("Usigu", d), false))
		}
		require.NoError(t, store.PutRecord(ctx, "Sori", day, ledger.NewRecord("Sori", day), false))

		records, err := store.ListRecords(ctx, "Usigu")
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "31-12-2023", records[0].Date.Key())
		assert.Equal(t, "15-01-2024", records[1].Date.Key())
		assert.Equal(t, "01-02-2024", records[2].Date.Key())

		empty, err := store.ListRecords(ctx, "Obambo")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
