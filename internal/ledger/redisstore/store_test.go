package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/ledger/storetest"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, ""), mr
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ledger.Store {
		store, _ := newTestStore(t)
		return store
	})
}

func TestKeyLayout(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	day := ledger.NewDate(2024, 3, 9)

	require.NoError(t, store.RunAtomic(ctx, []ledger.Mutation{{
		Shop: "Port Victoria",
		Date: day,
		Apply: func(rec *ledger.Record, exists bool) error {
			rec.OpeningStock["X"] = decimal.NewFromInt(1)
			return nil
		},
	}}))

	assert.True(t, mr.Exists("ledger:Port Victoria:09-03-2024"))
	members, err := mr.ZMembers("ledger:Port Victoria:days")
	require.NoError(t, err)
	assert.Equal(t, []string{"09-03-2024"}, members)
}

func TestRunAtomicGivesUpUnderContention(t *testing.T) {
	store, _ := newTestStore(t)
	store.maxRetries = 2
	ctx := context.Background()
	day := ledger.NewDate(2024, 3, 9)

	calls := 0
	err := store.RunAtomic(ctx, []ledger.Mutation{{
		Shop: "Mbita",
		Date: day,
		Apply: func(rec *ledger.Record, exists bool) error {
			calls++
			// A write from another client between WATCH and EXEC aborts the transaction.
			require.NoError(t, store.client.Set(ctx, store.docKey("Mbita", day), `{"shop":"Mbita"}`, 0).Err())
			rec.OpeningStock["X"] = decimal.NewFromInt(int64(calls))
			return nil
		},
	}})
	require.ErrorIs(t, err, ErrContention)
	assert.Equal(t, 2, calls)
}
