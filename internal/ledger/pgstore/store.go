// Package pgstore keeps ledger documents in PostgreSQL as JSONB rows.
package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/platform/db"
)

const txAttempts = 3

// Store is a ledger.Store over the ledger_days table.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// New returns a Store using pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) GetRecord(ctx context.Context, shop string, date ledger.Date) (ledger.Record, bool, error) {
	return loadRecord(ctx, s.pool, shop, date, false)
}

func (s *Store) PutRecord(ctx context.Context, shop string, date ledger.Date, rec ledger.Record, merge bool) error {
	return db.WithTxRetry(ctx, s.pool, txAttempts, func(tx pgx.Tx) error {
		if merge {
			existing, ok, err := loadRecord(ctx, tx, shop, date, true)
			if err != nil {
				return err
			}
			if !ok {
				existing = ledger.NewRecord(shop, date)
			}
			rec = ledger.MergeRecord(existing, rec)
		}
		rec.Shop = shop
		rec.Date = date
		rec.UpdatedAt = s.now()
		return upsertRecord(ctx, tx, rec)
	})
}

// RunAtomic locks every touched row inside one repeatable-read transaction.
// Concurrent creators of the same day conflict on the primary key and the
// loser is retried against fresh data.
func (s *Store) RunAtomic(ctx context.Context, mutations []ledger.Mutation) error {
	return db.WithTxRetry(ctx, s.pool, txAttempts, func(tx pgx.Tx) error {
		staged, err := ledger.ApplyMutations(mutations, s.now(), func(shop string, date ledger.Date) (ledger.Record, bool, error) {
			return loadRecord(ctx, tx, shop, date, true)
		})
		if err != nil {
			return err
		}
		for _, doc := range staged {
			if err := upsertRecord(ctx, tx, doc.Record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) ListRecords(ctx context.Context, shop string) ([]ledger.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM ledger_days WHERE shop = $1 ORDER BY day`, shop)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		rec, err := ledger.DecodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func loadRecord(ctx context.Context, q querier, shop string, date ledger.Date, forUpdate bool) (ledger.Record, bool, error) {
	sql := `SELECT doc FROM ledger_days WHERE shop = $1 AND day_key = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	err := q.QueryRow(ctx, sql, shop, date.Key()).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Record{}, false, nil
	}
	if err != nil {
		return ledger.Record{}, false, err
	}
	rec, err := ledger.DecodeRecord(raw)
	if err != nil {
		return ledger.Record{}, false, err
	}
	return rec, true, nil
}

func upsertRecord(ctx context.Context, tx pgx.Tx, rec ledger.Record) error {
	raw, err := ledger.EncodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO ledger_days (shop, day_key, day, doc, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (shop, day_key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		rec.Shop, rec.Date.Key(), rec.Date.Time(), raw, rec.UpdatedAt)
	return err
}
