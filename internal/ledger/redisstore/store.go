// Package redisstore keeps ledger documents in Redis.
//
// Each day is a JSON string under ledger:{shop}:{DD-MM-YYYY}; a sorted set
// ledger:{shop}:days indexes the days of a shop by date.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yfarmers/feedledger/internal/ledger"
)

const defaultMaxRetries = 5

// ErrContention is returned when optimistic transactions keep conflicting.
var ErrContention = errors.New("redisstore: too many concurrent writers")

// Store is a ledger.Store using WATCH/MULTI compare-and-swap.
type Store struct {
	client     *redis.Client
	prefix     string
	maxRetries int
	now        func() time.Time
}

// New returns a Store. prefix defaults to "ledger".
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "ledger"
	}
	return &Store{
		client:     client,
		prefix:     prefix,
		maxRetries: defaultMaxRetries,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) docKey(shop string, date ledger.Date) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, shop, date.Key())
}

func (s *Store) daysKey(shop string) string {
	return fmt.Sprintf("%s:%s:days", s.prefix, shop)
}

func (s *Store) GetRecord(ctx context.Context, shop string, date ledger.Date) (ledger.Record, bool, error) {
	return s.load(ctx, s.client, shop, date)
}

func (s *Store) PutRecord(ctx context.Context, shop string, date ledger.Date, rec ledger.Record, merge bool) error {
	return s.RunAtomic(ctx, []ledger.Mutation{{
		Shop: shop,
		Date: date,
		Apply: func(stored *ledger.Record, exists bool) error {
			next := rec
			if merge {
				next = ledger.MergeRecord(*stored, rec)
			}
			next.Shop = shop
			next.Date = date
			*stored = next
			return nil
		},
	}})
}

// RunAtomic watches every touched document and commits all writes in one
// MULTI block. A concurrent change to any watched key aborts and retries.
func (s *Store) RunAtomic(ctx context.Context, mutations []ledger.Mutation) error {
	keys := make([]string, 0, len(mutations))
	seen := make(map[string]struct{}, len(mutations))
	for _, m := range mutations {
		key := s.docKey(m.Shop, m.Date)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	txf := func(tx *redis.Tx) error {
		staged, err := ledger.ApplyMutations(mutations, s.now(), func(shop string, date ledger.Date) (ledger.Record, bool, error) {
			return s.load(ctx, tx, shop, date)
		})
		if err != nil {
			return err
		}
		if len(staged) == 0 {
			return nil
		}
		encoded := make([][]byte, len(staged))
		for i, doc := range staged {
			if encoded[i], err = ledger.EncodeRecord(doc.Record); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, doc := range staged {
				pipe.Set(ctx, s.docKey(doc.Key.Shop, doc.Record.Date), encoded[i], 0)
				pipe.ZAdd(ctx, s.daysKey(doc.Key.Shop), redis.Z{
					Score:  float64(doc.Record.Date.Time().Unix()),
					Member: doc.Key.Day,
				})
			}
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (s *Store) ListRecords(ctx context.Context, shop string) ([]ledger.Record, error) {
	days, err := s.client.ZRange(ctx, s.daysKey(shop), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, nil
	}
	keys := make([]string, len(days))
	for i, day := range days {
		keys[i] = fmt.Sprintf("%s:%s:%s", s.prefix, shop, day)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	records := make([]ledger.Record, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document; skip rather than fail the scan.
			continue
		}
		rec, err := ledger.DecodeRecord([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("redisstore: decode %s: %w", keys[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, shop string, date ledger.Date) (ledger.Record, bool, error) {
	raw, err := c.Get(ctx, s.docKey(shop, date)).Bytes()
	if errors.Is(err, redis.Nil) {
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
