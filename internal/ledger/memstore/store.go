// Package memstore keeps ledger documents in process memory.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yfarmers/feedledger/internal/ledger"
)

// Store is an in-memory ledger.Store. Documents are held encoded so callers
// never share state with the store.
type Store struct {
	mu     sync.RWMutex
	docs   map[ledger.DocKey][]byte
	days   map[string]map[string]time.Time
	now    func() time.Time
	writes int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		docs: make(map[ledger.DocKey][]byte),
		days: make(map[string]map[string]time.Time),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Writes returns how many documents were written.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) GetRecord(ctx context.Context, shop string, date ledger.Date) (ledger.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(shop, date)
}

func (s *Store) PutRecord(ctx context.Context, shop string, date ledger.Date, rec ledger.Record, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if merge {
		existing, ok, err := s.load(shop, date)
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
	return s.save(ledger.KeyOf(shop, date), date, rec)
}

func (s *Store) RunAtomic(ctx context.Context, mutations []ledger.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged, err := ledger.ApplyMutations(mutations, s.now(), s.load)
	if err != nil {
		return err
	}
	encoded := make([][]byte, len(staged))
	for i, doc := range staged {
		if encoded[i], err = ledger.EncodeRecord(doc.Record); err != nil {
			return err
		}
	}
	for i, doc := range staged {
		s.put(doc.Key, doc.Record.Date, encoded[i])
	}
	return nil
}

func (s *Store) ListRecords(ctx context.Context, shop string) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	days := s.days[shop]
	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return days[keys[i]].Before(days[keys[j]]) })
	records := make([]ledger.Record, 0, len(keys))
	for _, key := range keys {
		rec, err := ledger.DecodeRecord(s.docs[ledger.DocKey{Shop: shop, Day: key}])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) load(shop string, date ledger.Date) (ledger.Record, bool, error) {
	raw, ok := s.docs[ledger.KeyOf(shop, date)]
	if !ok {
		return ledger.Record{}, false, nil
	}
	rec, err := ledger.DecodeRecord(raw)
	if err != nil {
		return ledger.Record{}, false, err
	}
	return rec, true, nil
}

func (s *Store) save(key ledger.DocKey, date ledger.Date, rec ledger.Record) error {
	raw, err := ledger.EncodeRecord(rec)
	if err != nil {
		return err
	}
	s.put(key, date, raw)
	return nil
}

func (s *Store) put(key ledger.DocKey, date ledger.Date, raw []byte) {
	s.docs[key] = raw
	if s.days[key.Shop] == nil {
		s.days[key.Shop] = make(map[string]time.Time)
	}
	s.days[key.Shop][key.Day] = date.Time()
	s.writes++
}
