package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the document store holding one Record per (shop, date).
type Store interface {
	GetRecord(ctx context.Context, shop string, date Date) (Record, bool, error)
	// PutRecord replaces the document, or overlays it with MergeRecord when merge is set.
	PutRecord(ctx context.Context, shop string, date Date, rec Record, merge bool) error
	// RunAtomic applies every mutation or none of them.
	RunAtomic(ctx context.Context, mutations []Mutation) error
	// ListRecords returns all records of shop in ascending date order.
	ListRecords(ctx context.Context, shop string) ([]Record, error)
}

// Mutation edits one document inside RunAtomic. Apply receives the stored
// record, or an empty one when exists is false. Apply may run more than once
// when a backend retries an optimistic transaction.
type Mutation struct {
	Shop  string
	Date  Date
	Apply func(rec *Record, exists bool) error
}

// DocKey identifies a record inside a store.
type DocKey struct {
	Shop string
	Day  string
}

// KeyOf returns the key of (shop, date).
func KeyOf(shop string, date Date) DocKey {
	return DocKey{Shop: shop, Day: date.Key()}
}

// Staged is a document produced by ApplyMutations that must be written.
type Staged struct {
	Key     DocKey
	Record  Record
	Existed bool
}

// ApplyMutations runs mutations in order against documents fetched through
// load and returns the documents to write. Several mutations on the same key
// see each other's changes. Any error other than ErrSkipWrite aborts the batch.
func ApplyMutations(mutations []Mutation, now time.Time, load func(shop string, date Date) (Record, bool, error)) ([]Staged, error) {
	type doc struct {
		rec     Record
		date    Date
		existed bool
		dirty   bool
	}
	docs := make(map[DocKey]*doc)
	var order []DocKey
	for _, m := range mutations {
		key := KeyOf(m.Shop, m.Date)
		d, ok := docs[key]
		if !ok {
			rec, existed, err := load(m.Shop, m.Date)
			if err != nil {
				return nil, err
			}
			if !existed {
				rec = NewRecord(m.Shop, m.Date)
			}
			d = &doc{rec: rec, date: m.Date, existed: existed}
			docs[key] = d
			order = append(order, key)
		}
		working := d.rec.Clone()
		err := m.Apply(&working, d.existed || d.dirty)
		if errors.Is(err, ErrSkipWrite) {
			continue
		}
		if err != nil {
			return nil, err
		}
		d.rec = working
		d.dirty = true
	}
	staged := make([]Staged, 0, len(order))
	for _, key := range order {
		d := docs[key]
		if !d.dirty {
			continue
		}
		d.rec.Shop = key.Shop
		d.rec.Date = d.date
		d.rec.UpdatedAt = now
		staged = append(staged, Staged{Key: key, Record: d.rec, Existed: d.existed})
	}
	return staged, nil
}

// EncodeRecord serialises a record document.
func EncodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}

// DecodeRecord parses a record document.
func DecodeRecord(raw []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}
	if rec.OpeningStock == nil {
		rec.OpeningStock = map[string]decimal.Decimal{}
	}
	return rec, nil
}
