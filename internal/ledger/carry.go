package ledger

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/shared"
)

// CarryState is the carry-forward state of a (shop, date) after a read.
type CarryState string

const (
	// StateUninitialized: no record for the day nor the day before.
	StateUninitialized CarryState = "uninitialized"
	// StateAutoCarried: the day was created from the previous day's closing stock.
	StateAutoCarried CarryState = "auto_carried"
	// StateReconciled: the stored opening differed from the previous closing and was overwritten.
	StateReconciled CarryState = "reconciled"
	// StateSaved: the stored opening stands.
	StateSaved CarryState = "saved"
)

// OpeningState is the result of ResolveOpeningStock.
type OpeningState struct {
	Shop           string                     `json:"shop"`
	Date           Date                       `json:"date"`
	OpeningStock   map[string]decimal.Decimal `json:"openingStock"`
	WasAutoCarried bool                       `json:"wasAutoCarried"`
	IsFirstEntry   bool                       `json:"isFirstEntry"`
	Persisted      bool                       `json:"persisted"`
	State          CarryState                 `json:"state"`
	Record         Record                     `json:"record"`
}

// ResolveOpeningStock returns the opening stock of (shop, date), deriving it
// from the previous day's closing stock when that day exists. The derived
// value is written only when it differs from what is stored, so repeated reads
// without upstream changes never write.
func (s *Service) ResolveOpeningStock(ctx context.Context, shop string, date Date) (OpeningState, error) {
	if err := s.checkShop(shop); err != nil {
		return OpeningState{}, err
	}
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return OpeningState{}, wrapStoreErr("load catalog", err)
	}
	return s.resolveWithCatalog(ctx, shop, date, cat)
}

func (s *Service) resolveWithCatalog(ctx context.Context, shop string, date Date, cat catalog.Catalog) (OpeningState, error) {
	prev, prevOK, err := s.store.GetRecord(ctx, shop, date.Prev())
	if err != nil {
		return OpeningState{}, wrapStoreErr("get previous day", err)
	}
	cur, curOK, err := s.store.GetRecord(ctx, shop, date)
	if err != nil {
		return OpeningState{}, wrapStoreErr("get record", err)
	}

	state := OpeningState{Shop: shop, Date: date}
	if !prevOK {
		if !curOK {
			state.State = StateUninitialized
			state.IsFirstEntry = true
			state.OpeningStock = zeroOpening(cat)
			state.Record = NewRecord(shop, date)
			return state, nil
		}
		state.OpeningStock = cloneQuantities(cur.OpeningStock)
		state.Record = cur
		state.State = StateSaved
		if len(cur.OpeningStock) == 0 {
			state.IsFirstEntry = true
			state.State = StateUninitialized
			state.OpeningStock = zeroOpening(cat)
		}
		return state, nil
	}

	carried := ComputeClosingStock(prev, cat)
	state.WasAutoCarried = true
	state.OpeningStock = cloneQuantities(carried)
	if curOK && SameQuantities(cur.OpeningStock, carried) {
		state.State = StateSaved
		state.Record = cur
		return state, nil
	}

	var written Record
	persisted := false
	err = s.store.RunAtomic(ctx, []Mutation{{
		Shop: shop,
		Date: date,
		Apply: func(rec *Record, exists bool) error {
			persisted = false
			if exists && SameQuantities(rec.OpeningStock, carried) {
				written = rec.Clone()
				return ErrSkipWrite
			}
			rec.OpeningStock = cloneQuantities(carried)
			written = rec.Clone()
			persisted = true
			return nil
		},
	}})
	if err != nil {
		return OpeningState{}, wrapStoreErr("carry forward", err)
	}

	state.Record = written
	state.Persisted = persisted
	switch {
	case !persisted:
		state.State = StateSaved
	case curOK:
		state.State = StateReconciled
	default:
		state.State = StateAutoCarried
	}
	if persisted {
		if s.metrics != nil {
			s.metrics.OpeningCarried(string(state.State))
		}
		s.bump(ctx)
		s.logger.Info("ledger opening stock carried forward",
			slog.String("shop", shop),
			slog.String("date", date.Key()),
			slog.String("state", string(state.State)),
		)
	}
	return state, nil
}

// SaveOpeningStock stores an explicitly entered opening stock. It is only
// accepted for a shop's first day: when the previous day exists its closing
// stock is authoritative and would overwrite this on the next read.
func (s *Service) SaveOpeningStock(ctx context.Context, shop string, date Date, opening map[string]decimal.Decimal) (Record, error) {
	if err := s.checkShop(shop); err != nil {
		return Record{}, err
	}
	if len(opening) == 0 {
		return Record{}, shared.NewValidationError("openingStock", "is required")
	}
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return Record{}, wrapStoreErr("load catalog", err)
	}
	for id, qty := range opening {
		if !cat.Has(id) {
			return Record{}, shared.NewValidationError("openingStock", "unknown product "+id)
		}
		if qty.IsNegative() {
			return Record{}, shared.NewValidationError("openingStock", "quantity of "+id+" must not be negative")
		}
	}
	_, prevOK, err := s.store.GetRecord(ctx, shop, date.Prev())
	if err != nil {
		return Record{}, wrapStoreErr("get previous day", err)
	}
	if prevOK {
		return Record{}, shared.NewValidationError("openingStock", "opening stock is carried forward from "+date.Prev().Key())
	}

	incoming := Record{Shop: shop, Date: date, OpeningStock: cloneQuantities(opening), UpdatedAt: s.now()}
	if err := s.store.PutRecord(ctx, shop, date, incoming, true); err != nil {
		return Record{}, wrapStoreErr("save opening stock", err)
	}
	rec, _, err := s.store.GetRecord(ctx, shop, date)
	if err != nil {
		return Record{}, wrapStoreErr("get record", err)
	}
	s.bump(ctx)
	s.recordAudit(ctx, shared.AuditLog{
		Action:   "ledger.opening.save",
		Entity:   "openingStock",
		EntityID: shop + "/" + date.Key(),
		Meta:     map[string]any{"products": len(opening)},
	})
	s.logger.Info("ledger opening stock saved", slog.String("shop", shop), slog.String("date", date.Key()))
	return rec, nil
}

// DayView is everything a shop's daily screen shows.
type DayView struct {
	Opening      OpeningState    `json:"opening"`
	Movements    []Movement      `json:"movements"`
	SalesTotal   decimal.Decimal `json:"salesTotal"`
	StockValue   decimal.Decimal `json:"stockValue"`
	TotalClosing decimal.Decimal `json:"totalClosing"`
}

// DayView resolves the opening stock and computes the day's movements.
func (s *Service) DayView(ctx context.Context, shop string, date Date) (DayView, error) {
	if err := s.checkShop(shop); err != nil {
		return DayView{}, err
	}
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return DayView{}, wrapStoreErr("load catalog", err)
	}
	opening, err := s.resolveWithCatalog(ctx, shop, date, cat)
	if err != nil {
		return DayView{}, err
	}
	rec := opening.Record
	rec.OpeningStock = opening.OpeningStock
	view := DayView{Opening: opening, Movements: ComputeMovements(rec, cat)}
	closing := make(map[string]decimal.Decimal, len(view.Movements))
	for _, m := range view.Movements {
		view.SalesTotal = view.SalesTotal.Add(m.SalesAmount)
		view.TotalClosing = view.TotalClosing.Add(m.Closing)
		closing[m.ProductID] = m.Closing
	}
	view.StockValue = StockValue(closing, cat)
	return view, nil
}

func zeroOpening(cat catalog.Catalog) map[string]decimal.Decimal {
	opening := make(map[string]decimal.Decimal, cat.Len())
	for _, id := range cat.IDs() {
		opening[id] = decimal.Zero
	}
	return opening
}
