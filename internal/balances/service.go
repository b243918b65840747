package balances

import (
	"context"
	"encoding/json"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/shared"
)

// RecordSource lists every record of a shop.
type RecordSource interface {
	ListRecords(ctx context.Context, shop string) ([]ledger.Record, error)
}

// CatalogSource supplies the current product catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (catalog.Catalog, error)
}

// Service serves balance reports computed from a full scan of the ledger.
type Service struct {
	records RecordSource
	catalog CatalogSource
	shops   []string
	cache   *Cache
	logger  *slog.Logger
	group   singleflight.Group
}

// NewService constructs the balances service. cache may be nil.
func NewService(records RecordSource, cat CatalogSource, shops []string, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, catalog: cat, shops: append([]string(nil), shops...), cache: cache, logger: logger}
}

// Snapshot loads every record of every shop concurrently.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	results := make([][]ledger.Record, len(s.shops))
	g, gctx := errgroup.WithContext(ctx)
	for i, shop := range s.shops {
		g.Go(func() error {
			recs, err := s.records.ListRecords(gctx, shop)
			if err != nil {
				return &shared.StorageError{Op: "list records " + shop, Err: err}
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Shops: append([]string(nil), s.shops...), Records: make(map[string][]ledger.Record, len(s.shops))}
	for i, shop := range s.shops {
		snap.Records[shop] = results[i]
	}
	return snap, nil
}

// Debtors returns outstanding debt per debtor.
func (s *Service) Debtors(ctx context.Context) (DebtorReport, error) {
	var out DebtorReport
	err := s.cached(ctx, &out, func(snap Snapshot, cat catalog.Catalog) interface{} {
		return Debtors(snap, cat)
	}, "debtors")
	return out, err
}

// Creditors returns every creditor's signed balance.
func (s *Service) Creditors(ctx context.Context) (CreditorReport, error) {
	var out CreditorReport
	err := s.cached(ctx, &out, func(snap Snapshot, cat catalog.Catalog) interface{} {
		return Creditors(snap, cat)
	}, "creditors")
	return out, err
}

// NetValue returns stock value plus debtors minus creditors on date.
func (s *Service) NetValue(ctx context.Context, date ledger.Date) (NetValue, error) {
	var out NetValue
	err := s.cached(ctx, &out, func(snap Snapshot, cat catalog.Catalog) interface{} {
		return ComputeNetValue(snap, date, cat)
	}, "net", date.Key())
	return out, err
}

// SalesSummary returns the sales summary across shops on date.
func (s *Service) SalesSummary(ctx context.Context, date ledger.Date) (SalesSummary, error) {
	var out SalesSummary
	err := s.cached(ctx, &out, func(snap Snapshot, cat catalog.Catalog) interface{} {
		return ComputeSalesSummary(snap, date, cat)
	}, "sales", date.Key())
	return out, err
}

// Warm precomputes the reports for date so the first reader hits the cache.
func (s *Service) Warm(ctx context.Context, date ledger.Date) error {
	if _, err := s.Debtors(ctx); err != nil {
		return err
	}
	if _, err := s.Creditors(ctx); err != nil {
		return err
	}
	if _, err := s.NetValue(ctx, date); err != nil {
		return err
	}
	_, err := s.SalesSummary(ctx, date)
	return err
}

func (s *Service) cached(ctx context.Context, dest interface{}, compute func(Snapshot, catalog.Catalog) interface{}, parts ...string) error {
	load := func(ctx context.Context) (interface{}, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		cat, err := s.catalog.Catalog(ctx)
		if err != nil {
			return nil, err
		}
		return compute(snap, cat), nil
	}
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("balances cache unavailable", slog.Any("error", err))
		value, err := load(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	value, err, _ := single(ctx, &s.group, key, func(ctx context.Context) (interface{}, error) {
		var raw json.RawMessage
		if err := s.cache.FetchJSON(ctx, key, &raw, load); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(value.(json.RawMessage), dest)
}
