package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/rbac"
	"github.com/yfarmers/feedledger/internal/shared"
)

// CatalogSource supplies the current product catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (catalog.Catalog, error)
}

// ChangeNotifier is told after every successful ledger write.
type ChangeNotifier interface {
	Bump(ctx context.Context) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives ledger counters.
type MetricsPort interface {
	EntryWritten(kind string)
	OpeningCarried(state string)
	MirrorInconsistent(reason string)
}

// Service coordinates ledger operations.
type Service struct {
	store       Store
	catalog     CatalogSource
	shops       ShopSet
	audit       AuditPort
	idempotency shared.IdempotencyGuard
	notifier    ChangeNotifier
	metrics     MetricsPort
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
}

// ServiceConfig groups collaborators; everything except Store, Catalog and Shops may be nil.
type ServiceConfig struct {
	Store       Store
	Catalog     CatalogSource
	Shops       ShopSet
	Audit       AuditPort
	Idempotency shared.IdempotencyGuard
	Notifier    ChangeNotifier
	Metrics     MetricsPort
	Logger      *slog.Logger
	Clock       func() time.Time
}

// NewService builds Service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		store:       cfg.Store,
		catalog:     cfg.Catalog,
		shops:       cfg.Shops,
		audit:       cfg.Audit,
		idempotency: cfg.Idempotency,
		notifier:    cfg.Notifier,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		validate:    shared.NewValidator(),
		now:         cfg.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Shops returns the configured shop names.
func (s *Service) Shops() []string {
	return s.shops.Names()
}

// Store exposes the underlying document store for read-only consumers.
func (s *Service) Store() Store {
	return s.store
}

// GetRecord returns the stored record without carry-forward.
func (s *Service) GetRecord(ctx context.Context, shop string, date Date) (Record, bool, error) {
	if err := s.checkShop(shop); err != nil {
		return Record{}, false, err
	}
	rec, ok, err := s.store.GetRecord(ctx, shop, date)
	if err != nil {
		return Record{}, false, wrapStoreErr("get record", err)
	}
	return rec, ok, nil
}

// RecordTransaction appends a validated entry of kind to (shop, date). A
// transfersOut also appends its mirrored transfersIn to the destination shop's
// record for the same date inside the same atomic operation.
func (s *Service) RecordTransaction(ctx context.Context, shop string, date Date, kind Kind, input EntryInput) (Record, error) {
	if err := s.checkShop(shop); err != nil {
		return Record{}, err
	}
	if date.IsZero() {
		return Record{}, shared.NewValidationError("date", "is required")
	}
	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return Record{}, wrapStoreErr("load catalog", err)
	}
	entry, err := NewEntry(kind, input, EntryRules{
		Shop:     shop,
		Shops:    s.shops,
		Catalog:  cat,
		Now:      s.now(),
		Validate: s.validate,
	})
	if err != nil {
		return Record{}, err
	}

	insertedKey := false
	if input.IdempotencyKey != "" && s.idempotency != nil {
		key := fmt.Sprintf("%s:%s:%s:%s", shop, date.Key(), kind, input.IdempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, "ledger"); err != nil {
			return Record{}, err
		}
		insertedKey = true
		input.IdempotencyKey = key
	}

	var result Record
	mutations := []Mutation{{
		Shop: shop,
		Date: date,
		Apply: func(rec *Record, exists bool) error {
			rec.Append(entry)
			result = rec.Clone()
			return nil
		},
	}}
	if kind == KindTransfersOut {
		mirror := mirrorOf(entry, shop)
		mutations = append(mutations, Mutation{
			Shop: entry.Transfer.Peer,
			Date: date,
			Apply: func(rec *Record, exists bool) error {
				rec.Append(mirror)
				return nil
			},
		})
	}

	if err := s.store.RunAtomic(ctx, mutations); err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		s.logger.Error("ledger record transaction", slog.String("shop", shop), slog.String("date", date.Key()), slog.String("kind", string(kind)), slog.Any("error", err))
		return Record{}, wrapStoreErr("record transaction", err)
	}

	s.observeWrite(kind)
	if kind == KindTransfersOut {
		s.observeWrite(KindTransfersIn)
	}
	s.bump(ctx)
	s.logger.Info("ledger entry recorded",
		slog.String("shop", shop),
		slog.String("date", date.Key()),
		slog.String("kind", string(kind)),
		slog.String("product", entry.ProductID()),
	)
	return result, nil
}

// EditEntry changes the editable fields of an entry in place. Quantity edits
// of a transfersOut are carried over to its mirror; mirrored transfersIn can
// only be changed through their transfersOut.
func (s *Service) EditEntry(ctx context.Context, shop string, date Date, kind Kind, id string, patch EntryPatch) (Record, error) {
	if err := s.checkShop(shop); err != nil {
		return Record{}, err
	}
	current, err := s.lookupEntry(ctx, shop, date, kind, id)
	if err != nil {
		return Record{}, err
	}
	if kind == KindTransfersIn && current.Transfer != nil && current.Transfer.Mirrored() {
		return Record{}, shared.NewValidationError("kind", "mirrored transfer can only be changed through its transfer out")
	}

	now := s.now()
	var (
		result  Record
		warning *ConsistencyWarning
	)
	mutations := []Mutation{{
		Shop: shop,
		Date: date,
		Apply: func(rec *Record, exists bool) error {
			idx, ok := rec.Find(kind, id)
			if !ok {
				return ErrNotFound
			}
			list := *rec.List(kind)
			if err := applyPatch(&list[idx], patch, now); err != nil {
				return err
			}
			result = rec.Clone()
			return nil
		},
	}}
	if kind == KindTransfersOut && patch.Quantity != nil && current.Transfer.Mirrored() {
		transfer := *current.Transfer
		mutations = append(mutations, Mutation{
			Shop: transfer.Peer,
			Date: date,
			Apply: func(rec *Record, exists bool) error {
				warning = nil
				idx, ok := rec.FindCorrelated(KindTransfersIn, transfer.CorrelationID)
				if !ok {
					warning = s.missingMirror(shop, transfer, date)
					return ErrSkipWrite
				}
				mirror := &rec.TransfersIn[idx]
				mirror.Transfer.Quantity = *patch.Quantity
				at := now
				mirror.EditedAt = &at
				return nil
			},
		})
	}

	if err := s.store.RunAtomic(ctx, mutations); err != nil {
		return Record{}, wrapStoreErr("edit entry", err)
	}
	if warning != nil {
		s.reportWarning(ctx, *warning, "edit")
	}
	s.observeWrite(kind)
	s.bump(ctx)
	s.logger.Info("ledger entry edited", slog.String("shop", shop), slog.String("date", date.Key()), slog.String("kind", string(kind)), slog.String("id", id))
	return result, nil
}

// DeleteResult describes a completed deletion.
type DeleteResult struct {
	Record   Record               `json:"record"`
	Deleted  Entry                `json:"deleted"`
	Warnings []ConsistencyWarning `json:"warnings,omitempty"`
}

// DeleteEntry permanently removes an entry. Only the highest-privilege role
// may delete; the check happens before anything is read or written. Deleting a
// transfersOut removes its mirror on the destination shop; a missing mirror
// is reported as a warning and the primary deletion proceeds. A mirrored
// transfersIn can only be deleted once its transfer out is gone.
func (s *Service) DeleteEntry(ctx context.Context, shop string, date Date, kind Kind, id string, requester shared.Role) (DeleteResult, error) {
	if !rbac.CanDelete(shared.Actor{Role: requester}) {
		return DeleteResult{}, ErrForbidden
	}
	if err := s.checkShop(shop); err != nil {
		return DeleteResult{}, err
	}
	current, err := s.lookupEntry(ctx, shop, date, kind, id)
	if err != nil {
		return DeleteResult{}, err
	}

	var (
		result  DeleteResult
		warning *ConsistencyWarning
	)
	var mutations []Mutation
	if kind == KindTransfersIn && current.Transfer != nil && current.Transfer.Mirrored() {
		// A mirror goes away with its transfer out. Only an orphan, whose source
		// no longer exists, may be removed directly.
		source := *current.Transfer
		mutations = append(mutations, Mutation{
			Shop: source.Peer,
			Date: date,
			Apply: func(rec *Record, exists bool) error {
				if _, ok := rec.FindCorrelated(KindTransfersOut, source.CorrelationID); ok {
					return errMirrorLinked
				}
				return ErrSkipWrite
			},
		})
	}
	mutations = append(mutations, Mutation{
		Shop: shop,
		Date: date,
		Apply: func(rec *Record, exists bool) error {
			idx, ok := rec.Find(kind, id)
			if !ok {
				return ErrNotFound
			}
			result.Deleted = rec.Remove(kind, idx)
			result.Record = rec.Clone()
			return nil
		},
	})
	if kind == KindTransfersOut && current.Transfer != nil && current.Transfer.Mirrored() {
		transfer := *current.Transfer
		mutations = append(mutations, Mutation{
			Shop: transfer.Peer,
			Date: date,
			Apply: func(rec *Record, exists bool) error {
				warning = nil
				idx, ok := rec.FindCorrelated(KindTransfersIn, transfer.CorrelationID)
				if !ok {
					warning = s.missingMirror(shop, transfer, date)
					return ErrSkipWrite
				}
				rec.Remove(KindTransfersIn, idx)
				return nil
			},
		})
	}

	if err := s.store.RunAtomic(ctx, mutations); err != nil {
		if errors.Is(err, errMirrorLinked) {
			return DeleteResult{}, shared.NewValidationError("kind", "mirrored transfer can only be removed through its transfer out")
		}
		return DeleteResult{}, wrapStoreErr("delete entry", err)
	}
	if warning != nil {
		result.Warnings = append(result.Warnings, *warning)
		s.reportWarning(ctx, *warning, "delete")
	}
	s.observeWrite(kind)
	s.bump(ctx)
	s.recordAudit(ctx, shared.AuditLog{
		Action:   "ledger.entry.delete",
		Entity:   string(kind),
		EntityID: fmt.Sprintf("%s/%s/%s", shop, date.Key(), id),
		Meta: map[string]any{
			"product":  result.Deleted.ProductID(),
			"quantity": result.Deleted.Quantity().String(),
			"role":     string(requester),
		},
	})
	s.logger.Info("ledger entry deleted", slog.String("shop", shop), slog.String("date", date.Key()), slog.String("kind", string(kind)), slog.String("id", id))
	return result, nil
}

func (s *Service) lookupEntry(ctx context.Context, shop string, date Date, kind Kind, id string) (Entry, error) {
	if !kind.Valid() {
		return Entry{}, shared.NewValidationError("kind", "unknown transaction kind "+string(kind))
	}
	rec, ok, err := s.store.GetRecord(ctx, shop, date)
	if err != nil {
		return Entry{}, wrapStoreErr("get record", err)
	}
	if !ok {
		return Entry{}, ErrNotFound
	}
	idx, found := rec.Find(kind, id)
	if !found {
		return Entry{}, ErrNotFound
	}
	return rec.Entries(kind)[idx], nil
}

func (s *Service) missingMirror(shop string, transfer Transfer, date Date) *ConsistencyWarning {
	return &ConsistencyWarning{
		Shop:          shop,
		PeerShop:      transfer.Peer,
		Date:          date,
		CorrelationID: transfer.CorrelationID,
		Message:       "mirrored transfer in not found",
	}
}

func (s *Service) reportWarning(ctx context.Context, w ConsistencyWarning, op string) {
	s.logger.Warn("ledger transfer mirror missing",
		slog.String("op", op),
		slog.String("shop", w.Shop),
		slog.String("peer", w.PeerShop),
		slog.String("date", w.Date.Key()),
		slog.String("correlation_id", w.CorrelationID.String()),
	)
	if s.metrics != nil {
		s.metrics.MirrorInconsistent("missing_on_" + op)
	}
	s.recordAudit(ctx, shared.AuditLog{
		Action:   "ledger.mirror.missing",
		Entity:   string(KindTransfersIn),
		EntityID: w.CorrelationID.String(),
		Meta:     map[string]any{"shop": w.Shop, "peer": w.PeerShop, "date": w.Date.Key(), "op": op},
	})
}

func (s *Service) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if actor, ok := shared.ActorFromContext(ctx); ok {
		log.ActorID = actor.ID
	}
	if log.At.IsZero() {
		log.At = s.now()
	}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("ledger audit", slog.String("action", log.Action), slog.Any("error", err))
	}
}

func (s *Service) checkShop(shop string) error {
	if !s.shops.Has(shop) {
		return shared.NewValidationError("shop", "unknown shop "+shop)
	}
	return nil
}

func (s *Service) observeWrite(kind Kind) {
	if s.metrics != nil {
		s.metrics.EntryWritten(string(kind))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Bump(ctx); err != nil {
		s.logger.Warn("ledger cache bump", slog.Any("error", err))
	}
}
