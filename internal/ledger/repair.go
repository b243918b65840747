package ledger

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/shared"
)

// MirrorIssue is one transfer whose counterpart is missing.
type MirrorIssue struct {
	Shop          string          `json:"shop"`
	PeerShop      string          `json:"peerShop"`
	EntryID       string          `json:"entryId"`
	ProductID     string          `json:"productId"`
	Quantity      decimal.Decimal `json:"quantity"`
	CorrelationID uuid.UUID       `json:"correlationId"`
	Repaired      bool            `json:"repaired"`
}

// MirrorReport summarises a transfer consistency check for one date.
type MirrorReport struct {
	Date     Date          `json:"date"`
	Checked  int           `json:"checked"`
	Missing  []MirrorIssue `json:"missing"`
	Orphans  []MirrorIssue `json:"orphans"`
	Repaired int           `json:"repaired"`
}

// Consistent reports whether no issue was found.
func (r MirrorReport) Consistent() bool {
	return len(r.Missing) == 0 && len(r.Orphans) == 0
}

// CheckTransferMirrors verifies that every transfersOut on date has its
// transfersIn on the destination shop. With apply set, missing mirrors are
// recreated. Orphaned transfersIn are reported but never removed.
func (s *Service) CheckTransferMirrors(ctx context.Context, date Date, apply bool) (MirrorReport, error) {
	report := MirrorReport{Date: date}
	records := make(map[string]Record, len(s.shops.Names()))
	for _, shop := range s.shops.Names() {
		rec, ok, err := s.store.GetRecord(ctx, shop, date)
		if err != nil {
			return MirrorReport{}, wrapStoreErr("get record", err)
		}
		if ok {
			records[shop] = rec
		}
	}

	for _, shop := range s.shops.Names() {
		rec, ok := records[shop]
		if !ok {
			continue
		}
		for _, e := range rec.TransfersOut {
			if e.Transfer == nil || !e.Transfer.Mirrored() {
				continue
			}
			report.Checked++
			peer := records[e.Transfer.Peer]
			if _, found := peer.FindCorrelated(KindTransfersIn, e.Transfer.CorrelationID); found {
				continue
			}
			report.Missing = append(report.Missing, issueOf(shop, e))
		}
		for _, e := range rec.TransfersIn {
			if e.Transfer == nil || !e.Transfer.Mirrored() {
				continue
			}
			origin := records[e.Transfer.Peer]
			if _, found := origin.FindCorrelated(KindTransfersOut, e.Transfer.CorrelationID); found {
				continue
			}
			report.Orphans = append(report.Orphans, issueOf(shop, e))
		}
	}

	for i := range report.Missing {
		issue := &report.Missing[i]
		if s.metrics != nil {
			s.metrics.MirrorInconsistent("missing")
		}
		if !apply {
			continue
		}
		repaired, err := s.recreateMirror(ctx, date, *issue)
		if err != nil {
			return report, err
		}
		issue.Repaired = repaired
		if repaired {
			report.Repaired++
		}
	}
	for range report.Orphans {
		if s.metrics != nil {
			s.metrics.MirrorInconsistent("orphan")
		}
	}
	if report.Repaired > 0 {
		s.bump(ctx)
	}
	if !report.Consistent() {
		s.logger.Warn("ledger transfer mirrors inconsistent",
			slog.String("date", date.Key()),
			slog.Int("missing", len(report.Missing)),
			slog.Int("orphans", len(report.Orphans)),
			slog.Int("repaired", report.Repaired),
		)
	}
	return report, nil
}

func (s *Service) recreateMirror(ctx context.Context, date Date, issue MirrorIssue) (bool, error) {
	created := false
	err := s.store.RunAtomic(ctx, []Mutation{
		{
			// The source must still hold the transfer out when the mirror is written.
			Shop: issue.Shop,
			Date: date,
			Apply: func(rec *Record, exists bool) error {
				if _, ok := rec.FindCorrelated(KindTransfersOut, issue.CorrelationID); !ok {
					return ErrNotFound
				}
				return ErrSkipWrite
			},
		},
		{
			Shop: issue.PeerShop,
			Date: date,
			Apply: func(rec *Record, exists bool) error {
				created = false
				if _, ok := rec.FindCorrelated(KindTransfersIn, issue.CorrelationID); ok {
					return ErrSkipWrite
				}
				rec.Append(Entry{
					Kind:      KindTransfersIn,
					CreatedAt: s.now(),
					Note:      "restored transfer mirror",
					Transfer: &Transfer{
						ProductID:     issue.ProductID,
						Quantity:      issue.Quantity,
						Peer:          issue.Shop,
						CorrelationID: issue.CorrelationID,
					},
				})
				created = true
				return nil
			},
		},
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, wrapStoreErr("repair mirror", err)
	}
	if created {
		s.observeWrite(KindTransfersIn)
		s.recordAudit(ctx, shared.AuditLog{
			Action:   "ledger.mirror.repair",
			Entity:   string(KindTransfersIn),
			EntityID: issue.CorrelationID.String(),
			Meta:     map[string]any{"shop": issue.Shop, "peer": issue.PeerShop, "date": date.Key()},
		})
	}
	return created, nil
}

func issueOf(shop string, e Entry) MirrorIssue {
	return MirrorIssue{
		Shop:          shop,
		PeerShop:      e.Transfer.Peer,
		EntryID:       e.ID,
		ProductID:     e.Transfer.ProductID,
		Quantity:      e.Transfer.Quantity,
		CorrelationID: e.Transfer.CorrelationID,
	}
}
