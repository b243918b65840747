package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/shared"
)

// DefaultShops is the fixed set of shops of the chain.
func DefaultShops() []string {
	return []string{"Usigu", "Port Victoria", "Mbita", "Usenge", "Lwanda Kotieno", "Obambo", "Sori"}
}

// ShopSet is the enumerated set of valid shop names.
type ShopSet struct {
	names []string
	index map[string]struct{}
}

// NewShopSet builds a ShopSet from names, dropping blanks and duplicates.
func NewShopSet(names []string) (ShopSet, error) {
	set := ShopSet{index: make(map[string]struct{}, len(names))}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := set.index[name]; dup {
			continue
		}
		set.index[name] = struct{}{}
		set.names = append(set.names, name)
	}
	if len(set.names) == 0 {
		return ShopSet{}, shared.NewValidationError("shops", "at least one shop is required")
	}
	return set, nil
}

// Names returns the shops in configured order.
func (s ShopSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether name is a configured shop.
func (s ShopSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Kind names one of the eight transaction lists of a ledger record.
type Kind string

const (
	KindRegularSales     Kind = "regularSales"
	KindCreditSales      Kind = "creditSales"
	KindRestocking       Kind = "restocking"
	KindTransfersIn      Kind = "transfersIn"
	KindTransfersOut     Kind = "transfersOut"
	KindCreditorReleases Kind = "creditorReleases"
	KindPrepayments      Kind = "prepayments"
	KindDebtPayments     Kind = "debtPayments"
)

// Kinds lists every transaction kind in record order.
var Kinds = []Kind{
	KindRegularSales,
	KindCreditSales,
	KindRestocking,
	KindTransfersIn,
	KindTransfersOut,
	KindCreditorReleases,
	KindPrepayments,
	KindDebtPayments,
}

// ParseKind validates a kind name.
func ParseKind(raw string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == raw {
			return k, nil
		}
	}
	return "", shared.NewValidationError("kind", "unknown transaction kind "+raw)
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// MovesStock reports whether entries of the kind carry a product quantity.
func (k Kind) MovesStock() bool {
	switch k {
	case KindPrepayments, KindDebtPayments:
		return false
	}
	return true
}

// Sale is the payload of regularSales and creditSales entries.
type Sale struct {
	ProductID      string              `json:"productId"`
	Quantity       decimal.Decimal     `json:"quantity"`
	UnitPrice      decimal.NullDecimal `json:"unitPrice"`
	Discount       decimal.Decimal     `json:"discount"`
	Customer       string              `json:"clientName,omitempty"`
	ParentClientID string              `json:"parentClientId,omitempty"`
}

// Restock is the payload of restocking entries.
type Restock struct {
	ProductID string              `json:"productId"`
	Quantity  decimal.Decimal     `json:"quantity"`
	Supplier  string              `json:"supplier,omitempty"`
	UnitCost  decimal.NullDecimal `json:"unitCost"`
}

// Release is the payload of creditorReleases entries.
type Release struct {
	ProductID      string              `json:"productId"`
	Quantity       decimal.Decimal     `json:"quantity"`
	Creditor       string              `json:"creditorName"`
	UnitPrice      decimal.NullDecimal `json:"unitPrice"`
	Discount       decimal.Decimal     `json:"discount"`
	ParentClientID string              `json:"parentClientId,omitempty"`
}

// Transfer is the payload of transfersIn and transfersOut entries.
// Peer is the destination shop for transfersOut and the source for transfersIn.
// A transfersIn carrying a CorrelationID is the mirror of a transfersOut.
type Transfer struct {
	ProductID     string          `json:"productId"`
	Quantity      decimal.Decimal `json:"quantity"`
	Peer          string          `json:"peerShop"`
	CorrelationID uuid.UUID       `json:"correlationId"`
}

// Mirrored reports whether the transfer is linked to a counterpart entry.
func (t Transfer) Mirrored() bool {
	return t.CorrelationID != uuid.Nil
}

// Payment is the payload of prepayments and debtPayments entries.
type Payment struct {
	Counterparty   string          `json:"clientName"`
	Amount         decimal.Decimal `json:"amount"`
	ParentClientID string          `json:"parentClientId,omitempty"`
	Method         string          `json:"method,omitempty"`
}

// Entry is one transaction inside a ledger list. Exactly one payload is set,
// matching Kind.
type Entry struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
	Note      string     `json:"note,omitempty"`

	Sale     *Sale     `json:"sale,omitempty"`
	Restock  *Restock  `json:"restock,omitempty"`
	Release  *Release  `json:"release,omitempty"`
	Transfer *Transfer `json:"transfer,omitempty"`
	Payment  *Payment  `json:"payment,omitempty"`
}

// ProductID returns the product moved by the entry, empty for payments.
func (e Entry) ProductID() string {
	switch {
	case e.Sale != nil:
		return e.Sale.ProductID
	case e.Restock != nil:
		return e.Restock.ProductID
	case e.Release != nil:
		return e.Release.ProductID
	case e.Transfer != nil:
		return e.Transfer.ProductID
	}
	return ""
}

// Quantity returns the bags moved by the entry, zero for payments.
func (e Entry) Quantity() decimal.Decimal {
	switch {
	case e.Sale != nil:
		return e.Sale.Quantity
	case e.Restock != nil:
		return e.Restock.Quantity
	case e.Release != nil:
		return e.Release.Quantity
	case e.Transfer != nil:
		return e.Transfer.Quantity
	}
	return decimal.Zero
}

// Counterparty returns the client, debtor, creditor or supplier name.
func (e Entry) Counterparty() string {
	switch {
	case e.Sale != nil:
		return e.Sale.Customer
	case e.Restock != nil:
		return e.Restock.Supplier
	case e.Release != nil:
		return e.Release.Creditor
	case e.Payment != nil:
		return e.Payment.Counterparty
	case e.Transfer != nil:
		return e.Transfer.Peer
	}
	return ""
}

func (e Entry) clone() Entry {
	out := e
	if e.EditedAt != nil {
		at := *e.EditedAt
		out.EditedAt = &at
	}
	if e.Sale != nil {
		v := *e.Sale
		out.Sale = &v
	}
	if e.Restock != nil {
		v := *e.Restock
		out.Restock = &v
	}
	if e.Release != nil {
		v := *e.Release
		out.Release = &v
	}
	if e.Transfer != nil {
		v := *e.Transfer
		out.Transfer = &v
	}
	if e.Payment != nil {
		v := *e.Payment
		out.Payment = &v
	}
	return out
}

// Record is the ledger of one shop for one calendar day.
type Record struct {
	Shop             string                     `json:"shop"`
	Date             Date                       `json:"date"`
	OpeningStock     map[string]decimal.Decimal `json:"openingStock"`
	RegularSales     []Entry                    `json:"regularSales"`
	CreditSales      []Entry                    `json:"creditSales"`
	Restocking       []Entry                    `json:"restocking"`
	TransfersIn      []Entry                    `json:"transfersIn"`
	TransfersOut     []Entry                    `json:"transfersOut"`
	CreditorReleases []Entry                    `json:"creditorReleases"`
	Prepayments      []Entry                    `json:"prepayments"`
	DebtPayments     []Entry                    `json:"debtPayments"`
	Seq              int64                      `json:"seq"`
	UpdatedAt        time.Time                  `json:"updatedAt"`
}

// NewRecord returns an empty record for (shop, date).
func NewRecord(shop string, date Date) Record {
	return Record{Shop: shop, Date: date, OpeningStock: map[string]decimal.Decimal{}}
}

// List returns a pointer to the list backing kind, nil for unknown kinds.
func (r *Record) List(kind Kind) *[]Entry {
	switch kind {
	case KindRegularSales:
		return &r.RegularSales
	case KindCreditSales:
		return &r.CreditSales
	case KindRestocking:
		return &r.Restocking
	case KindTransfersIn:
		return &r.TransfersIn
	case KindTransfersOut:
		return &r.TransfersOut
	case KindCreditorReleases:
		return &r.CreditorReleases
	case KindPrepayments:
		return &r.Prepayments
	case KindDebtPayments:
		return &r.DebtPayments
	}
	return nil
}

// Entries returns the entries of kind.
func (r Record) Entries(kind Kind) []Entry {
	if list := r.List(kind); list != nil {
		return *list
	}
	return nil
}

// Append assigns the next id to e and adds it to its list.
func (r *Record) Append(e Entry) Entry {
	r.Seq++
	e.ID = formatSeq(r.Seq)
	list := r.List(e.Kind)
	*list = append(*list, e)
	return e
}

// Find returns the index of the entry with id in kind's list.
func (r Record) Find(kind Kind, id string) (int, bool) {
	for i, e := range r.Entries(kind) {
		if e.ID == id {
			return i, true
		}
	}
	return -1, false
}

// FindCorrelated returns the index of the transfer in kind's list carrying correlationID.
func (r Record) FindCorrelated(kind Kind, correlationID uuid.UUID) (int, bool) {
	for i, e := range r.Entries(kind) {
		if e.Transfer != nil && e.Transfer.CorrelationID == correlationID {
			return i, true
		}
	}
	return -1, false
}

// Remove deletes the entry at idx of kind's list.
func (r *Record) Remove(kind Kind, idx int) Entry {
	list := r.List(kind)
	removed := (*list)[idx]
	*list = append((*list)[:idx:idx], (*list)[idx+1:]...)
	return removed
}

// Empty reports whether the record holds neither opening stock nor entries.
func (r Record) Empty() bool {
	if len(r.OpeningStock) > 0 {
		return false
	}
	for _, k := range Kinds {
		if len(r.Entries(k)) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := r
	out.OpeningStock = cloneQuantities(r.OpeningStock)
	for _, k := range Kinds {
		src := r.Entries(k)
		if src == nil {
			continue
		}
		dst := make([]Entry, len(src))
		for i, e := range src {
			dst[i] = e.clone()
		}
		*out.List(k) = dst
	}
	return out
}

// MergeRecord overlays incoming onto existing: opening stock keys are upserted
// and only the lists set on incoming replace the stored ones.
func MergeRecord(existing, incoming Record) Record {
	out := existing.Clone()
	if out.OpeningStock == nil {
		out.OpeningStock = map[string]decimal.Decimal{}
	}
	for id, qty := range incoming.OpeningStock {
		out.OpeningStock[id] = qty
	}
	incoming = incoming.Clone()
	for _, k := range Kinds {
		if list := incoming.Entries(k); list != nil {
			*out.List(k) = list
		}
	}
	if incoming.Seq > out.Seq {
		out.Seq = incoming.Seq
	}
	return out
}

func cloneQuantities(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	if in == nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
