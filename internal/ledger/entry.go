package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/catalog"
	"github.com/yfarmers/feedledger/internal/shared"
)

// EntryInput is the submitted data for a new transaction of any kind.
type EntryInput struct {
	ProductID      string              `json:"productId" validate:"max=64"`
	Quantity       decimal.Decimal     `json:"quantity" validate:"gte=0"`
	UnitPrice      decimal.NullDecimal `json:"unitPrice" validate:"omitempty,gte=0"`
	Discount       decimal.Decimal     `json:"discount" validate:"gte=0"`
	Amount         decimal.Decimal     `json:"amount" validate:"gte=0"`
	Counterparty   string              `json:"counterparty" validate:"max=128"`
	ParentClientID string              `json:"parentClientId" validate:"max=128"`
	PeerShop       string              `json:"peerShop" validate:"max=64"`
	Method         string              `json:"method" validate:"max=32"`
	Note           string              `json:"note" validate:"max=512"`

	// IdempotencyKey deduplicates client retries; it is not stored on the entry.
	IdempotencyKey string `json:"-"`
}

// EntryRules carries what NewEntry validates against.
type EntryRules struct {
	Shop     string
	Shops    ShopSet
	Catalog  catalog.Catalog
	Now      time.Time
	Validate *validator.Validate
}

// NewEntry validates input for kind and builds the entry. The id is assigned
// when the entry is appended to a record; transfersOut get a fresh correlation id.
func NewEntry(kind Kind, in EntryInput, rules EntryRules) (Entry, error) {
	if rules.Validate == nil {
		rules.Validate = shared.NewValidator()
	}
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.Counterparty = strings.TrimSpace(in.Counterparty)
	in.ParentClientID = strings.TrimSpace(in.ParentClientID)
	in.PeerShop = strings.TrimSpace(in.PeerShop)
	if err := shared.ValidateStruct(rules.Validate, in); err != nil {
		return Entry{}, err
	}

	e := Entry{Kind: kind, CreatedAt: rules.Now, Note: strings.TrimSpace(in.Note)}
	if kind.MovesStock() {
		if err := validateStockFields(in, rules.Catalog); err != nil {
			return Entry{}, err
		}
	}

	switch kind {
	case KindRegularSales, KindCreditSales:
		if kind == KindCreditSales && in.Counterparty == "" {
			return Entry{}, shared.NewValidationError("counterparty", "debtor name is required for credit sales")
		}
		e.Sale = &Sale{
			ProductID:      in.ProductID,
			Quantity:       in.Quantity,
			UnitPrice:      in.UnitPrice,
			Discount:       in.Discount,
			Customer:       in.Counterparty,
			ParentClientID: in.ParentClientID,
		}
	case KindRestocking:
		e.Restock = &Restock{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Supplier:  in.Counterparty,
			UnitCost:  in.UnitPrice,
		}
	case KindCreditorReleases:
		if in.Counterparty == "" {
			return Entry{}, shared.NewValidationError("counterparty", "creditor name is required")
		}
		e.Release = &Release{
			ProductID:      in.ProductID,
			Quantity:       in.Quantity,
			Creditor:       in.Counterparty,
			UnitPrice:      in.UnitPrice,
			Discount:       in.Discount,
			ParentClientID: in.ParentClientID,
		}
	case KindTransfersIn, KindTransfersOut:
		if in.PeerShop == "" {
			return Entry{}, shared.NewValidationError("peerShop", "is required for transfers")
		}
		if !rules.Shops.Has(in.PeerShop) {
			return Entry{}, shared.NewValidationError("peerShop", "unknown shop "+in.PeerShop)
		}
		if in.PeerShop == rules.Shop {
			return Entry{}, shared.NewValidationError("peerShop", "must differ from the recording shop")
		}
		e.Transfer = &Transfer{ProductID: in.ProductID, Quantity: in.Quantity, Peer: in.PeerShop}
		if kind == KindTransfersOut {
			e.Transfer.CorrelationID = uuid.New()
		}
	case KindPrepayments, KindDebtPayments:
		if in.Counterparty == "" {
			return Entry{}, shared.NewValidationError("counterparty", "client name is required for payments")
		}
		if !in.Amount.IsPositive() {
			return Entry{}, shared.NewValidationError("amount", "must be greater than zero")
		}
		e.Payment = &Payment{
			Counterparty:   in.Counterparty,
			Amount:         in.Amount,
			ParentClientID: in.ParentClientID,
			Method:         strings.TrimSpace(in.Method),
		}
	default:
		return Entry{}, shared.NewValidationError("kind", "unknown transaction kind "+string(kind))
	}
	return e, nil
}

func validateStockFields(in EntryInput, cat catalog.Catalog) error {
	if in.ProductID == "" {
		return shared.NewValidationError("productId", "is required")
	}
	if !cat.Has(in.ProductID) {
		return shared.NewValidationError("productId", "unknown product "+in.ProductID)
	}
	if !in.Quantity.IsPositive() {
		return shared.NewValidationError("quantity", "must be greater than zero")
	}
	return nil
}

// mirrorOf builds the transfersIn counterpart of a transfersOut entry recorded by shop.
func mirrorOf(out Entry, shop string) Entry {
	return Entry{
		Kind:      KindTransfersIn,
		CreatedAt: out.CreatedAt,
		Note:      out.Note,
		Transfer: &Transfer{
			ProductID:     out.Transfer.ProductID,
			Quantity:      out.Transfer.Quantity,
			Peer:          shop,
			CorrelationID: out.Transfer.CorrelationID,
		},
	}
}

// EntryPatch lists the in-place editable fields; nil fields are left unchanged.
type EntryPatch struct {
	Note           *string          `json:"note"`
	Counterparty   *string          `json:"counterparty"`
	ParentClientID *string          `json:"parentClientId"`
	Quantity       *decimal.Decimal `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unitPrice"`
	Discount       *decimal.Decimal `json:"discount"`
	Amount         *decimal.Decimal `json:"amount"`
}

// applyPatch edits e in place and stamps EditedAt. Kind and id never change.
func applyPatch(e *Entry, p EntryPatch, now time.Time) error {
	if p.Quantity != nil && !p.Quantity.IsPositive() {
		return shared.NewValidationError("quantity", "must be greater than zero")
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return shared.NewValidationError("amount", "must be greater than zero")
	}
	if p.Discount != nil && p.Discount.IsNegative() {
		return shared.NewValidationError("discount", "must not be negative")
	}
	if p.UnitPrice != nil && p.UnitPrice.IsNegative() {
		return shared.NewValidationError("unitPrice", "must not be negative")
	}
	if p.Quantity != nil && !e.Kind.MovesStock() {
		return shared.NewValidationError("quantity", "not applicable to "+string(e.Kind))
	}
	if p.Amount != nil && e.Payment == nil {
		return shared.NewValidationError("amount", "not applicable to "+string(e.Kind))
	}
	if p.Discount != nil && e.Sale == nil && e.Release == nil {
		return shared.NewValidationError("discount", "not applicable to "+string(e.Kind))
	}
	if p.UnitPrice != nil && e.Sale == nil && e.Release == nil && e.Restock == nil {
		return shared.NewValidationError("unitPrice", "not applicable to "+string(e.Kind))
	}
	if p.Counterparty != nil {
		name := strings.TrimSpace(*p.Counterparty)
		if e.Transfer != nil {
			return shared.NewValidationError("counterparty", "the peer shop of a transfer cannot be changed")
		}
		if name == "" && (e.Kind == KindCreditSales || e.Release != nil || e.Payment != nil) {
			return shared.NewValidationError("counterparty", "must not be empty")
		}
		p.Counterparty = &name
	}

	if p.Note != nil {
		e.Note = strings.TrimSpace(*p.Note)
	}
	switch {
	case e.Sale != nil:
		setString(&e.Sale.Customer, p.Counterparty)
		setString(&e.Sale.ParentClientID, p.ParentClientID)
		setDecimal(&e.Sale.Quantity, p.Quantity)
		setDecimal(&e.Sale.Discount, p.Discount)
		setNullDecimal(&e.Sale.UnitPrice, p.UnitPrice)
	case e.Restock != nil:
		setString(&e.Restock.Supplier, p.Counterparty)
		setDecimal(&e.Restock.Quantity, p.Quantity)
		setNullDecimal(&e.Restock.UnitCost, p.UnitPrice)
	case e.Release != nil:
		setString(&e.Release.Creditor, p.Counterparty)
		setString(&e.Release.ParentClientID, p.ParentClientID)
		setDecimal(&e.Release.Quantity, p.Quantity)
		setDecimal(&e.Release.Discount, p.Discount)
		setNullDecimal(&e.Release.UnitPrice, p.UnitPrice)
	case e.Transfer != nil:
		setDecimal(&e.Transfer.Quantity, p.Quantity)
	case e.Payment != nil:
		setString(&e.Payment.Counterparty, p.Counterparty)
		setString(&e.Payment.ParentClientID, p.ParentClientID)
		setDecimal(&e.Payment.Amount, p.Amount)
	}
	at := now
	e.EditedAt = &at
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setDecimal(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

func setNullDecimal(dst *decimal.NullDecimal, v *decimal.Decimal) {
	if v != nil {
		*dst = decimal.NewNullDecimal(*v)
	}
}

func formatSeq(seq int64) string {
	return strconv.FormatInt(seq, 10)
}
