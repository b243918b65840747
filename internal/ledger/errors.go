package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yfarmers/feedledger/internal/shared"
)

// ValidationError is returned before any write when input is malformed.
type ValidationError = shared.ValidationError

// StorageError is returned when the store is unavailable or rejects a write.
type StorageError = shared.StorageError

var (
	// ErrNotFound indicates the record or entry does not exist.
	ErrNotFound = fmt.Errorf("ledger: entry %w", shared.ErrNotFound)
	// ErrForbidden indicates the requester may not perform the operation.
	ErrForbidden = fmt.Errorf("ledger: %w", shared.ErrForbidden)
	// ErrSkipWrite is returned by a Mutation to leave its document untouched.
	ErrSkipWrite = errors.New("ledger: skip write")

	errMirrorLinked = errors.New("ledger: transfer out still present")
)

// ConsistencyWarning reports a transfer whose counterpart entry is missing.
// It never fails the operation that detected it.
type ConsistencyWarning struct {
	Shop          string    `json:"shop"`
	PeerShop      string    `json:"peerShop"`
	Date          Date      `json:"date"`
	CorrelationID uuid.UUID `json:"correlationId"`
	Message       string    `json:"message"`
}

func (w ConsistencyWarning) Error() string {
	return fmt.Sprintf("ledger: %s (%s -> %s on %s, correlation %s)", w.Message, w.Shop, w.PeerShop, w.Date, w.CorrelationID)
}

// wrapStoreErr keeps domain errors intact and wraps everything else as a StorageError.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) ||
		errors.Is(err, shared.ErrForbidden) || errors.Is(err, shared.ErrUnavailable) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
