package scorerepo

import (
	"context"

	"github.com/pointsledger/receipt-processor/internal/domain"
)

// Repository stores receipt scores.
//
// Records are insert-only: there is no update or delete. A Get that follows a
// completed Put for the same id must observe the record.
type Repository interface {
	// Put inserts rec. It returns ErrAlreadyExists if rec.ID is already stored.
	Put(ctx context.Context, rec domain.ScoreRecord) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id domain.ReceiptID) (domain.ScoreRecord, error)
}
