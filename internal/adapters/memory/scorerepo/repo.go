package scorerepo

import (
	"context"
	"sync"

	"github.com/pointsledger/receipt-processor/internal/domain"
	"github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

// Repo is an in-memory implementation of scorerepo.Repository.
// It is safe for concurrent use. Contents live for the lifetime of the process.
type Repo struct {
	mu sync.RWMutex
	m  map[domain.ReceiptID]domain.ScoreRecord
}

func NewRepo() *Repo {
	return &Repo{
		m: make(map[domain.ReceiptID]domain.ScoreRecord),
	}
}

func (r *Repo) Put(ctx context.Context, rec domain.ScoreRecord) error {
	_ = ctx
	if rec.ID == "" {
		return scorerepo.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.m[rec.ID]; ok {
		return scorerepo.ErrAlreadyExists
	}
	r.m[rec.ID] = rec
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.ReceiptID) (domain.ScoreRecord, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.m[id]
	if !ok {
		return domain.ScoreRecord{}, scorerepo.ErrNotFound
	}
	return rec, nil
}

// Len reports the number of stored records.
func (r *Repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
