package idempotency

import (
	"context"
	"sync"

	"github.com/pointsledger/receipt-processor/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use. Records are kept until the process exits.
type Store struct {
	mu sync.RWMutex
	m  map[idempotency.Fingerprint]idempotency.Record
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		m: make(map[idempotency.Fingerprint]idempotency.Record),
	}
}

func (s *Store) Get(_ context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *Store) PutIfAbsent(_ context.Context, fp idempotency.Fingerprint, rec idempotency.Record) (idempotency.Record, bool, error) {
	rec = cloneRecord(rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[fp]; ok {
		return cloneRecord(existing), false, nil
	}
	s.m[fp] = rec
	return cloneRecord(rec), true, nil
}

func cloneRecord(rec idempotency.Record) idempotency.Record {
	rec.Body = append([]byte(nil), rec.Body...)
	return rec
}
