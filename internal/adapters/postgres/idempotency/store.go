package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointsledger/receipt-processor/internal/ports/out/idempotency"
)

// Store is a Postgres implementation of idempotency.Store.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT request_hash, status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
		  AND method = $2
		  AND route = $3
	`,
		string(fp.Key),
		fp.Method,
		fp.Route,
	)
	var rec idempotency.Record
	if err := row.Scan(&rec.RequestHash, &rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

// PutIfAbsent relies on the primary key: of two concurrent inserts for one
// fingerprint exactly one affects a row, and the other reads the winner back.
func (s *Store) PutIfAbsent(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.Body == nil {
		rec.Body = []byte{}
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (
			idempotency_key,
			method,
			route,
			request_hash,
			status_code,
			content_type,
			body,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (idempotency_key, method, route) DO NOTHING
	`,
		string(fp.Key),
		fp.Method,
		fp.Route,
		rec.RequestHash,
		rec.StatusCode,
		rec.ContentType,
		rec.Body,
		rec.CreatedAt,
	)
	if err != nil {
		return idempotency.Record{}, false, err
	}
	if tag.RowsAffected() == 1 {
		return rec, true, nil
	}

	existing, ok, err := s.Get(ctx, fp)
	if err != nil {
		return idempotency.Record{}, false, err
	}
	if !ok {
		return idempotency.Record{}, false, fmt.Errorf("idempotency key %q conflicted but no record found", fp.Key)
	}
	return existing, false, nil
}
