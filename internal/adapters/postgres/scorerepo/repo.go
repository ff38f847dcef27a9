package scorerepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/pointsledger/receipt-processor/internal/adapters/postgres"
	"github.com/pointsledger/receipt-processor/internal/domain"
	"github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

// Repo is a Postgres implementation of scorerepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Put(ctx context.Context, rec domain.ScoreRecord) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(rec.ID))
	if err != nil {
		return fmt.Errorf("%w: %v", scorerepo.ErrInvalidID, err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO receipt_scores (receipt_id, points, created_at)
		VALUES ($1, $2, $3)
	`, id, rec.Points, rec.CreatedAt.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return scorerepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.ReceiptID) (domain.ScoreRecord, error) {
	if r.pool == nil {
		return domain.ScoreRecord{}, errors.New("nil postgres pool")
	}
	rid, err := uuid.Parse(string(id))
	if err != nil {
		return domain.ScoreRecord{}, scorerepo.ErrNotFound
	}

	row := r.pool.QueryRow(ctx, `
		SELECT points, created_at
		FROM receipt_scores
		WHERE receipt_id = $1
	`, rid)
	rec := domain.ScoreRecord{ID: id}
	if err := row.Scan(&rec.Points, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScoreRecord{}, scorerepo.ErrNotFound
		}
		return domain.ScoreRecord{}, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
