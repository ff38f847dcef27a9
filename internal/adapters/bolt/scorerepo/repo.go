package scorerepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/pointsledger/receipt-processor/internal/domain"
	"github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

const bucketName = "receipt_scores"

type scoreRow struct {
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// Repo is a BoltDB implementation of scorerepo.Repository.
// bbolt serializes writers, so Put's existence check and insert are atomic.
type Repo struct {
	db *bbolt.DB
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Repo, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &Repo{db: db}, nil
}

func (r *Repo) Put(ctx context.Context, rec domain.ScoreRecord) error {
	_ = ctx
	if rec.ID == "" {
		return scorerepo.ErrInvalidID
	}
	data, err := json.Marshal(scoreRow{Points: rec.Points, CreatedAt: rec.CreatedAt.UTC()})
	if err != nil {
		return fmt.Errorf("marshaling score: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(rec.ID)) != nil {
			return scorerepo.ErrAlreadyExists
		}
		return bucket.Put([]byte(rec.ID), data)
	})
}

func (r *Repo) Get(ctx context.Context, id domain.ReceiptID) (domain.ScoreRecord, error) {
	_ = ctx
	var row scoreRow
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(id))
		if data == nil {
			return scorerepo.ErrNotFound
		}
		if err := json.Unmarshal(data, &row); err != nil {
			return fmt.Errorf("unmarshaling score %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return domain.ScoreRecord{ID: id, Points: row.Points, CreatedAt: row.CreatedAt.UTC()}, nil
}

// Close closes the database file.
func (r *Repo) Close() error {
	return r.db.Close()
}
