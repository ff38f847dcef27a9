package contracttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pointsledger/receipt-processor/internal/domain"
	idempotencyport "github.com/pointsledger/receipt-processor/internal/ports/out/idempotency"
	scorerepoport "github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

type CleanupFunc = func()

type ScoreRepoFactory func(t *testing.T) (scorerepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:    idempotencyport.Key("k-" + uuid.NewString()),
		Method: "POST",
		Route:  "/receipts/process",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before PutIfAbsent: ok=%v err=%v, want ok=false", ok, err)
	}

	rec := idempotencyport.Record{
		RequestHash: "hash-abc",
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"receipt_id":"r-1"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	stored, won, err := store.PutIfAbsent(ctx, fp, rec)
	if err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}
	if !won || stored.RequestHash != "hash-abc" {
		t.Fatalf("PutIfAbsent won=%v record=%+v, want the new record", won, stored)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if got.RequestHash != "hash-abc" || string(got.Body) != string(rec.Body) || got.ContentType != "application/json" || got.StatusCode != 200 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Fatalf("CreatedAt=%v, want %v", got.CreatedAt, rec.CreatedAt)
	}

	// The first record under a fingerprint is never replaced.
	rec2 := rec
	rec2.RequestHash = "hash-def"
	rec2.Body = []byte(`{"receipt_id":"r-2"}`)
	stored, won, err = store.PutIfAbsent(ctx, fp, rec2)
	if err != nil {
		t.Fatalf("PutIfAbsent second: %v", err)
	}
	if won || stored.RequestHash != "hash-abc" || string(stored.Body) != string(rec.Body) {
		t.Fatalf("second PutIfAbsent won=%v record=%+v, want the original", won, stored)
	}

	// Keys are scoped by route.
	other := fp
	other.Route = "/other"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other route: ok=%v err=%v, want ok=false", ok, err)
	}

	// Concurrent writers for one fingerprint: exactly one wins and everyone
	// sees the winner.
	race := idempotencyport.Fingerprint{
		Key:    idempotencyport.Key("k-" + uuid.NewString()),
		Method: "POST",
		Route:  "/receipts/process",
	}
	const n = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		hashes = make(map[string]bool)
		errs   = make(chan error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := rec
			r.RequestHash = uuid.NewString()
			got, won, err := store.PutIfAbsent(ctx, race, r)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if won {
				wins++
			}
			hashes[got.RequestHash] = true
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent PutIfAbsent: %v", err)
	}
	if wins != 1 || len(hashes) != 1 {
		t.Fatalf("concurrent PutIfAbsent wins=%d distinct records=%d, want 1 and 1", wins, len(hashes))
	}
}

func RunScoreRepo(t *testing.T, newRepo ScoreRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	id := domain.ReceiptID(uuid.NewString())
	if err := repo.Put(ctx, domain.ScoreRecord{ID: id, Points: 28, CreatedAt: now}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Read-after-write.
	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != id || got.Points != 28 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt=%v, want %v", got.CreatedAt, now)
	}

	// Records are immutable: a second Put under the same id is rejected
	// and the original value survives.
	if err := repo.Put(ctx, domain.ScoreRecord{ID: id, Points: 99, CreatedAt: now}); !errors.Is(err, scorerepoport.ErrAlreadyExists) {
		t.Fatalf("duplicate Put err=%v, want ErrAlreadyExists", err)
	}
	if got, err := repo.Get(ctx, id); err != nil || got.Points != 28 {
		t.Fatalf("after duplicate Put: points=%d err=%v, want 28", got.Points, err)
	}

	// Zero points is a real value, not an absence.
	zeroID := domain.ReceiptID(uuid.NewString())
	if err := repo.Put(ctx, domain.ScoreRecord{ID: zeroID, Points: 0, CreatedAt: now}); err != nil {
		t.Fatalf("Put zero: %v", err)
	}
	if got, err := repo.Get(ctx, zeroID); err != nil || got.Points != 0 {
		t.Fatalf("Get zero: points=%d err=%v", got.Points, err)
	}

	// Empty ids are never issued.
	if err := repo.Put(ctx, domain.ScoreRecord{Points: 1, CreatedAt: now}); !errors.Is(err, scorerepoport.ErrInvalidID) {
		t.Fatalf("Put empty id err=%v, want ErrInvalidID", err)
	}

	// Unknown ids are never answered with a default.
	if _, err := repo.Get(ctx, domain.ReceiptID(uuid.NewString())); !errors.Is(err, scorerepoport.ErrNotFound) {
		t.Fatalf("Get unknown err=%v, want ErrNotFound", err)
	}

	// Concurrent writers and readers.
	const n = 16
	ids := make([]domain.ReceiptID, n)
	for i := range ids {
		ids[i] = domain.ReceiptID(uuid.NewString())
	}
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i, cid := range ids {
		wg.Add(1)
		go func(points int, cid domain.ReceiptID) {
			defer wg.Done()
			if err := repo.Put(ctx, domain.ScoreRecord{ID: cid, Points: points, CreatedAt: now}); err != nil {
				errs <- err
				return
			}
			got, err := repo.Get(ctx, cid)
			if err != nil {
				errs <- err
				return
			}
			if got.Points != points {
				errs <- errors.New("concurrent read returned wrong points")
			}
		}(i, cid)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Put/Get: %v", err)
	}
}
