package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	memclock "github.com/pointsledger/receipt-processor/internal/adapters/memory/clock"
	memscorerepo "github.com/pointsledger/receipt-processor/internal/adapters/memory/scorerepo"
	"github.com/pointsledger/receipt-processor/internal/domain"
	"github.com/pointsledger/receipt-processor/internal/domain/points"
	"github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

func newTestService(t *testing.T) (*Service, *memscorerepo.Repo) {
	t.Helper()
	repo := memscorerepo.NewRepo()
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	return NewService(repo, clk, zerolog.Nop()), repo
}

func targetInput() SubmitInput {
	item := func(desc, price string) ItemInput {
		return ItemInput{ShortDescription: Some(desc), Price: Some(price)}
	}
	return SubmitInput{
		Retailer:     Some("Target"),
		PurchaseDate: Some("2022-01-01"),
		PurchaseTime: Some("13:01"),
		Items: Some([]ItemInput{
			item("Mountain Dew 12PK", "6.49"),
			item("Emils Cheese Pizza", "12.25"),
			item("Knorr Creamy Chicken", "1.26"),
			item("Doritos Nacho Cheese", "3.35"),
			item("   Klarbrunn 12-PK 12 FL OZ  ", "12.00"),
		}),
		Total: Some("35.35"),
	}
}

func TestService_SubmitThenLookup(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	id, err := svc.Submit(context.Background(), targetInput())
	if err != nil {
		t.Fatalf("Submit err=%v", err)
	}
	if id == "" {
		t.Fatalf("Submit returned empty id")
	}

	got, err := svc.Lookup(context.Background(), id)
	if err != nil {
		t.Fatalf("Lookup err=%v", err)
	}
	if got != 28 {
		t.Fatalf("Lookup=%d, want 28", got)
	}
}

func TestService_LookupMatchesComputePoints(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	in := SubmitInput{
		Retailer:     Some("M&M Corner Market"),
		PurchaseDate: Some("2022-03-20"),
		PurchaseTime: Some("14:33"),
		Items: Some([]ItemInput{
			{ShortDescription: Some("Gatorade"), Price: Some("2.25")},
			{ShortDescription: Some("Gatorade"), Price: Some("2.25")},
		}),
		Total: Some("9.00"),
	}
	want, err := points.ComputePoints(domain.Receipt{
		Retailer:     "M&M Corner Market",
		PurchaseDate: "2022-03-20",
		PurchaseTime: "14:33",
		Items:        []domain.Item{{ShortDescription: "Gatorade", Price: "2.25"}, {ShortDescription: "Gatorade", Price: "2.25"}},
		Total:        "9.00",
	})
	if err != nil {
		t.Fatalf("ComputePoints err=%v", err)
	}

	id, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit err=%v", err)
	}
	got, err := svc.Lookup(context.Background(), id)
	if err != nil || got != want {
		t.Fatalf("Lookup=%d err=%v, want %d", got, err, want)
	}
}

func TestService_SubmitIssuesUniqueIDs(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService(t)

	const n = 32
	var (
		mu  sync.Mutex
		ids = make(map[domain.ReceiptID]bool, n)
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.Submit(context.Background(), targetInput())
			if err != nil {
				t.Errorf("Submit err=%v", err)
				return
			}
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(ids) != n || repo.Len() != n {
		t.Fatalf("unique ids=%d stored=%d, want %d", len(ids), repo.Len(), n)
	}
}

func TestService_Submit_MissingFieldsRejectedBeforeStore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*SubmitInput)
		missing string
	}{
		{"retailer", func(in *SubmitInput) { in.Retailer = Unspecified[string]() }, "retailer"},
		{"purchaseDate", func(in *SubmitInput) { in.PurchaseDate = Unspecified[string]() }, "purchaseDate"},
		{"purchaseTime", func(in *SubmitInput) { in.PurchaseTime = Null[string]() }, "purchaseTime"},
		{"items", func(in *SubmitInput) { in.Items = Unspecified[[]ItemInput]() }, "items"},
		{"total", func(in *SubmitInput) { in.Total = Null[string]() }, "total"},
		{"item price", func(in *SubmitInput) {
			in.Items = Some([]ItemInput{{ShortDescription: Some("abc")}})
		}, "items[0].price"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, repo := newTestService(t)
			generated := false
			svc.newReceiptID = func() domain.ReceiptID {
				generated = true
				return "should-not-happen"
			}

			in := targetInput()
			tc.mutate(&in)
			_, err := svc.Submit(context.Background(), in)

			ae := (*Error)(nil)
			if !errors.As(err, &ae) || ae.Status != 400 || ae.Code != CodeReceiptInvalid {
				t.Fatalf("err=%v (type=%T), want RECEIPT_INVALID 400", err, err)
			}
			if _, ok := ae.Details[tc.missing]; !ok {
				t.Fatalf("details=%v, want key %q", ae.Details, tc.missing)
			}
			if generated {
				t.Fatalf("id generated for invalid receipt")
			}
			if repo.Len() != 0 {
				t.Fatalf("store has %d records, want 0", repo.Len())
			}
		})
	}
}

func TestService_Submit_EmptyItemsAccepted(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	in := targetInput()
	in.Items = Some([]ItemInput{})

	id, err := svc.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("Submit err=%v", err)
	}
	// 6 retailer + 6 odd day.
	if got, err := svc.Lookup(context.Background(), id); err != nil || got != 12 {
		t.Fatalf("Lookup=%d err=%v, want 12", got, err)
	}
}

func TestService_Submit_ParseError(t *testing.T) {
	t.Parallel()

	svc, repo := newTestService(t)
	in := targetInput()
	in.PurchaseDate = Some("01/01/2022")

	_, err := svc.Submit(context.Background(), in)
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 400 || ae.Code != CodeReceiptUnparseable {
		t.Fatalf("err=%v, want RECEIPT_UNPARSEABLE 400", err)
	}
	if !errors.Is(err, points.ErrParse) {
		t.Fatalf("err=%v, want wrapped points.ErrParse", err)
	}
	if _, ok := ae.Details["purchaseDate"]; !ok {
		t.Fatalf("details=%v, want purchaseDate", ae.Details)
	}
	if repo.Len() != 0 {
		t.Fatalf("store has %d records, want 0", repo.Len())
	}
}

func TestService_Lookup_NotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.Lookup(context.Background(), domain.ReceiptID("never-issued"))
	ae := (*Error)(nil)
	if !errors.As(err, &ae) || ae.Status != 404 || ae.Code != CodeReceiptNotFound {
		t.Fatalf("err=%v, want RECEIPT_NOT_FOUND 404", err)
	}
}

type failingRepo struct{ err error }

func (f failingRepo) Put(context.Context, domain.ScoreRecord) error { return f.err }
func (f failingRepo) Get(context.Context, domain.ReceiptID) (domain.ScoreRecord, error) {
	return domain.ScoreRecord{}, f.err
}

func TestService_StoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	svc := NewService(failingRepo{err: boom}, memclock.NewManualClock(time.Unix(100, 0)), zerolog.Nop())

	if _, err := svc.Submit(context.Background(), targetInput()); !errors.Is(err, boom) {
		t.Fatalf("Submit err=%v, want %v", err, boom)
	}
	if _, err := svc.Lookup(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("Lookup err=%v, want %v", err, boom)
	}

	svc = NewService(failingRepo{err: scorerepo.ErrAlreadyExists}, memclock.NewManualClock(time.Unix(100, 0)), zerolog.Nop())
	if _, err := svc.Submit(context.Background(), targetInput()); !errors.Is(err, scorerepo.ErrAlreadyExists) {
		t.Fatalf("Submit err=%v, want ErrAlreadyExists", err)
	}
}

func TestService_LogsThroughContextLogger(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	var buf bytes.Buffer
	reqLog := zerolog.New(&buf).With().Str("request_id", "req-42").Logger()
	ctx := reqLog.WithContext(context.Background())

	id, err := svc.Submit(ctx, targetInput())
	if err != nil {
		t.Fatalf("Submit err=%v", err)
	}

	var stored map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line %q: %v", line, err)
		}
		if entry["message"] == "stored receipt score" {
			stored = entry
		}
	}
	if stored == nil {
		t.Fatalf("no stored receipt score line in %s", buf.String())
	}
	if stored["request_id"] != "req-42" || stored["receipt_id"] != string(id) || stored["component"] != "receipts" {
		t.Fatalf("log entry=%v, want request_id, receipt_id and component", stored)
	}
}
