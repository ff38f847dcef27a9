package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	boltscorerepo "github.com/pointsledger/receipt-processor/internal/adapters/bolt/scorerepo"
	"github.com/pointsledger/receipt-processor/internal/adapters/httpapi"
	memclock "github.com/pointsledger/receipt-processor/internal/adapters/memory/clock"
	memidempotency "github.com/pointsledger/receipt-processor/internal/adapters/memory/idempotency"
	memscorerepo "github.com/pointsledger/receipt-processor/internal/adapters/memory/scorerepo"
	pgidempotency "github.com/pointsledger/receipt-processor/internal/adapters/postgres/idempotency"
	pgscorerepo "github.com/pointsledger/receipt-processor/internal/adapters/postgres/scorerepo"
	postgres_testutil "github.com/pointsledger/receipt-processor/internal/adapters/postgres/testutil"
	"github.com/pointsledger/receipt-processor/internal/app/receipts"
	idempotencyport "github.com/pointsledger/receipt-processor/internal/ports/out/idempotency"
	scorerepoport "github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendBolt     backend = "bolt"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "bolt":
		return []backend{backendBolt}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendBolt, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|bolt|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var (
		scoreRepo scorerepoport.Repository
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		scoreRepo = pgscorerepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
	case backendBolt:
		repo, err := boltscorerepo.Open(filepath.Join(t.TempDir(), "itest.db"))
		if err != nil {
			t.Fatalf("open bolt: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		scoreRepo = repo
		idemStore = memidempotency.NewStore()
	case backendMemory:
		scoreRepo = memscorerepo.NewRepo()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	svc := receipts.NewService(scoreRepo, clk, zerolog.Nop())
	api := httpapi.NewServer(svc, idemStore)
	handler := httpapi.NewRouter(api)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, headers map[string]string, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestId string `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
