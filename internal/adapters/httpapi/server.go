package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/nullable"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/pointsledger/receipt-processor/internal/app/receipts"
	"github.com/pointsledger/receipt-processor/internal/domain"
	"github.com/pointsledger/receipt-processor/internal/ports/out/idempotency"
)

const (
	maxBodyBytes       = 1 << 20
	processRoute       = "/receipts/process"
	idempotencyKeyHdr  = "Idempotency-Key"
	contentTypeJSON    = "application/json"
	codeInvalidJSON    = "INVALID_JSON"
	codeKeyReuse       = "IDEMPOTENCY_KEY_REUSE"
	codeInternal       = "INTERNAL"
	codeReceiptMissing = receipts.CodeReceiptNotFound
)

// ItemRequest and ProcessReceiptRequest track field presence so the service
// can tell an omitted field from an empty one.
type ItemRequest struct {
	ShortDescription nullable.Nullable[string] `json:"shortDescription,omitempty"`
	Price            nullable.Nullable[string] `json:"price,omitempty"`
}

type ProcessReceiptRequest struct {
	Retailer     nullable.Nullable[string]        `json:"retailer,omitempty"`
	PurchaseDate nullable.Nullable[string]        `json:"purchaseDate,omitempty"`
	PurchaseTime nullable.Nullable[string]        `json:"purchaseTime,omitempty"`
	Items        nullable.Nullable[[]ItemRequest] `json:"items,omitempty"`
	Total        nullable.Nullable[string]        `json:"total,omitempty"`
}

type ProcessReceiptResponse struct {
	ReceiptID string `json:"receipt_id"`
}

type PointsResponse struct {
	Points int `json:"points"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

// Server is the HTTP adapter over the receipts service.
type Server struct {
	Receipts *receipts.Service
	Idem     idempotency.Store

	inflight singleflight.Group
}

// NewServer wires the adapter. idem may be nil, which disables Idempotency-Key handling.
func NewServer(receiptsSvc *receipts.Service, idem idempotency.Store) *Server {
	return &Server{
		Receipts: receiptsSvc,
		Idem:     idem,
	}
}

func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "OK"})
}

func (s *Server) ProcessReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidJSON, "could not read request body", nil)
		return
	}
	var body ProcessReceiptRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidJSON, "request body is not a valid receipt document", map[string]any{"body": err.Error()})
		return
	}

	in := submitInputFromRequest(body)

	idemKey := strings.TrimSpace(r.Header.Get(idempotencyKeyHdr))
	if s.Idem == nil || idemKey == "" {
		id, err := s.Receipts.Submit(ctx, in)
		if err != nil {
			s.serviceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ProcessReceiptResponse{ReceiptID: string(id)})
		return
	}

	// Idempotency handling:
	// - Replay if same key+route+bodyHash
	// - Reject if same key+route with different bodyHash (409)
	// Concurrent requests carrying the same key and body share one submission.
	bodyHash, err := hashProcessReceiptBody(body)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	fp := idempotency.Fingerprint{
		Key:    idempotency.Key(idemKey),
		Method: http.MethodPost,
		Route:  processRoute,
	}
	v, err, shared := s.inflight.Do(idemKey+"\x00"+bodyHash, func() (any, error) {
		return s.submitOnce(context.WithoutCancel(ctx), fp, bodyHash, in)
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	rec := v.(idempotency.Record)
	if rec.RequestHash != bodyHash {
		writeError(w, r, http.StatusConflict, codeKeyReuse, "idempotency key reuse with different payload", nil)
		return
	}
	if shared {
		zerolog.Ctx(ctx).Debug().Str("idempotency_key", idemKey).Msg("joined in-flight submission")
	}
	w.Header().Set("Content-Type", rec.ContentType)
	w.WriteHeader(rec.StatusCode)
	_, _ = w.Write(rec.Body)
}

// submitOnce returns the response recorded under fp, submitting the receipt
// first if the key is new. The response is recorded before it is returned, so
// a client never sees an id the key does not replay.
func (s *Server) submitOnce(ctx context.Context, fp idempotency.Fingerprint, bodyHash string, in receipts.SubmitInput) (idempotency.Record, error) {
	if rec, ok, err := s.Idem.Get(ctx, fp); err != nil {
		return idempotency.Record{}, fmt.Errorf("load idempotency record: %w", err)
	} else if ok {
		zerolog.Ctx(ctx).Debug().Str("idempotency_key", string(fp.Key)).Msg("replaying stored response")
		return rec, nil
	}

	id, err := s.Receipts.Submit(ctx, in)
	if err != nil {
		return idempotency.Record{}, err
	}
	b, err := json.Marshal(ProcessReceiptResponse{ReceiptID: string(id)})
	if err != nil {
		return idempotency.Record{}, err
	}
	rec, won, err := s.Idem.PutIfAbsent(ctx, fp, idempotency.Record{
		RequestHash: bodyHash,
		StatusCode:  http.StatusOK,
		ContentType: contentTypeJSON,
		Body:        b,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return idempotency.Record{}, fmt.Errorf("store idempotency record: %w", err)
	}
	if !won {
		zerolog.Ctx(ctx).Warn().
			Str("idempotency_key", string(fp.Key)).
			Str("receipt_id", string(id)).
			Msg("idempotency key claimed concurrently; replaying the stored response")
	}
	return rec, nil
}

func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	if ae := (*receipts.Error)(nil); errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}
	s.internalError(w, r, err)
}

func (s *Server) GetPoints(w http.ResponseWriter, r *http.Request) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		// Only UUIDs are ever issued, so anything else cannot name a receipt.
		writeError(w, r, http.StatusNotFound, codeReceiptMissing, "No receipt found for ID: "+chi.URLParam(r, "id"), nil)
		return
	}

	pts, err := s.Receipts.Lookup(r.Context(), domain.ReceiptID(id.String()))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PointsResponse{Points: pts})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error", nil)
}

func submitInputFromRequest(b ProcessReceiptRequest) receipts.SubmitInput {
	in := receipts.SubmitInput{
		Retailer:     optionalFrom(b.Retailer),
		PurchaseDate: optionalFrom(b.PurchaseDate),
		PurchaseTime: optionalFrom(b.PurchaseTime),
		Total:        optionalFrom(b.Total),
	}
	switch {
	case !b.Items.IsSpecified():
		in.Items = receipts.Unspecified[[]receipts.ItemInput]()
	case b.Items.IsNull():
		in.Items = receipts.Null[[]receipts.ItemInput]()
	default:
		src := b.Items.MustGet()
		items := make([]receipts.ItemInput, 0, len(src))
		for _, it := range src {
			items = append(items, receipts.ItemInput{
				ShortDescription: optionalFrom(it.ShortDescription),
				Price:            optionalFrom(it.Price),
			})
		}
		in.Items = receipts.Some(items)
	}
	return in
}

func optionalFrom[T any](n nullable.Nullable[T]) receipts.Optional[T] {
	switch {
	case !n.IsSpecified():
		return receipts.Unspecified[T]()
	case n.IsNull():
		return receipts.Null[T]()
	default:
		return receipts.Some(n.MustGet())
	}
}

// hashProcessReceiptBody hashes the decoded request so formatting differences
// (whitespace, key order) do not defeat replay.
func hashProcessReceiptBody(b ProcessReceiptRequest) (string, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
