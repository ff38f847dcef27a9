package receipts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pointsledger/receipt-processor/internal/domain"
	"github.com/pointsledger/receipt-processor/internal/domain/points"
	clockport "github.com/pointsledger/receipt-processor/internal/ports/out/clock"
	"github.com/pointsledger/receipt-processor/internal/ports/out/scorerepo"
)

type Service struct {
	repo scorerepo.Repository
	clk  clockport.Clock
	log  zerolog.Logger

	newReceiptID func() domain.ReceiptID
}

// NewService returns a Service. log is used when a call's context carries no
// logger of its own.
func NewService(repo scorerepo.Repository, clk clockport.Clock, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		clk:  clk,
		log:  log,
		newReceiptID: func() domain.ReceiptID {
			return domain.ReceiptID(uuid.NewString())
		},
	}
}

// Submit validates and scores a receipt, stores the score under a fresh id
// and returns that id. Nothing is generated or stored unless validation and
// scoring both succeed.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (domain.ReceiptID, error) {
	log := s.logger(ctx)

	r, err := validate(in)
	if err != nil {
		log.Debug().Err(err).Msg("receipt rejected")
		return "", err
	}

	b, err := points.Explain(r)
	if err != nil {
		var pe *points.ParseError
		details := map[string]any{}
		if errors.As(err, &pe) {
			details[pe.Field] = "could not be parsed"
		}
		log.Debug().Err(err).Msg("receipt not parseable")
		return "", &Error{
			Status:  http.StatusBadRequest,
			Code:    CodeReceiptUnparseable,
			Message: "The receipt is invalid.",
			Details: details,
			Err:     err,
		}
	}

	rec := domain.ScoreRecord{
		ID:        s.newReceiptID(),
		Points:    b.Total(),
		CreatedAt: s.clk.Now(),
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("store score %s: %w", rec.ID, err)
	}

	log.Info().
		Str("receipt_id", string(rec.ID)).
		Int("points", rec.Points).
		Msg("stored receipt score")
	log.Debug().
		Str("receipt_id", string(rec.ID)).
		Int("retailer", b.RetailerName).
		Int("round_dollar", b.RoundDollarTotal).
		Int("quarter", b.QuarterTotal).
		Int("item_pairs", b.ItemPairs).
		Int("descriptions", b.ItemDescriptions).
		Int("odd_day", b.OddPurchaseDay).
		Int("afternoon", b.AfternoonWindow).
		Msg("points breakdown")

	return rec.ID, nil
}

// Lookup returns the points stored for id.
func (s *Service) Lookup(ctx context.Context, id domain.ReceiptID) (int, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, scorerepo.ErrNotFound) {
			log := s.logger(ctx)
			log.Debug().Str("receipt_id", string(id)).Msg("no receipt found")
			return 0, &Error{
				Status:  http.StatusNotFound,
				Code:    CodeReceiptNotFound,
				Message: fmt.Sprintf("No receipt found for ID: %s", id),
			}
		}
		return 0, err
	}
	return rec.Points, nil
}

// logger prefers the request-scoped logger on ctx so lines carry its request id.
func (s *Service) logger(ctx context.Context) zerolog.Logger {
	base := s.log
	if l := zerolog.Ctx(ctx); l != zerolog.DefaultContextLogger && l.GetLevel() != zerolog.Disabled {
		base = *l
	}
	return base.With().Str("component", "receipts").Logger()
}

var requiredFields = []string{"retailer", "purchaseDate", "purchaseTime", "items", "total"}

// validate checks that every required field is present and converts the
// payload into a domain.Receipt. Formats are checked later, during scoring.
func validate(in SubmitInput) (domain.Receipt, error) {
	present := map[string]bool{
		"retailer":     in.Retailer.present(),
		"purchaseDate": in.PurchaseDate.present(),
		"purchaseTime": in.PurchaseTime.present(),
		"items":        in.Items.present(),
		"total":        in.Total.present(),
	}
	details := map[string]any{}
	for _, f := range requiredFields {
		if !present[f] {
			details[f] = "is required"
		}
	}

	var items []domain.Item
	if in.Items.present() {
		items = make([]domain.Item, 0, len(in.Items.Value()))
		for i, it := range in.Items.Value() {
			if !it.ShortDescription.present() {
				details[fmt.Sprintf("items[%d].shortDescription", i)] = "is required"
			}
			if !it.Price.present() {
				details[fmt.Sprintf("items[%d].price", i)] = "is required"
			}
			items = append(items, domain.Item{
				ShortDescription: it.ShortDescription.Value(),
				Price:            it.Price.Value(),
			})
		}
	}

	if len(details) > 0 {
		return domain.Receipt{}, &Error{
			Status:  http.StatusBadRequest,
			Code:    CodeReceiptInvalid,
			Message: "The receipt is invalid.",
			Details: details,
		}
	}

	return domain.Receipt{
		Retailer:     in.Retailer.Value(),
		PurchaseDate: in.PurchaseDate.Value(),
		PurchaseTime: in.PurchaseTime.Value(),
		Items:        items,
		Total:        in.Total.Value(),
	}, nil
}
