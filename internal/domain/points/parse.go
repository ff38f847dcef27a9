package points

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

var errEmpty = errors.New("empty value")

// parseMoney parses a decimal monetary amount exactly. Binary floating point
// is never involved, so "35.25" is exactly 3525 cents.
func parseMoney(field, raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, &ParseError{Field: field, Value: raw, Err: errEmpty}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &ParseError{Field: field, Value: raw, Err: err}
	}
	return d, nil
}

func parseDate(raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &ParseError{Field: FieldPurchaseDate, Value: raw, Err: err}
	}
	return t, nil
}

// parseClock returns the time of day as minutes after midnight.
func parseClock(raw string) (int, error) {
	t, err := time.Parse(timeLayout, strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParseError{Field: FieldPurchaseTime, Value: raw, Err: err}
	}
	return t.Hour()*60 + t.Minute(), nil
}
