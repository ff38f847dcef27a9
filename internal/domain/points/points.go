// Package points implements the receipt scoring rules.
//
// Scoring is a pure function of the receipt: no I/O, no shared state, and
// identical input always yields identical output. Monetary values are handled
// as exact decimals so the round-dollar and quarter checks never drift.
package points

import (
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/pointsledger/receipt-processor/internal/domain"
)

const (
	roundDollarBonus  = 50
	quarterBonus      = 25
	itemPairBonus     = 5
	oddDayBonus       = 6
	afternoonBonus    = 10
	descriptionFactor = "0.2"

	afternoonStart = 14 * 60 // exclusive
	afternoonEnd   = 16 * 60 // exclusive
)

var (
	quarter = decimal.RequireFromString("0.25")
	half    = decimal.RequireFromString("0.5")
	factor  = decimal.RequireFromString(descriptionFactor)
)

// Breakdown is the contribution of each rule to a receipt's score.
type Breakdown struct {
	RetailerName     int
	RoundDollarTotal int
	QuarterTotal     int
	ItemPairs        int
	ItemDescriptions int
	OddPurchaseDay   int
	AfternoonWindow  int
}

// Total is the sum of all rule contributions.
func (b Breakdown) Total() int {
	return b.RetailerName +
		b.RoundDollarTotal +
		b.QuarterTotal +
		b.ItemPairs +
		b.ItemDescriptions +
		b.OddPurchaseDay +
		b.AfternoonWindow
}

// ComputePoints returns the score for r. A field that cannot be parsed
// yields a *ParseError and a zero score.
func ComputePoints(r domain.Receipt) (int, error) {
	b, err := Explain(r)
	if err != nil {
		return 0, err
	}
	return b.Total(), nil
}

// Explain scores r and reports each rule's contribution.
func Explain(r domain.Receipt) (Breakdown, error) {
	total, err := parseMoney(FieldTotal, r.Total)
	if err != nil {
		return Breakdown{}, err
	}
	day, err := parseDate(r.PurchaseDate)
	if err != nil {
		return Breakdown{}, err
	}
	minutes, err := parseClock(r.PurchaseTime)
	if err != nil {
		return Breakdown{}, err
	}
	descPoints, err := descriptionPoints(r.Items)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		RetailerName:     alphanumericCount(r.Retailer),
		ItemPairs:        len(r.Items) / 2 * itemPairBonus,
		ItemDescriptions: descPoints,
	}
	if total.Equal(total.Truncate(0)) {
		b.RoundDollarTotal = roundDollarBonus
	}
	if total.Mod(quarter).IsZero() {
		b.QuarterTotal = quarterBonus
	}
	if day.Day()%2 == 1 {
		b.OddPurchaseDay = oddDayBonus
	}
	if minutes > afternoonStart && minutes < afternoonEnd {
		b.AfternoonWindow = afternoonBonus
	}
	return b, nil
}

func alphanumericCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			n++
		}
	}
	return n
}

// descriptionPoints awards round(price*0.2 + 0.5), ties to even, for each item
// whose trimmed description is a non-empty multiple of three characters. This
// is ceil(price*0.2) whenever price*0.2 is not a whole number.
func descriptionPoints(items []domain.Item) (int, error) {
	sum := 0
	for i, it := range items {
		// Every price must parse, even on items that earn nothing here.
		price, err := parseMoney(itemPriceField(i), it.Price)
		if err != nil {
			return 0, err
		}
		n := utf8.RuneCountInString(domain.NormalizeDescription(it.ShortDescription))
		if n == 0 || n%3 != 0 {
			continue
		}
		sum += int(price.Mul(factor).Add(half).RoundBank(0).IntPart())
	}
	return sum, nil
}
