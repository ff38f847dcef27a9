package points

import (
	"errors"
	"fmt"
)

// ErrParse is matched (via errors.Is) by every ParseError.
var ErrParse = errors.New("receipt field not parseable")

// Field names reported by ParseError. Item prices use "items[i].price".
const (
	FieldPurchaseDate = "purchaseDate"
	FieldPurchaseTime = "purchaseTime"
	FieldTotal        = "total"
)

// ParseError reports a receipt field that is present but not in its expected format.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func itemPriceField(i int) string {
	return fmt.Sprintf("items[%d].price", i)
}
