package receipts

// Optional is a tri-state field used to distinguish:
// - unspecified (omitted)
// - specified as null
// - specified with a value
type Optional[T any] struct {
	specified bool
	isNull    bool
	value     T
}

func Unspecified[T any]() Optional[T] { return Optional[T]{} }
func Null[T any]() Optional[T]        { return Optional[T]{specified: true, isNull: true} }
func Some[T any](v T) Optional[T]     { return Optional[T]{specified: true, value: v} }

func (o Optional[T]) IsSpecified() bool { return o.specified }
func (o Optional[T]) IsNull() bool      { return o.specified && o.isNull }
func (o Optional[T]) Value() T          { return o.value }

// present reports whether the field was supplied with a non-null value.
func (o Optional[T]) present() bool { return o.specified && !o.isNull }

type ItemInput struct {
	ShortDescription Optional[string]
	Price            Optional[string]
}

// SubmitInput is an untrusted receipt payload. Every field is required;
// Items may be an empty list but must be present.
type SubmitInput struct {
	Retailer     Optional[string]
	PurchaseDate Optional[string]
	PurchaseTime Optional[string]
	Items        Optional[[]ItemInput]
	Total        Optional[string]
}
