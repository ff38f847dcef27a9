package receipts

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const (
	CodeReceiptInvalid     = "RECEIPT_INVALID"
	CodeReceiptUnparseable = "RECEIPT_UNPARSEABLE"
	CodeReceiptNotFound    = "RECEIPT_NOT_FOUND"
)
