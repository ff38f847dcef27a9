package domain

// ReceiptID is the opaque identifier issued for a scored receipt.
// Values are UUIDv4 strings; callers must not rely on the format.
type ReceiptID string
