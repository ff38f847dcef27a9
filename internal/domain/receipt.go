package domain

import "time"

// Item is a single line item on a receipt. Price is kept in its textual form
// and parsed by the points engine.
type Item struct {
	ShortDescription string
	Price            string
}

// Receipt is the validated input to points scoring.
//
// All fields are required at the boundary; Items may be empty but is never
// "unspecified" once a Receipt exists.
type Receipt struct {
	Retailer     string
	PurchaseDate string // YYYY-MM-DD
	PurchaseTime string // HH:MM, 24-hour
	Items        []Item
	Total        string
}

// ScoreRecord is the immutable result of scoring one submitted receipt.
type ScoreRecord struct {
	ID        ReceiptID
	Points    int
	CreatedAt time.Time
}
