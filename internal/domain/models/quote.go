package models

// Quote is a single price observation from the market-data feed.
// Timestamp is unix seconds.
type Quote struct {
	Symbol    string
	Timestamp int64
	Price     float64
	Volume    float64
}
