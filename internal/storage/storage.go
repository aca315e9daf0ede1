package storage

import (
	"time"
)

// BarRow represents final form of a closed bar ready to store,
// addressed by its calendar-day partition key.
type BarRow struct {
	Key           string
	Venue         string
	Symbol        string
	Specification string
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        int64
	Timestamp     time.Time
}

// TickRow represents final form of a quote tick ready to store,
// addressed by its calendar-day partition key.
type TickRow struct {
	Key       string
	Venue     string
	Symbol    string
	Bid       float64
	Ask       float64
	Timestamp time.Time
}
