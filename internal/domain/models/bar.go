package models

import "time"

// PriceBar is one ticker's OHLCV aggregate for a single trading day.
// High, Low and VWAP are optional upstream fields; nil means the source
// omitted them for that day.
type PriceBar struct {
	Ticker string
	Date   time.Time
	Open   float64
	High   *float64
	Low    *float64
	Close  float64
	Volume float64
	VWAP   *float64
}

// DailyMover is the watchlist ticker with the largest absolute open-to-close
// move for one date. PercentChange is signed, in percent (x100).
type DailyMover struct {
	Date          time.Time `json:"date"`
	Ticker        string    `json:"ticker"`
	PercentChange float64   `json:"percent_change"`
	Close         float64   `json:"close"`
}
