package models

import "time"

// Prediction is one ticker's forecast outcome. Nil PredUp/ProbUp mean the
// pipeline declined to predict (insufficient or incomplete data); Why always
// carries a human-readable reason.
type Prediction struct {
	Ticker string   `json:"ticker"`
	PredUp *bool    `json:"pred_up"`
	ProbUp *float64 `json:"prob_up"`
	Why    string   `json:"why"`
}

// PredictionRun is one complete pass over the watchlist: one entry per
// ticker, in watchlist order.
type PredictionRun struct {
	AsOf        time.Time    `json:"asof"`
	Predictions []Prediction `json:"predictions"`
}
