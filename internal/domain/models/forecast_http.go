package models

// Requests for the forecast HTTP endpoints. Defined in domain for consistency and reuse.

type MoversRequest struct {
	Days int `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type HistoryRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required"`
	Days   int    `query:"days" json:"days" default:"60" validate:"gte=1,lte=365"`
}
