package models

// Requests for the SAPTA HTTP endpoints.

type AnalyzeRequest struct {
	Ticker     string `query:"ticker" json:"ticker" validate:"required,ticker"`
	PeriodDays int    `query:"period_days" json:"period_days" default:"365" validate:"gte=120,lte=3650"`
	Detailed   bool   `query:"detailed" json:"detailed"`
}

type ScanRequest struct {
	Tickers    []string `query:"tickers" json:"tickers"`
	MinStatus  string   `query:"min_status" json:"min_status" default:"WATCHLIST" validate:"sapta_status"`
	PeriodDays int      `query:"period_days" json:"period_days" default:"365" validate:"gte=120,lte=3650"`
	Limit      int      `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=1000"`
}

type TrainRequest struct {
	Tickers    []string `json:"tickers"`
	Mode       string   `json:"mode" default:"walk_forward" validate:"oneof=simple walk_forward"`
	PeriodDays int      `json:"period_days" default:"1825" validate:"gte=365,lte=7300"`
	Step       int      `json:"step" default:"10" validate:"gte=1,lte=60"`
	Async      bool     `json:"async"`
}

type ResultsRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}
