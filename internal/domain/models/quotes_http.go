package models

// Requests for quote HTTP endpoints. Defined in domain for consistency and reuse.

type QuotesRequest struct {
	Sort       string  `query:"sort" json:"sort" default:"long" validate:"oneof=long short"`
	PriceLimit float64 `query:"price_limit" json:"price_limit" default:"40" validate:"gt=0"`
	PageSize   int     `query:"page_size" json:"page_size" default:"20" validate:"gte=1,lte=100"`
	Page       int     `query:"page" json:"page" default:"1" validate:"gte=1"`
}

type TickerRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required,alpha,uppercase"`
}
