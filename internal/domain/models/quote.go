package models

import "time"

// Instrument is a tradable security as reported by the primary venue.
type Instrument struct {
	ID       string `json:"id"`
	Ticker   string `json:"ticker"`
	Currency string `json:"currency"`
}

// BookSide is one side of a top-of-book quote.
type BookSide struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookEvent is a depth-1 orderbook update from the primary venue stream.
// Either side may be nil when the venue sent a one-sided update.
type OrderBookEvent struct {
	InstrumentID string
	Bid          *BookSide
	Ask          *BookSide
	Time         time.Time
}

// SecondaryQuote is a quote from the secondary venue, either pushed over the
// stream or returned by the last-quote REST endpoint. Exchange ids are the
// venue's numeric identifiers; they are mapped to tape codes before being
// applied to a record.
type SecondaryQuote struct {
	Ticker      string
	Status      string
	BidExchange int64
	BidPrice    float64
	BidSize     float64
	AskExchange int64
	AskPrice    float64
	AskSize     float64
	Time        time.Time
}

// AggregatedQuote is the merged per-ticker record. It is owned by the quote
// store; callers always receive copies.
type AggregatedQuote struct {
	Ticker       string `json:"ticker"`
	InstrumentID string `json:"instrument_id"`

	PrimaryBid       float64   `json:"primary_bid"`
	PrimaryBidSize   float64   `json:"primary_bid_size"`
	PrimaryAsk       float64   `json:"primary_ask"`
	PrimaryAskSize   float64   `json:"primary_ask_size"`
	PrimaryMid       float64   `json:"primary_mid"`
	PrimaryUpdatedAt time.Time `json:"primary_updated_at"`

	SecondaryBidVenue  string    `json:"secondary_bid_venue,omitempty"`
	SecondaryBid       float64   `json:"secondary_bid"`
	SecondaryBidSize   float64   `json:"secondary_bid_size"`
	SecondaryAskVenue  string    `json:"secondary_ask_venue,omitempty"`
	SecondaryAsk       float64   `json:"secondary_ask"`
	SecondaryAskSize   float64   `json:"secondary_ask_size"`
	SecondaryUpdatedAt time.Time `json:"secondary_updated_at"`

	LongDelta     float64 `json:"long_delta"`
	ShortDelta    float64 `json:"short_delta"`
	LongDeltaPct  float64 `json:"long_delta_pct"`
	ShortDeltaPct float64 `json:"short_delta_pct"`
}

// HasPrimary reports whether the primary venue has reported at least once.
func (q *AggregatedQuote) HasPrimary() bool { return !q.PrimaryUpdatedAt.IsZero() }

// HasSecondary reports whether the secondary venue has reported at least once.
func (q *AggregatedQuote) HasSecondary() bool { return !q.SecondaryUpdatedAt.IsZero() }

// LevelSignal is emitted when a price approaches a round level.
type LevelSignal struct {
	Ticker string    `json:"ticker"`
	Level  float64   `json:"level"`
	Price  float64   `json:"price"`
	At     time.Time `json:"at"`
}

// Chat is a registered notification recipient.
type Chat struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
