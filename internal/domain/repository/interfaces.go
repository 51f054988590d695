package repository

import (
	"context"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
)

// PrimaryStream is the primary venue transport: instrument discovery plus a
// push stream of depth-1 orderbook events.
type PrimaryStream interface {
	Connect(ctx context.Context) error
	Instruments(ctx context.Context) ([]models.Instrument, error)
	Subscribe(ctx context.Context, instrumentIDs []string) error
	Read(ctx context.Context) (<-chan *models.OrderBookEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// LiveSubscription is an opaque handle for one live secondary-venue quote
// subscription.
type LiveSubscription interface {
	Ticker() string
}

// SecondaryFeed is the secondary venue transport: bounded live quote
// subscriptions plus a last-quote REST endpoint for polling.
type SecondaryFeed interface {
	Connect(ctx context.Context) error
	SubscribeQuote(ctx context.Context, ticker string) (LiveSubscription, error)
	Unsubscribe(ctx context.Context, sub LiveSubscription) error
	LastQuote(ctx context.Context, ticker string) (*models.SecondaryQuote, error)
	Read(ctx context.Context) (<-chan *models.SecondaryQuote, <-chan error)
	Close() error
}

// Notifier delivers level signals to whatever is on the other end (chat
// messages, a broker topic).
type Notifier interface {
	Notify(ctx context.Context, sig *models.LevelSignal) error
}

// ChatRegistry stores notification recipients.
type ChatRegistry interface {
	Add(ctx context.Context, chat models.Chat) error
	List(ctx context.Context) ([]models.Chat, error)
	Remove(ctx context.Context, chatID int64) error
}

// EligibilityPolicy decides whether an instrument should be tracked. Built
// from configuration, not hardcoded.
type EligibilityPolicy func(models.Instrument) bool

type Metrics interface {
	RecordQuoteUpdate(venue, ticker string)
	RecordSignalSent(backend, ticker string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordDeltaPct(ticker, side string, pct float64)
	RecordLiveSubscriptions(n int)
}
