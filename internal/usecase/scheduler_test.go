package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
)

type fakeSub struct{ ticker string }

func (s *fakeSub) Ticker() string { return s.ticker }

type fakeFeed struct {
	mu           sync.Mutex
	subscribed   map[string]int
	unsubscribed map[string]int
	polled       []string
	quotes       map[string]*models.SecondaryQuote
	pollErr      map[string]error
	quoteCh      chan *models.SecondaryQuote
	errCh        chan error
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		subscribed:   make(map[string]int),
		unsubscribed: make(map[string]int),
		quotes:       make(map[string]*models.SecondaryQuote),
		pollErr:      make(map[string]error),
		quoteCh:      make(chan *models.SecondaryQuote, 16),
		errCh:        make(chan error, 1),
	}
}

func (f *fakeFeed) Connect(ctx context.Context) error { return nil }

func (f *fakeFeed) SubscribeQuote(ctx context.Context, ticker string) (drepo.LiveSubscription, error) {
	f.mu.Lock()
	f.subscribed[ticker]++
	f.mu.Unlock()
	return &fakeSub{ticker: ticker}, nil
}

func (f *fakeFeed) Unsubscribe(ctx context.Context, sub drepo.LiveSubscription) error {
	f.mu.Lock()
	f.unsubscribed[sub.Ticker()]++
	f.mu.Unlock()
	return nil
}

func (f *fakeFeed) LastQuote(ctx context.Context, ticker string) (*models.SecondaryQuote, error) {
	f.mu.Lock()
	f.polled = append(f.polled, ticker)
	err := f.pollErr[ticker]
	q := f.quotes[ticker]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if q == nil {
		return &models.SecondaryQuote{Status: "success", BidExchange: 2, BidPrice: 10, BidSize: 1}, nil
	}
	return q, nil
}

func (f *fakeFeed) Read(ctx context.Context) (<-chan *models.SecondaryQuote, <-chan error) {
	return f.quoteCh, f.errCh
}

func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) unsubCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed[ticker]
}

func newTestScheduler(feed *fakeFeed, store *QuoteStore, max int) *SecondarySubscriptionScheduler {
	return NewSecondarySubscriptionScheduler(feed, store, noopMetrics{}, testLogger(), SchedulerConfig{
		MaxChannels:  max,
		PollInterval: 350 * time.Millisecond,
		TapeCodes:    DefaultTapeCodes(),
	})
}

func TestRoundRobinSkipsSubscribed(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	for _, tk := range []string{"A", "B", "C", "D"} {
		store.Track(tk, "id-"+tk)
	}
	s := newTestScheduler(feed, store, 30)

	ctx := context.Background()
	require.NoError(t, s.Subscribe(ctx, "B"))
	require.NoError(t, s.Subscribe(ctx, "C"))

	for i := 0; i < 4; i++ {
		s.pollNext(ctx)
	}
	assert.Equal(t, []string{"A", "D", "A", "D"}, feed.polled)
}

func TestSubscribeCapacity(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	s := newTestScheduler(feed, store, 30)

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		tk := fmt.Sprintf("T%02d", i)
		store.Track(tk, tk)
		require.NoError(t, s.Subscribe(ctx, tk))
	}

	store.Track("ONEMORE", "ONEMORE")
	err := s.Subscribe(ctx, "ONEMORE")
	assert.ErrorIs(t, err, drepo.ErrCapacityExceeded)
	assert.Len(t, s.Subscribed(), 30)
	assert.False(t, s.IsSubscribed("ONEMORE"))
}

func TestSubscribeIdempotentAndUnknown(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	store.Track("AAPL", "fig-1")
	s := newTestScheduler(feed, store, 30)

	ctx := context.Background()
	require.NoError(t, s.Subscribe(ctx, "AAPL"))
	require.NoError(t, s.Subscribe(ctx, "AAPL"))
	assert.Len(t, s.Subscribed(), 1)

	assert.ErrorIs(t, s.Subscribe(ctx, "GHOST"), drepo.ErrUnknownTicker)
	assert.ErrorIs(t, s.Unsubscribe(ctx, "GHOST"), drepo.ErrNotSubscribed)
}

func TestUnknownPushUnsubscribesExactlyOnce(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	store.Track("AAPL", "fig-1")
	s := newTestScheduler(feed, store, 30)

	ctx := context.Background()
	require.NoError(t, s.Subscribe(ctx, "AAPL"))

	// the ticker leaves the universe while the channel stays open
	store.Remove("AAPL")

	push := &models.SecondaryQuote{Ticker: "AAPL", Status: "success", BidExchange: 2, BidPrice: 10, BidSize: 1}
	s.handlePush(ctx, push)
	s.handlePush(ctx, push)

	assert.Equal(t, 1, feed.unsubCount("AAPL"))
	assert.False(t, s.IsSubscribed("AAPL"))
}

func TestPushErrorStatusClearsSecondaryOnly(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	store.Track("AAPL", "fig-1")
	s := newTestScheduler(feed, store, 30)

	ctx := context.Background()
	s.handlePush(ctx, &models.SecondaryQuote{Ticker: "AAPL", Status: "success", BidExchange: 2, BidPrice: 10, BidSize: 1, Time: time.Now()})
	q, _ := store.Get("AAPL")
	require.True(t, q.HasSecondary())

	s.handlePush(ctx, &models.SecondaryQuote{Ticker: "AAPL", Status: "error"})
	q, ok := store.Get("AAPL")
	require.True(t, ok)
	assert.False(t, q.HasSecondary())
	assert.Zero(t, q.SecondaryBid)
}

func TestTapeCodeWhitelistPerSide(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	store.Track("AAPL", "fig-1")
	s := newTestScheduler(feed, store, 30)

	// bid from a whitelisted exchange, ask from an unmapped one
	s.apply(&models.SecondaryQuote{
		Ticker:      "AAPL",
		Status:      "success",
		BidExchange: 2, BidPrice: 10, BidSize: 1,
		AskExchange: 5, AskPrice: 11, AskSize: 1,
		Time: time.Now(),
	})

	q, _ := store.Get("AAPL")
	assert.Equal(t, "B", q.SecondaryBidVenue)
	assert.InDelta(t, 10, q.SecondaryBid, 1e-9)
	assert.Zero(t, q.SecondaryAsk)
	assert.Empty(t, q.SecondaryAskVenue)
}

func TestPollFailureEvictsTicker(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	store.Track("BAD", "id-1")
	store.Track("GOOD", "id-2")
	feed.pollErr["BAD"] = fmt.Errorf("boom")
	s := newTestScheduler(feed, store, 30)

	ctx := context.Background()
	s.pollNext(ctx) // BAD (lexicographic first)
	assert.False(t, store.Has("BAD"))
	assert.True(t, store.Has("GOOD"))
}

func TestPollBadStatusEvictsTicker(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	store.Track("AAPL", "fig-1")
	feed.quotes["AAPL"] = &models.SecondaryQuote{Status: "not_found"}
	s := newTestScheduler(feed, store, 30)

	s.pollNext(context.Background())
	assert.False(t, store.Has("AAPL"))
}

func TestPollAppliesQuote(t *testing.T) {
	feed := newFakeFeed()
	store := NewQuoteStore()
	store.Track("AAPL", "fig-1")
	feed.quotes["AAPL"] = &models.SecondaryQuote{
		Status:      "success",
		BidExchange: 17, BidPrice: 10.5, BidSize: 2,
		AskExchange: 9, AskPrice: 10.7, AskSize: 3,
		Time: time.Now(),
	}
	s := newTestScheduler(feed, store, 30)

	s.pollNext(context.Background())
	q, ok := store.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "X", q.SecondaryBidVenue)
	assert.Equal(t, "M", q.SecondaryAskVenue)
	assert.InDelta(t, 10.5, q.SecondaryBid, 1e-9)
	assert.InDelta(t, 10.7, q.SecondaryAsk, 1e-9)
}
