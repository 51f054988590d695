package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	"github.com/Altav1sta/stocks-checker/internal/middleware"
	"github.com/Altav1sta/stocks-checker/pkg/util"
)

type fakeStream struct {
	mu          sync.Mutex
	instruments []models.Instrument
	subscribed  [][]string
	events      chan *models.OrderBookEvent
	errs        chan error
	closed      bool
}

func newFakeStream(instruments ...models.Instrument) *fakeStream {
	return &fakeStream{
		instruments: instruments,
		events:      make(chan *models.OrderBookEvent, 16),
		errs:        make(chan error, 1),
	}
}

func (f *fakeStream) Connect(ctx context.Context) error { return nil }

func (f *fakeStream) Instruments(ctx context.Context) ([]models.Instrument, error) {
	return f.instruments, nil
}

func (f *fakeStream) Subscribe(ctx context.Context, ids []string) error {
	f.mu.Lock()
	f.subscribed = append(f.subscribed, ids)
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) Read(ctx context.Context) (<-chan *models.OrderBookEvent, <-chan error) {
	return f.events, f.errs
}

func (f *fakeStream) Reconnect(ctx context.Context) error { return nil }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeStream) IsConnected() bool { return true }

type recordingNotifier struct {
	mu      sync.Mutex
	signals []*models.LevelSignal
	err     error
}

func (n *recordingNotifier) Notify(ctx context.Context, sig *models.LevelSignal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.signals = append(n.signals, sig)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.signals)
}

func usdUppercase(ins models.Instrument) bool {
	return ins.Currency == "usd" && util.IsUpperAlpha(ins.Ticker)
}

func newTestIngester(stream *fakeStream, notifier *recordingNotifier) (*PrimaryFeedIngester, *QuoteStore, *LevelDetector) {
	store := NewQuoteStore()
	detector := newDetector()
	pipeline := middleware.NewSignalPipeline(notifier, noopMetrics{})
	ing := NewPrimaryFeedIngester(stream, store, detector, pipeline, noopMetrics{}, testLogger(),
		WithEligibility(usdUppercase),
	)
	return ing, store, detector
}

func TestSubscribeUniverseFiltersEligibility(t *testing.T) {
	stream := newFakeStream(
		models.Instrument{ID: "f1", Ticker: "AAPL", Currency: "usd"},
		models.Instrument{ID: "f2", Ticker: "SBER", Currency: "rub"},
		models.Instrument{ID: "f3", Ticker: "BRK.B", Currency: "usd"},
		models.Instrument{ID: "f4", Ticker: "MSFT", Currency: "usd"},
	)
	ing, store, _ := newTestIngester(stream, &recordingNotifier{})

	require.NoError(t, ing.subscribeUniverse(context.Background()))

	assert.Equal(t, []string{"AAPL", "MSFT"}, store.ListTickers())
	require.Len(t, stream.subscribed, 1)
	assert.ElementsMatch(t, []string{"f1", "f4"}, stream.subscribed[0])
}

func TestHandleEventUpdatesStoreAndSignals(t *testing.T) {
	stream := newFakeStream(models.Instrument{ID: "f1", Ticker: "AAPL", Currency: "usd"})
	notifier := &recordingNotifier{}
	ing, store, detector := newTestIngester(stream, notifier)

	ctx := context.Background()
	require.NoError(t, ing.subscribeUniverse(ctx))

	// mid lands inside the level band on first observation
	ing.handleEvent(ctx, &models.OrderBookEvent{
		InstrumentID: "f1",
		Bid:          &models.BookSide{Price: 49.88, Size: 1},
		Ask:          &models.BookSide{Price: 49.92, Size: 1},
		Time:         time.Now(),
	})

	q, ok := store.Get("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 49.9, q.PrimaryMid, 1e-9)

	require.Equal(t, 1, notifier.count())
	assert.InDelta(t, 50, notifier.signals[0].Level, 1e-9)
	assert.True(t, detector.Suppressed("AAPL", time.Now()))
}

func TestHandleEventUnknownInstrument(t *testing.T) {
	stream := newFakeStream(models.Instrument{ID: "f1", Ticker: "AAPL", Currency: "usd"})
	notifier := &recordingNotifier{}
	ing, store, _ := newTestIngester(stream, notifier)

	ctx := context.Background()
	require.NoError(t, ing.subscribeUniverse(ctx))

	ing.handleEvent(ctx, &models.OrderBookEvent{
		InstrumentID: "unknown",
		Bid:          &models.BookSide{Price: 10, Size: 1},
	})

	assert.Equal(t, 1, store.Len())
	assert.Zero(t, notifier.count())
}

func TestFailedDeliveryLeavesCooldownUnset(t *testing.T) {
	stream := newFakeStream(models.Instrument{ID: "f1", Ticker: "AAPL", Currency: "usd"})
	notifier := &recordingNotifier{err: context.DeadlineExceeded}
	ing, _, detector := newTestIngester(stream, notifier)

	ctx := context.Background()
	require.NoError(t, ing.subscribeUniverse(ctx))

	ing.handleEvent(ctx, &models.OrderBookEvent{
		InstrumentID: "f1",
		Bid:          &models.BookSide{Price: 49.88, Size: 1},
		Ask:          &models.BookSide{Price: 49.92, Size: 1},
		Time:         time.Now(),
	})

	assert.False(t, detector.Suppressed("AAPL", time.Now()))
}

func TestStartAndStop(t *testing.T) {
	stream := newFakeStream(models.Instrument{ID: "f1", Ticker: "AAPL", Currency: "usd"})
	notifier := &recordingNotifier{}
	ing, store, _ := newTestIngester(stream, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ing.Start(ctx))

	stream.events <- &models.OrderBookEvent{
		InstrumentID: "f1",
		Bid:          &models.BookSide{Price: 10, Size: 1},
		Ask:          &models.BookSide{Price: 10.2, Size: 1},
		Time:         time.Now(),
	}

	assert.Eventually(t, func() bool {
		q, ok := store.Get("AAPL")
		return ok && q.PrimaryMid > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, ing.Stop())
	assert.True(t, stream.closed)
}
