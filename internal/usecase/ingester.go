package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	"github.com/Altav1sta/stocks-checker/internal/middleware"
	"github.com/Altav1sta/stocks-checker/pkg/logger"
)

// PrimaryFeedIngester owns the primary venue lifecycle: discovers the
// instrument universe, subscribes to orderbook updates for every eligible
// instrument and folds the stream into the quote store. Each primary mid
// update is also run through the level detector, and resulting signals are
// handed to the pipeline.
type PrimaryFeedIngester struct {
	stream   drepo.PrimaryStream
	store    *QuoteStore
	detector *LevelDetector
	pipeline *middleware.SignalPipeline
	eligible drepo.EligibilityPolicy
	metrics  drepo.Metrics
	log      *logger.Logger

	mu       sync.RWMutex
	byID     map[string]string // instrument id -> ticker
	ids      []string          // subscribed instrument ids, kept for resubscribe
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type IngesterOption func(*PrimaryFeedIngester)

// WithEligibility overrides the instrument filter.
func WithEligibility(p drepo.EligibilityPolicy) IngesterOption {
	return func(i *PrimaryFeedIngester) {
		if p != nil {
			i.eligible = p
		}
	}
}

func NewPrimaryFeedIngester(
	stream drepo.PrimaryStream,
	store *QuoteStore,
	detector *LevelDetector,
	pipeline *middleware.SignalPipeline,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...IngesterOption,
) *PrimaryFeedIngester {
	i := &PrimaryFeedIngester{
		stream:   stream,
		store:    store,
		detector: detector,
		pipeline: pipeline,
		eligible: func(models.Instrument) bool { return true },
		metrics:  metrics,
		log:      log,
		byID:     make(map[string]string),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	// late deliveries from the pipeline retry buffer still start the cooldown
	if pipeline != nil {
		pipeline.SetDeliveredHook(func(sig *models.LevelSignal) {
			detector.Suppress(sig.Ticker, time.Now())
		})
	}
	return i
}

// Start connects, discovers and subscribes the universe, then launches the
// consume loop. It returns after the subscription is established.
func (i *PrimaryFeedIngester) Start(ctx context.Context) error {
	if err := i.stream.Connect(ctx); err != nil {
		return fmt.Errorf("primary connect: %w", err)
	}
	if err := i.subscribeUniverse(ctx); err != nil {
		return err
	}

	i.wg.Add(1)
	go i.consume(ctx)
	return nil
}

// Stop terminates the consume loop and closes the stream.
func (i *PrimaryFeedIngester) Stop() error {
	i.stopOnce.Do(func() { close(i.stopCh) })
	i.wg.Wait()
	return i.stream.Close()
}

// Tickers returns the tracked tickers, for diagnostics.
func (i *PrimaryFeedIngester) Tickers() []string {
	return i.store.ListTickers()
}

func (i *PrimaryFeedIngester) subscribeUniverse(ctx context.Context) error {
	instruments, err := i.stream.Instruments(ctx)
	if err != nil {
		return fmt.Errorf("primary instruments: %w", err)
	}

	byID := make(map[string]string)
	ids := make([]string, 0, len(instruments))
	for _, ins := range instruments {
		if !i.eligible(ins) {
			continue
		}
		byID[ins.ID] = ins.Ticker
		ids = append(ids, ins.ID)
		i.store.Track(ins.Ticker, ins.ID)
	}
	if len(ids) == 0 {
		return fmt.Errorf("primary instruments: no eligible instruments")
	}

	if err := i.stream.Subscribe(ctx, ids); err != nil {
		return fmt.Errorf("primary subscribe: %w", err)
	}

	i.mu.Lock()
	i.byID = byID
	i.ids = ids
	i.mu.Unlock()

	i.log.Info("primary universe subscribed", logger.Int("instruments", len(ids)))
	return nil
}

func (i *PrimaryFeedIngester) consume(ctx context.Context) {
	defer i.wg.Done()

	events, errs := i.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-i.stopCh:
			return
		case err := <-errs:
			if err == nil {
				continue
			}
			i.metrics.RecordError("primary_stream")
			i.log.Error("primary stream fault, reconnecting", logger.Error(err))
			events, errs = i.recover(ctx)
		case ev := <-events:
			if ev == nil {
				continue
			}
			i.handleEvent(ctx, ev)
		}
	}
}

// recover reconnects and resubscribes the full remembered universe, retrying
// with a fixed delay until the stream is healthy or the ingester stops.
func (i *PrimaryFeedIngester) recover(ctx context.Context) (<-chan *models.OrderBookEvent, <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-i.stopCh:
			return nil, nil
		default:
		}

		if err := i.stream.Reconnect(ctx); err != nil {
			i.metrics.RecordError("primary_reconnect")
			i.log.Error("primary reconnect failed", logger.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}

		i.mu.RLock()
		ids := make([]string, len(i.ids))
		copy(ids, i.ids)
		i.mu.RUnlock()

		if err := i.stream.Subscribe(ctx, ids); err != nil {
			i.metrics.RecordError("primary_resubscribe")
			i.log.Error("primary resubscribe failed", logger.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}

		i.log.Info("primary stream recovered", logger.Int("instruments", len(ids)))
		return i.stream.Read(ctx)
	}
}

func (i *PrimaryFeedIngester) handleEvent(ctx context.Context, ev *models.OrderBookEvent) {
	i.mu.RLock()
	ticker, ok := i.byID[ev.InstrumentID]
	i.mu.RUnlock()
	if !ok {
		// the venue occasionally pushes updates for instruments outside the
		// subscribed universe; they carry no ticker so they only get logged
		i.metrics.RecordError("primary_unknown_instrument")
		i.log.Warn("orderbook event for unknown instrument", logger.String("instrument_id", ev.InstrumentID))
		return
	}

	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	q := i.store.UpsertPrimary(ticker, PrimaryUpdate{Bid: ev.Bid, Ask: ev.Ask, At: at})
	i.metrics.RecordQuoteUpdate("primary", ticker)
	i.metrics.RecordDeltaPct(ticker, "long", q.LongDeltaPct)
	i.metrics.RecordDeltaPct(ticker, "short", q.ShortDeltaPct)

	if q.PrimaryMid <= 0 {
		return
	}
	now := time.Now()
	level, fired := i.detector.Observe(ticker, q.PrimaryMid, now)
	if !fired {
		return
	}

	// cooldown is started by the pipeline delivered hook, so throttled or
	// failed dispatches leave the ticker eligible to fire again
	sig := &models.LevelSignal{Ticker: ticker, Level: level, Price: q.PrimaryMid, At: now}
	if _, err := i.pipeline.Process(ctx, sig); err != nil {
		i.log.Error("signal dispatch failed", logger.String("ticker", ticker), logger.Error(err))
	}
}
