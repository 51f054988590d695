package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	"github.com/Altav1sta/stocks-checker/pkg/logger"
)

// SchedulerConfig tunes the secondary venue scheduler.
type SchedulerConfig struct {
	// MaxChannels bounds the number of live quote subscriptions.
	MaxChannels int
	// PollInterval is the pacing of the round-robin last-quote polling for
	// tickers without a live subscription.
	PollInterval time.Duration
	// TapeCodes maps the venue's numeric exchange ids to tape codes. Quote
	// sides from unmapped exchanges are ignored.
	TapeCodes map[int64]string
}

// DefaultTapeCodes covers the consolidated tapes.
func DefaultTapeCodes() map[int64]string {
	return map[int64]string{2: "B", 9: "M", 17: "X"}
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MaxChannels:  30,
		PollInterval: 350 * time.Millisecond,
		TapeCodes:    DefaultTapeCodes(),
	}
}

// SecondarySubscriptionScheduler manages the secondary venue. Up to
// MaxChannels tickers get a live push subscription; every other tracked
// ticker is covered by round-robin polling of the last-quote endpoint, one
// ticker per tick. Push updates for tickers the venue no longer recognizes
// trigger a self-healing unsubscribe that frees the channel.
type SecondarySubscriptionScheduler struct {
	feed    drepo.SecondaryFeed
	store   *QuoteStore
	metrics drepo.Metrics
	log     *logger.Logger
	cfg     SchedulerConfig

	mu     sync.Mutex
	subs   map[string]drepo.LiveSubscription
	cursor int

	polling  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSecondarySubscriptionScheduler(
	feed drepo.SecondaryFeed,
	store *QuoteStore,
	metrics drepo.Metrics,
	log *logger.Logger,
	cfg SchedulerConfig,
) *SecondarySubscriptionScheduler {
	if cfg.MaxChannels <= 0 {
		cfg.MaxChannels = 30
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 350 * time.Millisecond
	}
	if len(cfg.TapeCodes) == 0 {
		cfg.TapeCodes = DefaultTapeCodes()
	}
	return &SecondarySubscriptionScheduler{
		feed:    feed,
		store:   store,
		metrics: metrics,
		log:     log,
		cfg:     cfg,
		subs:    make(map[string]drepo.LiveSubscription),
		stopCh:  make(chan struct{}),
	}
}

// Start connects the feed and launches the push consumer and the poll loop.
func (s *SecondarySubscriptionScheduler) Start(ctx context.Context) error {
	if err := s.feed.Connect(ctx); err != nil {
		return fmt.Errorf("secondary connect: %w", err)
	}
	s.wg.Add(2)
	go s.consumePush(ctx)
	go s.pollLoop(ctx)
	return nil
}

// Stop terminates both loops and closes the feed.
func (s *SecondarySubscriptionScheduler) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	return s.feed.Close()
}

// Subscribe opens a live quote channel for a ticker. Fails with
// ErrCapacityExceeded when all channels are taken; subscribing an already
// subscribed ticker is a no-op.
func (s *SecondarySubscriptionScheduler) Subscribe(ctx context.Context, ticker string) error {
	if !s.store.Has(ticker) {
		return drepo.ErrUnknownTicker
	}

	s.mu.Lock()
	if _, ok := s.subs[ticker]; ok {
		s.mu.Unlock()
		return nil
	}
	if len(s.subs) >= s.cfg.MaxChannels {
		s.mu.Unlock()
		return drepo.ErrCapacityExceeded
	}
	s.mu.Unlock()

	sub, err := s.feed.SubscribeQuote(ctx, ticker)
	if err != nil {
		s.metrics.RecordError("secondary_subscribe")
		return fmt.Errorf("secondary subscribe %s: %w", ticker, err)
	}

	s.mu.Lock()
	// re-check under lock: a concurrent Subscribe may have taken the slot
	if _, ok := s.subs[ticker]; ok || len(s.subs) >= s.cfg.MaxChannels {
		s.mu.Unlock()
		_ = s.feed.Unsubscribe(ctx, sub)
		if ok {
			return nil
		}
		return drepo.ErrCapacityExceeded
	}
	s.subs[ticker] = sub
	n := len(s.subs)
	s.mu.Unlock()

	s.metrics.RecordLiveSubscriptions(n)
	s.log.Info("live quote channel opened", logger.String("ticker", ticker), logger.Int("channels", n))
	return nil
}

// Unsubscribe closes the live channel for a ticker. Fails with
// ErrNotSubscribed when the ticker has no channel.
func (s *SecondarySubscriptionScheduler) Unsubscribe(ctx context.Context, ticker string) error {
	s.mu.Lock()
	sub, ok := s.subs[ticker]
	if ok {
		delete(s.subs, ticker)
	}
	n := len(s.subs)
	s.mu.Unlock()

	if !ok {
		return drepo.ErrNotSubscribed
	}
	s.metrics.RecordLiveSubscriptions(n)
	if err := s.feed.Unsubscribe(ctx, sub); err != nil {
		s.metrics.RecordError("secondary_unsubscribe")
		return fmt.Errorf("secondary unsubscribe %s: %w", ticker, err)
	}
	s.log.Info("live quote channel closed", logger.String("ticker", ticker), logger.Int("channels", n))
	return nil
}

// Subscribed returns the tickers with a live channel, unordered.
func (s *SecondarySubscriptionScheduler) Subscribed() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.subs))
	for t := range s.subs {
		out = append(out, t)
	}
	s.mu.Unlock()
	return out
}

// IsSubscribed reports whether the ticker has a live channel.
func (s *SecondarySubscriptionScheduler) IsSubscribed(ticker string) bool {
	s.mu.Lock()
	_, ok := s.subs[ticker]
	s.mu.Unlock()
	return ok
}

func (s *SecondarySubscriptionScheduler) consumePush(ctx context.Context) {
	defer s.wg.Done()

	quotes, errs := s.feed.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case err := <-errs:
			if err == nil {
				continue
			}
			s.metrics.RecordError("secondary_stream")
			s.log.Error("secondary stream error", logger.Error(err))
		case q := <-quotes:
			if q == nil {
				continue
			}
			s.handlePush(ctx, q)
		}
	}
}

func (s *SecondarySubscriptionScheduler) handlePush(ctx context.Context, q *models.SecondaryQuote) {
	if !s.store.Has(q.Ticker) {
		// stale channel for a ticker that left the universe; close it once
		// and move on without touching any record
		if err := s.Unsubscribe(ctx, q.Ticker); err == nil {
			s.log.Warn("closed stale live channel", logger.String("ticker", q.Ticker))
		}
		return
	}
	if q.Status != "" && q.Status != "success" {
		// the venue flagged the ticker on its own stream; the record stays
		// but its secondary side is no longer trustworthy
		s.store.ClearSecondary(q.Ticker)
		s.log.Warn("secondary side cleared", logger.String("ticker", q.Ticker), logger.String("status", q.Status))
		return
	}
	s.apply(q)
}

// apply folds a secondary quote into the store, keeping only sides whose
// exchange maps to a whitelisted tape code.
func (s *SecondarySubscriptionScheduler) apply(q *models.SecondaryQuote) {
	u := SecondaryUpdate{At: q.Time}
	if u.At.IsZero() {
		u.At = time.Now()
	}
	if venue, ok := s.cfg.TapeCodes[q.BidExchange]; ok {
		u.Bid = &SideQuote{Price: q.BidPrice, Size: q.BidSize, Venue: venue}
	}
	if venue, ok := s.cfg.TapeCodes[q.AskExchange]; ok {
		u.Ask = &SideQuote{Price: q.AskPrice, Size: q.AskSize, Venue: venue}
	}
	if u.Bid == nil && u.Ask == nil {
		return
	}
	if _, err := s.store.UpsertSecondary(q.Ticker, u); err != nil {
		s.metrics.RecordError("secondary_upsert")
		return
	}
	s.metrics.RecordQuoteUpdate("secondary", q.Ticker)
}

func (s *SecondarySubscriptionScheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			// skip the tick if the previous poll is still in flight
			if !s.polling.CompareAndSwap(false, true) {
				continue
			}
			s.pollNext(ctx)
			s.polling.Store(false)
		}
	}
}

// pollNext polls the last quote of the next unsubscribed ticker in
// lexicographic round-robin order.
func (s *SecondarySubscriptionScheduler) pollNext(ctx context.Context) {
	tickers := s.store.ListTickers()
	if len(tickers) == 0 {
		return
	}

	s.mu.Lock()
	if s.cursor >= len(tickers) {
		s.cursor = 0
	}
	var target string
	for n := 0; n < len(tickers); n++ {
		candidate := tickers[s.cursor]
		s.cursor = (s.cursor + 1) % len(tickers)
		if _, live := s.subs[candidate]; !live {
			target = candidate
			break
		}
	}
	s.mu.Unlock()
	if target == "" {
		return
	}

	start := time.Now()
	q, err := s.feed.LastQuote(ctx, target)
	s.metrics.RecordLatency("secondary_poll", time.Since(start).Seconds())
	if err != nil {
		s.evict(target, err)
		return
	}
	if q.Status != "success" {
		s.evict(target, fmt.Errorf("status %q", q.Status))
		return
	}
	q.Ticker = target
	s.apply(q)
}

// evict drops a ticker the secondary venue cannot serve, so the poll budget
// is not wasted on it again.
func (s *SecondarySubscriptionScheduler) evict(ticker string, cause error) {
	s.store.Remove(ticker)
	s.metrics.RecordError("secondary_evict")
	s.log.Warn("ticker evicted after failed poll", logger.String("ticker", ticker), logger.Error(cause))
}
