package usecase

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
)

const quoteShards = 32

// PrimaryUpdate carries the sides present in one primary orderbook event.
// A nil side means the venue did not include it in the update.
type PrimaryUpdate struct {
	Bid *models.BookSide
	Ask *models.BookSide
	At  time.Time
}

// SideQuote is one side of a secondary venue quote with its tape code.
type SideQuote struct {
	Price float64
	Size  float64
	Venue string
}

// SecondaryUpdate carries the whitelisted sides of one secondary quote.
type SecondaryUpdate struct {
	Bid *SideQuote
	Ask *SideQuote
	At  time.Time
}

type quoteShard struct {
	mu sync.RWMutex
	m  map[string]*models.AggregatedQuote
}

// QuoteStore is the shared per-ticker state. Mutation is serialized per
// shard, so updates to different tickers rarely contend and updates to the
// same ticker are strictly ordered. Derived fields are recomputed inside the
// same critical section that applied the update, so readers never observe a
// record whose deltas are stale relative to its sides.
type QuoteStore struct {
	shards [quoteShards]quoteShard
}

func NewQuoteStore() *QuoteStore {
	s := &QuoteStore{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]*models.AggregatedQuote)
	}
	return s
}

func (s *QuoteStore) shard(ticker string) *quoteShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticker))
	return &s.shards[h.Sum32()%quoteShards]
}

// Track creates an empty record for a ticker, binding its primary venue
// instrument id. No-op if the ticker is already tracked.
func (s *QuoteStore) Track(ticker, instrumentID string) {
	sh := s.shard(ticker)
	sh.mu.Lock()
	if _, ok := sh.m[ticker]; !ok {
		sh.m[ticker] = &models.AggregatedQuote{Ticker: ticker, InstrumentID: instrumentID}
	}
	sh.mu.Unlock()
}

// UpsertPrimary applies a primary venue update, creating the record if it
// does not exist yet. Only the sides present in the update are touched.
// Returns a copy of the record as of this update.
func (s *QuoteStore) UpsertPrimary(ticker string, u PrimaryUpdate) models.AggregatedQuote {
	sh := s.shard(ticker)
	sh.mu.Lock()
	q, ok := sh.m[ticker]
	if !ok {
		q = &models.AggregatedQuote{Ticker: ticker}
		sh.m[ticker] = q
	}
	if u.Bid != nil {
		q.PrimaryBid = u.Bid.Price
		q.PrimaryBidSize = u.Bid.Size
	}
	if u.Ask != nil {
		q.PrimaryAsk = u.Ask.Price
		q.PrimaryAskSize = u.Ask.Size
	}
	if u.At.After(q.PrimaryUpdatedAt) {
		q.PrimaryUpdatedAt = u.At
	}
	recompute(q)
	out := *q
	sh.mu.Unlock()
	return out
}

// UpsertSecondary applies a secondary venue update. Unlike the primary path
// it never creates records: the primary venue owns the instrument universe.
func (s *QuoteStore) UpsertSecondary(ticker string, u SecondaryUpdate) (models.AggregatedQuote, error) {
	sh := s.shard(ticker)
	sh.mu.Lock()
	q, ok := sh.m[ticker]
	if !ok {
		sh.mu.Unlock()
		return models.AggregatedQuote{}, drepo.ErrUnknownTicker
	}
	if u.Bid != nil {
		q.SecondaryBidVenue = u.Bid.Venue
		q.SecondaryBid = u.Bid.Price
		q.SecondaryBidSize = u.Bid.Size
	}
	if u.Ask != nil {
		q.SecondaryAskVenue = u.Ask.Venue
		q.SecondaryAsk = u.Ask.Price
		q.SecondaryAskSize = u.Ask.Size
	}
	if u.At.After(q.SecondaryUpdatedAt) {
		q.SecondaryUpdatedAt = u.At
	}
	recompute(q)
	out := *q
	sh.mu.Unlock()
	return out, nil
}

// ClearSecondary wipes the secondary side of a record, keeping the record
// itself. Used when the secondary venue reports the ticker as unrecognized.
func (s *QuoteStore) ClearSecondary(ticker string) {
	sh := s.shard(ticker)
	sh.mu.Lock()
	if q, ok := sh.m[ticker]; ok {
		q.SecondaryBidVenue = ""
		q.SecondaryBid = 0
		q.SecondaryBidSize = 0
		q.SecondaryAskVenue = ""
		q.SecondaryAsk = 0
		q.SecondaryAskSize = 0
		q.SecondaryUpdatedAt = time.Time{}
		recompute(q)
	}
	sh.mu.Unlock()
}

// Get returns a copy of the record for a ticker.
func (s *QuoteStore) Get(ticker string) (models.AggregatedQuote, bool) {
	sh := s.shard(ticker)
	sh.mu.RLock()
	q, ok := sh.m[ticker]
	if !ok {
		sh.mu.RUnlock()
		return models.AggregatedQuote{}, false
	}
	out := *q
	sh.mu.RUnlock()
	return out, true
}

// Has reports whether the ticker is tracked.
func (s *QuoteStore) Has(ticker string) bool {
	sh := s.shard(ticker)
	sh.mu.RLock()
	_, ok := sh.m[ticker]
	sh.mu.RUnlock()
	return ok
}

// Remove drops the record entirely.
func (s *QuoteStore) Remove(ticker string) {
	sh := s.shard(ticker)
	sh.mu.Lock()
	delete(sh.m, ticker)
	sh.mu.Unlock()
}

// ListTickers returns all tracked tickers in lexicographic order.
func (s *QuoteStore) ListTickers() []string {
	var tickers []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for t := range sh.m {
			tickers = append(tickers, t)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(tickers)
	return tickers
}

// Quotes returns copies of all tracked records, unordered.
func (s *QuoteStore) Quotes() []models.AggregatedQuote {
	var quotes []models.AggregatedQuote
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, q := range sh.m {
			quotes = append(quotes, *q)
		}
		sh.mu.RUnlock()
	}
	return quotes
}

// Len returns the number of tracked tickers.
func (s *QuoteStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

// recompute refreshes the derived fields from the venue sides. Must be called
// with the shard lock held.
func recompute(q *models.AggregatedQuote) {
	q.PrimaryMid = MidPrice(q.PrimaryBid, q.PrimaryBidSize, q.PrimaryAsk, q.PrimaryAskSize)
	q.LongDelta = LongDelta(q.SecondaryBid, q.PrimaryAsk)
	q.ShortDelta = ShortDelta(q.PrimaryBid, q.SecondaryAsk)
	q.LongDeltaPct = DeltaPct(q.LongDelta, q.PrimaryMid)
	q.ShortDeltaPct = DeltaPct(q.ShortDelta, q.PrimaryMid)
}
