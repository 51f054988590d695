package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
)

func TestUpsertPrimaryCreatesAndMerges(t *testing.T) {
	s := NewQuoteStore()
	now := time.Now()

	q := s.UpsertPrimary("AAPL", PrimaryUpdate{
		Bid: &models.BookSide{Price: 10, Size: 2},
		Ask: &models.BookSide{Price: 11, Size: 2},
		At:  now,
	})
	assert.InDelta(t, 10.5, q.PrimaryMid, 1e-9)
	assert.Equal(t, now, q.PrimaryUpdatedAt)

	// one-sided update keeps the other side
	q = s.UpsertPrimary("AAPL", PrimaryUpdate{
		Bid: &models.BookSide{Price: 10.2, Size: 2},
		At:  now.Add(time.Second),
	})
	assert.InDelta(t, 10.2, q.PrimaryBid, 1e-9)
	assert.InDelta(t, 11, q.PrimaryAsk, 1e-9)
}

func TestUpsertPrimaryTimestampMonotonic(t *testing.T) {
	s := NewQuoteStore()
	now := time.Now()

	s.UpsertPrimary("AAPL", PrimaryUpdate{Bid: &models.BookSide{Price: 10, Size: 1}, At: now})
	q := s.UpsertPrimary("AAPL", PrimaryUpdate{Bid: &models.BookSide{Price: 9, Size: 1}, At: now.Add(-time.Minute)})

	// late event still applies its sides, but the timestamp never goes back
	assert.InDelta(t, 9, q.PrimaryBid, 1e-9)
	assert.Equal(t, now, q.PrimaryUpdatedAt)
}

func TestUpsertSecondaryUnknownTicker(t *testing.T) {
	s := NewQuoteStore()
	_, err := s.UpsertSecondary("GHOST", SecondaryUpdate{At: time.Now()})
	assert.ErrorIs(t, err, drepo.ErrUnknownTicker)
}

func TestDerivedFieldsRecomputedOnBothPaths(t *testing.T) {
	s := NewQuoteStore()
	now := time.Now()
	s.Track("AAPL", "fig-1")

	s.UpsertPrimary("AAPL", PrimaryUpdate{
		Bid: &models.BookSide{Price: 10, Size: 1},
		Ask: &models.BookSide{Price: 10.4, Size: 1},
		At:  now,
	})
	q, err := s.UpsertSecondary("AAPL", SecondaryUpdate{
		Bid: &SideQuote{Price: 10.6, Size: 1, Venue: "B"},
		Ask: &SideQuote{Price: 10.8, Size: 1, Venue: "X"},
		At:  now,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.2, q.LongDelta, 1e-9)   // 10.6 - 10.4
	assert.InDelta(t, -0.8, q.ShortDelta, 1e-9) // 10 - 10.8
	assert.InDelta(t, 10.2, q.PrimaryMid, 1e-9)
	assert.InDelta(t, q.LongDelta*100/10.2, q.LongDeltaPct, 1e-9)
	assert.Equal(t, "B", q.SecondaryBidVenue)
	assert.Equal(t, "X", q.SecondaryAskVenue)
}

func TestClearSecondary(t *testing.T) {
	s := NewQuoteStore()
	now := time.Now()
	s.Track("AAPL", "fig-1")
	_, err := s.UpsertSecondary("AAPL", SecondaryUpdate{
		Bid: &SideQuote{Price: 10.6, Size: 1, Venue: "B"},
		At:  now,
	})
	require.NoError(t, err)

	s.ClearSecondary("AAPL")
	q, ok := s.Get("AAPL")
	require.True(t, ok)
	assert.Zero(t, q.SecondaryBid)
	assert.Empty(t, q.SecondaryBidVenue)
	assert.False(t, q.HasSecondary())
}

func TestListTickersSorted(t *testing.T) {
	s := NewQuoteStore()
	for _, tk := range []string{"MSFT", "AAPL", "TSLA", "GOOG"} {
		s.Track(tk, "id-"+tk)
	}
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT", "TSLA"}, s.ListTickers())
}

func TestRemove(t *testing.T) {
	s := NewQuoteStore()
	s.Track("AAPL", "fig-1")
	require.True(t, s.Has("AAPL"))
	s.Remove("AAPL")
	assert.False(t, s.Has("AAPL"))
	assert.Zero(t, s.Len())
}

func TestConcurrentUpserts(t *testing.T) {
	s := NewQuoteStore()
	tickers := []string{"AAPL", "MSFT", "TSLA", "GOOG", "AMZN"}
	for _, tk := range tickers {
		s.Track(tk, "id-"+tk)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				tk := tickers[(n+j)%len(tickers)]
				s.UpsertPrimary(tk, PrimaryUpdate{
					Bid: &models.BookSide{Price: 10, Size: 1},
					Ask: &models.BookSide{Price: 11, Size: 1},
					At:  time.Now(),
				})
				_, _ = s.UpsertSecondary(tk, SecondaryUpdate{
					Bid: &SideQuote{Price: 10.5, Size: 1, Venue: "B"},
					At:  time.Now(),
				})
			}
		}(i)
	}
	wg.Wait()

	// every reader observes a fully consistent record
	for _, tk := range tickers {
		q, ok := s.Get(tk)
		require.True(t, ok)
		assert.InDelta(t, 10.5, q.PrimaryMid, 1e-9)
		assert.InDelta(t, -0.5, q.LongDelta, 1e-9)
	}
}
