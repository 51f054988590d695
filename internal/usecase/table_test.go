package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
)

func seedQuote(s *QuoteStore, ticker string, primaryAsk, secondaryBid float64) {
	now := time.Now()
	s.UpsertPrimary(ticker, PrimaryUpdate{
		Bid: &models.BookSide{Price: primaryAsk - 0.2, Size: 1},
		Ask: &models.BookSide{Price: primaryAsk, Size: 1},
		At:  now,
	})
	_, _ = s.UpsertSecondary(ticker, SecondaryUpdate{
		Bid: &SideQuote{Price: secondaryBid, Size: 1, Venue: "B"},
		Ask: &SideQuote{Price: secondaryBid + 0.2, Size: 1, Venue: "B"},
		At:  now,
	})
}

func TestTableFiltersAndSorts(t *testing.T) {
	s := NewQuoteStore()
	seedQuote(s, "AAA", 10, 10.5) // long delta 0.5
	seedQuote(s, "BBB", 10, 10.1) // long delta 0.1
	seedQuote(s, "CCC", 50, 51)   // above the price limit
	s.Track("DDD", "id-4")        // primary side never reported

	table := NewQuotesTable(s)
	rows, total := table.Rows("long", 40, 1, 20)

	require.Equal(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[0].Ticker)
	assert.Equal(t, "BBB", rows[1].Ticker)
}

func TestTableSortShort(t *testing.T) {
	s := NewQuoteStore()
	// short delta = primaryBid - secondaryAsk
	seedQuote(s, "AAA", 10, 10.5) // short: 9.8 - 10.7 = -0.9
	seedQuote(s, "BBB", 10, 9.9)  // short: 9.8 - 10.1 = -0.3

	table := NewQuotesTable(s)
	rows, _ := table.Rows("short", 40, 1, 20)

	require.Len(t, rows, 2)
	assert.Equal(t, "BBB", rows[0].Ticker)
}

func TestTablePagination(t *testing.T) {
	s := NewQuoteStore()
	seedQuote(s, "AAA", 10, 10.5)
	seedQuote(s, "BBB", 10, 10.4)
	seedQuote(s, "CCC", 10, 10.3)

	table := NewQuotesTable(s)
	rows, total := table.Rows("long", 40, 2, 2)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "CCC", rows[0].Ticker)

	// page past the end is empty, not an error
	rows, total = table.Rows("long", 40, 5, 2)
	assert.Equal(t, 3, total)
	assert.Empty(t, rows)
}
