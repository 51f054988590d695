package usecase

import (
	"fmt"
	"sort"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	"github.com/Altav1sta/stocks-checker/internal/service/cache"
)

// QuotesTable builds the sorted arbitrage view over the quote store: rows
// where both venues have reported, the primary ask is under the price limit,
// ordered by the chosen delta percent descending. Results are cached briefly
// since the store churns on every tick while clients refresh about once a
// second.
type QuotesTable struct {
	store *QuoteStore
	cache *cache.TTLCache
	ttl   time.Duration
}

func NewQuotesTable(store *QuoteStore) *QuotesTable {
	return &QuotesTable{store: store, cache: cache.NewTTLCache(), ttl: time.Second}
}

type tablePage struct {
	rows  []models.AggregatedQuote
	total int
}

// Rows returns one page of the table plus the total row count after
// filtering. sortKey is "long" or "short".
func (t *QuotesTable) Rows(sortKey string, priceLimit float64, page, pageSize int) ([]models.AggregatedQuote, int) {
	key := fmt.Sprintf("%s|%g", sortKey, priceLimit)
	var rows []models.AggregatedQuote
	if v, ok := t.cache.Get(key); ok {
		rows = v.([]models.AggregatedQuote)
	} else {
		rows = t.build(sortKey, priceLimit)
		t.cache.Set(key, rows, t.ttl)
	}

	total := len(rows)
	if page < 1 {
		page = 1
	}
	from := (page - 1) * pageSize
	if from >= total {
		return []models.AggregatedQuote{}, total
	}
	to := from + pageSize
	if to > total {
		to = total
	}
	return rows[from:to], total
}

func (t *QuotesTable) build(sortKey string, priceLimit float64) []models.AggregatedQuote {
	all := t.store.Quotes()
	rows := make([]models.AggregatedQuote, 0, len(all))
	for _, q := range all {
		if !q.HasPrimary() || !q.HasSecondary() {
			continue
		}
		if q.PrimaryAsk >= priceLimit {
			continue
		}
		rows = append(rows, q)
	}
	sort.Slice(rows, func(i, j int) bool {
		if sortKey == "short" {
			if rows[i].ShortDeltaPct != rows[j].ShortDeltaPct {
				return rows[i].ShortDeltaPct > rows[j].ShortDeltaPct
			}
		} else {
			if rows[i].LongDeltaPct != rows[j].LongDeltaPct {
				return rows[i].LongDeltaPct > rows[j].LongDeltaPct
			}
		}
		return rows[i].Ticker < rows[j].Ticker
	})
	return rows
}
