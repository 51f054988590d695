package middleware

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
)

type noopMetrics struct{}

func (noopMetrics) RecordQuoteUpdate(venue, ticker string)        {}
func (noopMetrics) RecordSignalSent(backend, ticker string)       {}
func (noopMetrics) RecordError(kind string)                       {}
func (noopMetrics) RecordLatency(op string, seconds float64)      {}
func (noopMetrics) RecordDeltaPct(ticker, side string, p float64) {}
func (noopMetrics) RecordLiveSubscriptions(n int)                 {}

type stubNotifier struct {
	mu    sync.Mutex
	calls int
	fail  int // fail this many deliveries before succeeding
}

func (n *stubNotifier) Notify(ctx context.Context, sig *models.LevelSignal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.fail > 0 {
		n.fail--
		return fmt.Errorf("notify down")
	}
	return nil
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func sig(ticker string) *models.LevelSignal {
	return &models.LevelSignal{Ticker: ticker, Level: 50, Price: 49.9, At: time.Now()}
}

func TestProcessDeliversAndHooks(t *testing.T) {
	n := &stubNotifier{}
	var delivered []*models.LevelSignal
	p := NewSignalPipeline(n, noopMetrics{},
		WithDeliveredHook(func(s *models.LevelSignal) { delivered = append(delivered, s) }),
	)

	ok, err := p.Process(context.Background(), sig("AAPL"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n.count())
	require.Len(t, delivered, 1)
	assert.Equal(t, "AAPL", delivered[0].Ticker)
}

func TestProcessGlobalThrottle(t *testing.T) {
	n := &stubNotifier{}
	p := NewSignalPipeline(n, noopMetrics{}, WithGlobalInterval(30*time.Second))

	ctx := context.Background()
	ok, err := p.Process(ctx, sig("AAPL"))
	require.NoError(t, err)
	require.True(t, ok)

	// different ticker, still inside the global interval
	ok, err = p.Process(ctx, sig("MSFT"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, n.count())
}

func TestProcessBuffersOnFailureAndFlushes(t *testing.T) {
	n := &stubNotifier{fail: 1}
	var mu sync.Mutex
	var delivered int
	p := NewSignalPipeline(n, noopMetrics{},
		WithGlobalInterval(time.Millisecond),
		WithDeliveredHook(func(*models.LevelSignal) {
			mu.Lock()
			delivered++
			mu.Unlock()
		}),
	)

	ctx := context.Background()
	ok, err := p.Process(ctx, sig("AAPL"))
	require.Error(t, err)
	assert.False(t, ok)

	p.Start(ctx)
	defer p.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcessRejectsInvalidSignal(t *testing.T) {
	n := &stubNotifier{}
	p := NewSignalPipeline(n, noopMetrics{})

	ctx := context.Background()
	_, err := p.Process(ctx, nil)
	assert.Error(t, err)

	_, err = p.Process(ctx, &models.LevelSignal{Level: 50})
	assert.Error(t, err)

	_, err = p.Process(ctx, &models.LevelSignal{Ticker: "AAPL"})
	assert.Error(t, err)
	assert.Zero(t, n.count())
}
