package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	domrepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	"github.com/Altav1sta/stocks-checker/internal/service/ratelimit"
)

const throttleKey = "signals"

// SignalPipeline sits between the level detector and the notifier. It
// enforces the global delivery throttle (at most one outgoing message per
// interval, across all tickers) and buffers signals when the notifier is
// temporarily unavailable.
type SignalPipeline struct {
	notifier domrepo.Notifier
	metrics  domrepo.Metrics
	limiter  *ratelimit.Limiter
	interval time.Duration
	bufSize  int
	bufCh    chan *models.LevelSignal
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	// onDelivered fires once per signal that actually reached the notifier,
	// including deliveries from the retry loop.
	onDelivered func(*models.LevelSignal)
}

type PipelineOption func(*SignalPipeline)

// WithGlobalInterval sets the minimum gap between any two deliveries.
func WithGlobalInterval(d time.Duration) PipelineOption {
	return func(p *SignalPipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithDeliveredHook registers a callback invoked after successful delivery.
func WithDeliveredHook(fn func(*models.LevelSignal)) PipelineOption {
	return func(p *SignalPipeline) { p.onDelivered = fn }
}

// NewSignalPipeline creates a pipeline in front of the given notifier.
func NewSignalPipeline(notifier domrepo.Notifier, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		notifier: notifier,
		metrics:  metrics,
		limiter:  ratelimit.New(),
		interval: 30 * time.Second,
		bufSize:  100,
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.LevelSignal, p.bufSize)
	return p
}

// SetDeliveredHook replaces the delivery callback after construction.
func (p *SignalPipeline) SetDeliveredHook(fn func(*models.LevelSignal)) {
	p.onDelivered = fn
}

// Start launches background flushing of buffered signals.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case sig := <-p.bufCh:
				if sig == nil {
					continue
				}
				if err := p.notifier.Notify(ctx, sig); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- sig:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
					p.delivered(sig)
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *SignalPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and throttles a signal, then forwards it to the
// notifier, buffering on delivery errors. The returned bool reports whether
// the signal was delivered synchronously.
func (p *SignalPipeline) Process(ctx context.Context, sig *models.LevelSignal) (bool, error) {
	start := time.Now()
	if err := validateSignal(sig); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return false, err
	}
	if !p.limiter.Allow(throttleKey, 1, 1/p.interval.Seconds()) {
		// throttled; drop silently so the cooldown is not started
		p.metrics.RecordError("pipeline_throttle")
		return false, nil
	}

	if err := p.notifier.Notify(ctx, sig); err != nil {
		p.metrics.RecordError("pipeline_notify")
		select {
		case p.bufCh <- sig:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return false, fmt.Errorf("pipeline notify: %w", err)
	}
	p.metrics.RecordLatency("pipeline_notify", time.Since(start).Seconds())
	p.delivered(sig)
	return true, nil
}

func (p *SignalPipeline) delivered(sig *models.LevelSignal) {
	if p.onDelivered != nil {
		p.onDelivered(sig)
	}
}

func validateSignal(sig *models.LevelSignal) error {
	if sig == nil {
		return fmt.Errorf("signal nil")
	}
	if sig.Ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	if sig.Level <= 0 {
		return fmt.Errorf("level invalid")
	}
	return nil
}
