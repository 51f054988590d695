package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	quoteUpdates *prometheus.CounterVec
	signalsSent  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	deltaPct     *prometheus.GaugeVec
	liveSubs     prometheus.Gauge
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		quoteUpdates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockschecker_quote_updates_total",
				Help: "Total number of quote updates applied per venue",
			},
			[]string{"venue", "ticker"},
		),
		signalsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockschecker_signals_sent_total",
				Help: "Total number of level signals delivered per backend",
			},
			[]string{"backend", "ticker"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockschecker_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockschecker_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		deltaPct: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockschecker_delta_pct",
				Help: "Latest arbitrage delta percent per ticker and side",
			},
			[]string{"ticker", "side"},
		),
		liveSubs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockschecker_live_subscriptions",
				Help: "Current number of live secondary venue subscriptions",
			},
		),
	}
}

// RecordQuoteUpdate records one applied quote update.
func (r *Recorder) RecordQuoteUpdate(venue, ticker string) {
	r.quoteUpdates.WithLabelValues(venue, ticker).Inc()
}

// RecordSignalSent records a delivered level signal.
func (r *Recorder) RecordSignalSent(backend, ticker string) {
	r.signalsSent.WithLabelValues(backend, ticker).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordDeltaPct records the latest delta percent for a ticker side.
func (r *Recorder) RecordDeltaPct(ticker, side string, pct float64) {
	r.deltaPct.WithLabelValues(ticker, side).Set(pct)
}

// RecordLiveSubscriptions records the live subscription count.
func (r *Recorder) RecordLiveSubscriptions(n int) {
	r.liveSubs.Set(float64(n))
}
