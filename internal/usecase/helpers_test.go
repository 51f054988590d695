package usecase

import (
	"github.com/Altav1sta/stocks-checker/pkg/logger"
)

type noopMetrics struct{}

func (noopMetrics) RecordQuoteUpdate(venue, ticker string)       {}
func (noopMetrics) RecordSignalSent(backend, ticker string)      {}
func (noopMetrics) RecordError(kind string)                      {}
func (noopMetrics) RecordLatency(op string, seconds float64)     {}
func (noopMetrics) RecordDeltaPct(ticker, side string, p float64) {}
func (noopMetrics) RecordLiveSubscriptions(n int)                {}

func testLogger() *logger.Logger {
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		panic(err)
	}
	return l
}
