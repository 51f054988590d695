package usecase

// MidPrice returns the size-weighted average of best bid and best ask.
// Returns 0 when both sizes are 0 ("no quote yet"), never divides by zero.
func MidPrice(bid, bidSize, ask, askSize float64) float64 {
	total := bidSize + askSize
	if total == 0 {
		return 0
	}
	return (bid*bidSize + ask*askSize) / total
}

// LongDelta is the profit of buying on the primary venue and selling on the
// secondary one.
func LongDelta(secondaryBid, primaryAsk float64) float64 {
	return secondaryBid - primaryAsk
}

// ShortDelta is the profit of buying on the secondary venue and selling on
// the primary one.
func ShortDelta(primaryBid, secondaryAsk float64) float64 {
	return primaryBid - secondaryAsk
}

// DeltaPct expresses delta as a percentage of the mid price. Returns 0 for a
// zero mid regardless of delta sign.
func DeltaPct(delta, mid float64) float64 {
	if mid == 0 {
		return 0
	}
	return delta * 100 / mid
}
