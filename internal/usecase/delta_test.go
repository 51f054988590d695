package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMidPrice(t *testing.T) {
	// size-weighted average
	assert.InDelta(t, 10.5, MidPrice(10, 1, 11, 1), 1e-9)
	assert.InDelta(t, 10.25, MidPrice(10, 3, 11, 1), 1e-9)

	// one-sided quotes collapse to that side
	assert.InDelta(t, 10, MidPrice(10, 5, 11, 0), 1e-9)
	assert.InDelta(t, 11, MidPrice(10, 0, 11, 2), 1e-9)

	// both sizes zero means no quote yet, not a division error
	assert.Zero(t, MidPrice(10, 0, 11, 0))
	assert.Zero(t, MidPrice(0, 0, 0, 0))
}

func TestDeltas(t *testing.T) {
	assert.InDelta(t, 0.5, LongDelta(10.5, 10), 1e-9)
	assert.InDelta(t, -0.5, LongDelta(10, 10.5), 1e-9)
	assert.InDelta(t, 0.3, ShortDelta(10.3, 10), 1e-9)
}

func TestDeltaPct(t *testing.T) {
	assert.InDelta(t, 5, DeltaPct(0.5, 10), 1e-9)
	assert.InDelta(t, -5, DeltaPct(-0.5, 10), 1e-9)

	// zero mid yields zero regardless of delta sign
	assert.Zero(t, DeltaPct(0.5, 0))
	assert.Zero(t, DeltaPct(-0.5, 0))
}
