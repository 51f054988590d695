package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetector() *LevelDetector {
	return NewLevelDetector(LevelConfig{CapPercent: 5, StepPercent: 3, MinPrice: 1, Cooldown: 30 * time.Minute})
}

func TestObserveOutsideBand(t *testing.T) {
	d := newDetector()
	now := time.Now()

	// value=48: step=5, closest level=50, distance=2, band=0.15
	level, fired := d.Observe("AAPL", 48, now)
	assert.False(t, fired)
	assert.Zero(t, level)
}

func TestObserveFirstObservationInsideBand(t *testing.T) {
	d := newDetector()
	now := time.Now()

	// value=49.9: distance=0.1 < 0.15, no previous value
	level, fired := d.Observe("AAPL", 49.9, now)
	require.True(t, fired)
	assert.InDelta(t, 50, level, 1e-9)
}

func TestObserveEdgeTriggered(t *testing.T) {
	d := newDetector()
	now := time.Now()

	// approach from below: first tick outside the band, second inside
	_, fired := d.Observe("AAPL", 49.5, now)
	require.False(t, fired)

	level, fired := d.Observe("AAPL", 49.9, now)
	require.True(t, fired)
	assert.InDelta(t, 50, level, 1e-9)

	// still inside the band, same side: no re-fire
	_, fired = d.Observe("AAPL", 49.95, now)
	assert.False(t, fired)
}

func TestObserveSignFlipDoesNotRetrigger(t *testing.T) {
	d := newDetector()
	now := time.Now()

	_, fired := d.Observe("AAPL", 49.9, now)
	require.True(t, fired)

	// 50.05 is inside the band on the other side, but the previous value was
	// already inside, so no signal
	_, fired = d.Observe("AAPL", 50.05, now)
	assert.False(t, fired)
}

func TestObserveMinPrice(t *testing.T) {
	d := newDetector()
	now := time.Now()

	_, fired := d.Observe("PENNY", 0.499, now)
	assert.False(t, fired)
}

func TestSuppressBlocksEvaluationButRecordsValue(t *testing.T) {
	d := newDetector()
	now := time.Now()

	d.Suppress("AAPL", now)
	require.True(t, d.Suppressed("AAPL", now))

	// inside the band, but cooled down
	_, fired := d.Observe("AAPL", 49.9, now)
	assert.False(t, fired)

	// after the cooldown the 49.9 observation counts as previous value, so
	// staying inside the band does not fire
	later := now.Add(31 * time.Minute)
	require.False(t, d.Suppressed("AAPL", later))
	_, fired = d.Observe("AAPL", 49.92, later)
	assert.False(t, fired)

	// leaving and re-entering the band fires again
	_, fired = d.Observe("AAPL", 49.5, later)
	require.False(t, fired)
	level, fired := d.Observe("AAPL", 49.88, later)
	require.True(t, fired)
	assert.InDelta(t, 50, level, 1e-9)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 3.0, roundHalfUp(2.5))
	assert.Equal(t, 2.0, roundHalfUp(2.4))
	assert.Equal(t, -2.0, roundHalfUp(-2.5))
	assert.Equal(t, -3.0, roundHalfUp(-2.6))
}

func TestStepScalesWithMagnitude(t *testing.T) {
	d := newDetector()
	now := time.Now()

	// value=499: step=10^3*0.05=50, closest level=500, distance=1, band=1.5
	level, fired := d.Observe("BIG", 499, now)
	require.True(t, fired)
	assert.InDelta(t, 500, level, 1e-9)
}
