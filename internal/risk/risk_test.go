package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailingGiveback(t *testing.T) {
	t.Parallel()

	s := NewState(Params{
		MaxLoss:      10000,
		TrailAfter:   0.5,
		TrailPercent: 0.2,
		Target:       50000,
	})

	v := s.Update(0)
	assert.False(t, v.IsTrailing)
	assert.False(t, v.MustExitAll)

	// 6000 > 10000*0.5 engages trailing on the same call.
	v = s.Update(6000)
	assert.True(t, v.IsTrailing)
	assert.False(t, v.MustExitAll)

	// Giveback threshold is 6000*0.8 = 4800.
	v = s.Update(4000)
	assert.True(t, v.IsTrailing)
	assert.True(t, v.MustExitAll)
}

func TestTrailingIsMonotonic(t *testing.T) {
	t.Parallel()

	s := NewState(Params{MaxLoss: 1000, TrailAfter: 0.5, TrailPercent: 0.1, Target: 1e9})

	require.True(t, s.Update(600).IsTrailing)
	for _, mtm := range []float64{-5000, 0, 100, -999999} {
		assert.True(t, s.Update(mtm).IsTrailing, "mtm=%v", mtm)
	}
}

func TestHardStopLoss(t *testing.T) {
	t.Parallel()

	s := NewState(Params{MaxLoss: 10000, TrailAfter: 100, TrailPercent: 0.2, Target: 1e9})

	assert.False(t, s.Update(-10000).MustExitAll)
	assert.True(t, s.Update(-10001).MustExitAll)
}

func TestTargetAchieved(t *testing.T) {
	t.Parallel()

	s := NewState(Params{MaxLoss: 10000, TrailAfter: 100, TrailPercent: 0.2, Target: 50000})

	assert.False(t, s.Update(50000).MustExitAll)
	assert.True(t, s.Update(50001).MustExitAll)
}

func TestVerdictIsPurePerCall(t *testing.T) {
	t.Parallel()

	s := NewState(Params{MaxLoss: 10000, TrailAfter: 0.5, TrailPercent: 0.2, Target: 50000})
	s.Update(6000)

	// Re-feeding the same mtm never changes the verdict: MustExitAll is
	// derived, not stored.
	first := s.Update(4000)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Update(4000))
	}
}

func TestHighWaterMark(t *testing.T) {
	t.Parallel()

	s := NewState(Params{MaxLoss: 10000, TrailAfter: 100, TrailPercent: 0.2, Target: 1e9})
	s.Update(3000)
	s.Update(-2000)

	mtm, maxMTM := s.Snapshot()
	assert.Equal(t, -2000.0, mtm)
	assert.Equal(t, 3000.0, maxMTM)
}

func TestDefaultsNeverForceExit(t *testing.T) {
	t.Parallel()

	s := NewState(Params{})
	for _, mtm := range []float64{-1e9, 0, 1e9} {
		assert.False(t, s.Update(mtm).MustExitAll, "mtm=%v", mtm)
	}
}

func TestNegativeLimitsTakenAbsolute(t *testing.T) {
	t.Parallel()

	s := NewState(Params{MaxLoss: -10000, TrailAfter: 100, TrailPercent: 0.2, Target: -50000})
	assert.True(t, s.Update(-10001).MustExitAll)
	assert.True(t, s.Update(50001).MustExitAll)
}
