// internal/monitor/engine_test.go
package monitor

import (
	"testing"

	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trackedPosition() *models.Position {
	return &models.Position{
		Market:     "PairAddr",
		Mint:       "MintAddr",
		LowerBinID: -20,
		UpperBinID: 20,
		Status:     models.PositionStatusActive,
		// 10 X at $10 and 100 Y at $1: HODL baseline of $200 at entry prices.
		LastValueUSD:          200,
		InitialTokenAAmount:   10,
		InitialTokenBAmount:   100,
		InitialTokenAPriceUSD: 10,
		InitialTokenBPriceUSD: 1,
	}
}

// valuationAt keeps entry prices so IL stays at zero while USD value moves.
func valuationAt(usd float64) Valuation {
	return Valuation{
		TokenXPrice: 10,
		TokenYPrice: 1,
		USDValue:    usd,
	}
}

func alertKinds(d Decision) []AlertKind {
	kinds := make([]AlertKind, 0, len(d.Alerts))
	for _, a := range d.Alerts {
		kinds = append(kinds, a.Kind)
	}
	return kinds
}

func TestEvaluateQuietWhenNothingMoved(t *testing.T) {
	d := Evaluate(trackedPosition(), valuationAt(200), 0, DefaultThresholds())

	assert.Empty(t, d.Alerts)
	assert.Nil(t, d.NewLastValueUSD)
	assert.Nil(t, d.NewILWarningPercent)
}

func TestEvaluateFirstObservationSeedsBaselineSilently(t *testing.T) {
	pos := trackedPosition()
	pos.LastValueUSD = 0

	d := Evaluate(pos, valuationAt(200), 0, DefaultThresholds())

	assert.Empty(t, d.Alerts)
	require.NotNil(t, d.NewLastValueUSD)
	assert.Equal(t, 200.0, *d.NewLastValueUSD)
}

func TestEvaluateValueChangeThresholdBoundary(t *testing.T) {
	// 9.995% move: below threshold, baseline must not move.
	d := Evaluate(trackedPosition(), valuationAt(219.99), 0, DefaultThresholds())
	assert.Empty(t, d.Alerts)
	assert.Nil(t, d.NewLastValueUSD)

	// Exactly 10%: alert fires and the baseline shifts.
	d = Evaluate(trackedPosition(), valuationAt(220), 0, DefaultThresholds())
	require.Len(t, d.Alerts, 1)
	assert.Equal(t, AlertValueChange, d.Alerts[0].Kind)
	assert.InDelta(t, 10.0, d.Alerts[0].ChangePct, 1e-9)
	assert.Equal(t, 200.0, d.Alerts[0].PreviousUSD)
	require.NotNil(t, d.NewLastValueUSD)
	assert.Equal(t, 220.0, *d.NewLastValueUSD)
}

func TestEvaluateValueDropFiresWithNegativePercent(t *testing.T) {
	pos := trackedPosition()
	// IL already warned close to this level, so only the value alert fires.
	pos.LastILWarningPercent = -13.0

	d := Evaluate(pos, valuationAt(172.8), 0, DefaultThresholds())

	require.Len(t, d.Alerts, 1)
	assert.Equal(t, AlertValueChange, d.Alerts[0].Kind)
	assert.InDelta(t, -13.6, d.Alerts[0].ChangePct, 1e-9)
	require.NotNil(t, d.NewLastValueUSD)
	assert.Equal(t, 172.8, *d.NewLastValueUSD)
}

func TestEvaluateRangeExitIsStateless(t *testing.T) {
	pos := trackedPosition()
	th := DefaultThresholds()

	// Boundary bins are in range.
	assert.Empty(t, Evaluate(pos, valuationAt(200), -20, th).Alerts)
	assert.Empty(t, Evaluate(pos, valuationAt(200), 20, th).Alerts)

	// Out of range fires every cycle with no state to move.
	for i := 0; i < 2; i++ {
		d := Evaluate(pos, valuationAt(200), 21, th)
		require.Len(t, d.Alerts, 1)
		assert.Equal(t, AlertRangeExit, d.Alerts[0].Kind)
		assert.Equal(t, int32(21), d.Alerts[0].ActiveBin)
		assert.Nil(t, d.NewLastValueUSD)
		assert.Nil(t, d.NewILWarningPercent)
	}

	d := Evaluate(pos, valuationAt(200), -25, th)
	require.Len(t, d.Alerts, 1)
	assert.Equal(t, AlertRangeExit, d.Alerts[0].Kind)
}

func TestEvaluateILWarningHysteresis(t *testing.T) {
	th := DefaultThresholds()

	// First crossing at -6% warns and records the level.
	pos := trackedPosition()
	d := Evaluate(pos, valuationAt(188), 0, th)
	require.Equal(t, []AlertKind{AlertILWarning}, alertKinds(d))
	assert.InDelta(t, -6.0, d.Alerts[0].ILPct, 1e-9)
	require.NotNil(t, d.NewILWarningPercent)
	assert.InDelta(t, -6.0, *d.NewILWarningPercent, 1e-9)

	// Deepening to -7.4% is within the 2.5 point step: silent.
	pos.LastILWarningPercent = -6.0
	d = Evaluate(pos, valuationAt(185.2), 0, th)
	assert.Empty(t, d.Alerts)
	assert.Nil(t, d.NewILWarningPercent)

	// -8.6% is 2.6 points past the last warning: warns again.
	d = Evaluate(pos, valuationAt(182.8), 0, th)
	require.Equal(t, []AlertKind{AlertILWarning}, alertKinds(d))
	require.NotNil(t, d.NewILWarningPercent)
	assert.InDelta(t, -8.6, *d.NewILWarningPercent, 1e-9)
}

func TestEvaluateILRecoveryResetsWarningLevel(t *testing.T) {
	th := DefaultThresholds()

	pos := trackedPosition()
	pos.LastILWarningPercent = -8.6

	// Back above the HODL value: recovery fires and the level resets.
	d := Evaluate(pos, valuationAt(202), 0, th)
	require.Equal(t, []AlertKind{AlertILRecovered}, alertKinds(d))
	assert.InDelta(t, 1.0, d.Alerts[0].ILPct, 1e-9)
	require.NotNil(t, d.NewILWarningPercent)
	assert.Zero(t, *d.NewILWarningPercent)

	// After the reset a fresh crossing warns again immediately.
	pos.LastILWarningPercent = 0
	d = Evaluate(pos, valuationAt(189.8), 0, th)
	require.Equal(t, []AlertKind{AlertILWarning}, alertKinds(d))
	assert.InDelta(t, -5.1, d.Alerts[0].ILPct, 1e-9)
}

func TestEvaluateILNegativeButAboveThresholdStaysQuiet(t *testing.T) {
	pos := trackedPosition()
	pos.LastILWarningPercent = -8.6

	// -2% is above the warning threshold but not positive: neither a new
	// warning nor a recovery.
	d := Evaluate(pos, valuationAt(196), 0, DefaultThresholds())
	assert.Empty(t, d.Alerts)
	assert.Nil(t, d.NewILWarningPercent)
}

func TestEvaluateSkipsILWhenHodlIsZero(t *testing.T) {
	pos := trackedPosition()
	pos.InitialTokenAAmount = 0
	pos.InitialTokenBAmount = 0

	d := Evaluate(pos, valuationAt(100), 0, DefaultThresholds())
	assert.Empty(t, alertKinds(d))
	assert.Nil(t, d.NewILWarningPercent)
}

func TestEvaluateCombinesIndependentAlerts(t *testing.T) {
	// Out of range while the value dropped 13.6% and IL crossed -6%.
	pos := trackedPosition()
	val := Valuation{TokenXPrice: 9.4, TokenYPrice: 1, USDValue: 172.8}
	// HODL at current prices: 10*9.4 + 100*1 = 194, IL = -10.93%.

	d := Evaluate(pos, val, 42, DefaultThresholds())

	assert.ElementsMatch(t,
		[]AlertKind{AlertRangeExit, AlertValueChange, AlertILWarning},
		alertKinds(d))
	require.NotNil(t, d.NewLastValueUSD)
	assert.Equal(t, 172.8, *d.NewLastValueUSD)
	require.NotNil(t, d.NewILWarningPercent)
	assert.InDelta(t, -10.93, *d.NewILWarningPercent, 0.01)
}
