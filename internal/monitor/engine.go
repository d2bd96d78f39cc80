// internal/monitor/engine.go
package monitor

import (
	"math"

	"github.com/solwatch/dlmm-sentinel/internal/storage/models"
)

// Evaluate inspects one position against its current valuation and the pool's
// active bin, and decides which alerts to raise and which baselines to move.
// It is pure: no I/O, no clock, no mutation of its inputs.
//
// Baseline rules:
//   - A zero stored baseline means the position has never been valued. The
//     first observation seeds it silently.
//   - The value baseline moves only when a value-change alert fires, so quiet
//     drift accumulates until it crosses the threshold in one step.
//   - The IL warning level moves on every IL warning and resets to zero on
//     recovery.
func Evaluate(pos *models.Position, val Valuation, activeBin int32, th Thresholds) Decision {
	var d Decision

	if activeBin < pos.LowerBinID || activeBin > pos.UpperBinID {
		d.Alerts = append(d.Alerts, Alert{
			Kind:       AlertRangeExit,
			Market:     pos.Market,
			Mint:       pos.Mint,
			ActiveBin:  activeBin,
			LowerBinID: pos.LowerBinID,
			UpperBinID: pos.UpperBinID,
		})
	}

	evaluateValueChange(pos, val, th, &d)
	evaluateImpermanentLoss(pos, val, th, &d)
	return d
}

func evaluateValueChange(pos *models.Position, val Valuation, th Thresholds, d *Decision) {
	if pos.LastValueUSD == 0 {
		if val.USDValue != 0 {
			seeded := val.USDValue
			d.NewLastValueUSD = &seeded
		}
		return
	}

	changePct := (val.USDValue - pos.LastValueUSD) / pos.LastValueUSD * 100
	if math.Abs(changePct) < th.ValueChangePercent {
		return
	}

	d.Alerts = append(d.Alerts, Alert{
		Kind:        AlertValueChange,
		Market:      pos.Market,
		Mint:        pos.Mint,
		ValueUSD:    val.USDValue,
		PreviousUSD: pos.LastValueUSD,
		ChangePct:   changePct,
	})
	newBaseline := val.USDValue
	d.NewLastValueUSD = &newBaseline
}

func evaluateImpermanentLoss(pos *models.Position, val Valuation, th Thresholds, d *Decision) {
	hodlValue := pos.InitialTokenAAmount*val.TokenXPrice + pos.InitialTokenBAmount*val.TokenYPrice
	if hodlValue == 0 {
		return
	}

	ilPct := (val.USDValue - hodlValue) / hodlValue * 100
	lastWarned := pos.LastILWarningPercent

	switch {
	case ilPct <= th.ILThresholdPercent:
		// Warn on the first crossing, then only when the level has moved
		// at least a step away from the last warned level.
		if lastWarned != 0 && math.Abs(ilPct-lastWarned) < th.ILStepPercent {
			return
		}
		d.Alerts = append(d.Alerts, Alert{
			Kind:    AlertILWarning,
			Market:  pos.Market,
			Mint:    pos.Mint,
			ILPct:   ilPct,
			HodlUSD: hodlValue,
		})
		newLevel := ilPct
		d.NewILWarningPercent = &newLevel

	case ilPct > 0 && lastWarned < 0:
		d.Alerts = append(d.Alerts, Alert{
			Kind:    AlertILRecovered,
			Market:  pos.Market,
			Mint:    pos.Mint,
			ILPct:   ilPct,
			HodlUSD: hodlValue,
		})
		reset := 0.0
		d.NewILWarningPercent = &reset
	}
}
