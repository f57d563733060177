package strategy

import (
	"orb/internal/session"
	"orb/pkg/model"
)

// ORBConfig holds configuration for the opening-range breakout detector
type ORBConfig struct {
	OpeningRangeTime session.TimeOfDay // bar that fixes the day's reference (default 09:25)
}

// DefaultORBConfig returns default configuration
func DefaultORBConfig() ORBConfig {
	return ORBConfig{
		OpeningRangeTime: session.OpeningRangeTime,
	}
}

// ORBDetector implements the opening-range breakout signal.
// Per trading day:
// 1. Wait for the bar starting at the opening-range time
// 2. Bullish opening bar (close > open) -> reference = its high; otherwise reference = its low
// 3. Every later bar of the day: long if close > high ref, short if close < low ref
type ORBDetector struct {
	config ORBConfig
}

// NewORBDetector creates a new ORB detector
func NewORBDetector(cfg ORBConfig) *ORBDetector {
	return &ORBDetector{config: cfg}
}

// Name returns the strategy name
func (d *ORBDetector) Name() string {
	return "orb"
}

// Description returns the strategy description
func (d *ORBDetector) Description() string {
	return "Opening range breakout - trade the first close beyond the " +
		d.config.OpeningRangeTime.String() + " bar's high (bullish) or low (bearish)"
}

// dayTracker carries one date's state machine. The reference is written once,
// on the transition out of AwaitingOpen, and only read afterwards.
type dayTracker struct {
	date  session.Date
	state model.DayState
	ref   model.DaySignalState
}

// Detect walks bars in order and annotates each with that day's reference and
// its breakout signal. It also returns the reference of every day that saw an
// opening-range bar, in date order. Input bars are not modified.
func (d *ORBDetector) Detect(bars []model.Bar) ([]model.SignaledBar, []model.DaySignalState) {
	out := make([]model.SignaledBar, 0, len(bars))
	var days []model.DaySignalState

	var day dayTracker
	for i, b := range bars {
		if i == 0 || b.Date != day.date {
			day = dayTracker{date: b.Date, state: model.AwaitingOpen}
		}

		if day.state == model.AwaitingOpen && b.TimeOfDay == d.config.OpeningRangeTime {
			day.ref = ClassifyOpeningBar(b)
			day.state = model.Armed
			days = append(days, day.ref)
		}

		sb := model.SignaledBar{Bar: b, State: day.state}
		if day.state != model.AwaitingOpen {
			sb.CandleType = day.ref.CandleType
			sb.CandleVal = day.ref.CandleVal
			sb.HasReference = true
			sb.Signal = BreakoutSignal(day.ref, b.Close)
			if sb.Signal != model.SignalFlat {
				day.state = model.Triggered
				sb.State = model.Triggered
			}
		}
		out = append(out, sb)
	}

	return out, days
}

// ClassifyOpeningBar derives the day's reference from its opening-range bar.
// A flat bar (close == open) is bearish.
func ClassifyOpeningBar(b model.Bar) model.DaySignalState {
	if b.Close > b.Open {
		return model.DaySignalState{Date: b.Date, CandleType: model.CandleBullish, CandleVal: b.High}
	}
	return model.DaySignalState{Date: b.Date, CandleType: model.CandleBearish, CandleVal: b.Low}
}

// BreakoutSignal evaluates a close against a fixed reference
func BreakoutSignal(ref model.DaySignalState, close float64) model.Signal {
	switch {
	case ref.CandleType == model.CandleBearish && close < ref.CandleVal:
		return model.SignalShort
	case ref.CandleType == model.CandleBullish && close > ref.CandleVal:
		return model.SignalLong
	default:
		return model.SignalFlat
	}
}
