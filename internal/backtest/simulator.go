package backtest

import (
	"sort"

	"orb/internal/session"
	"orb/pkg/model"
)

// ProgressCallback reports processed trading days
type ProgressCallback func(done, total int)

// Simulator turns signaled bars into at most one trade per date
type Simulator struct {
	window     session.Window
	exitTime   session.TimeOfDay
	onProgress ProgressCallback
}

// NewSimulator creates a simulator for the given window and close-out time
func NewSimulator(window session.Window, exitTime session.TimeOfDay) *Simulator {
	return &Simulator{
		window:   window,
		exitTime: exitTime,
	}
}

// SetProgressCallback sets the per-day progress callback
func (s *Simulator) SetProgressCallback(cb ProgressCallback) {
	s.onProgress = cb
}

// daySession is one date's window bars in chronological order
type daySession struct {
	date session.Date
	bars []model.SignaledBar
}

// Simulate restricts bars to the trading window, then for each date enters on
// the first nonzero signal and exits at the close-out bar (or the last window
// bar when that is missing). Trades come back sorted by date, PnL unset.
func (s *Simulator) Simulate(signaled []model.SignaledBar) []model.Trade {
	days := s.groupByDate(signaled)

	trades := make([]model.Trade, 0, len(days))
	for i, day := range days {
		if trade, ok := s.simulateDay(day); ok {
			trades = append(trades, trade)
		}
		if s.onProgress != nil {
			s.onProgress(i+1, len(days))
		}
	}
	return trades
}

func (s *Simulator) groupByDate(signaled []model.SignaledBar) []daySession {
	index := make(map[session.Date]int)
	var days []daySession

	for _, b := range signaled {
		if !s.window.Contains(b.TimeOfDay) {
			continue
		}
		i, ok := index[b.Date]
		if !ok {
			i = len(days)
			index[b.Date] = i
			days = append(days, daySession{date: b.Date})
		}
		days[i].bars = append(days[i].bars, b)
	}

	sort.SliceStable(days, func(i, j int) bool {
		return days[i].date.Before(days[j].date)
	})
	return days
}

func (s *Simulator) simulateDay(day daySession) (model.Trade, bool) {
	entry, ok := firstSignal(day.bars)
	if !ok {
		return model.Trade{}, false
	}
	exit := s.exitBar(day.bars)

	// Entries fill at the signal bar's close, exits at the close-out bar's open
	return model.Trade{
		Date:       day.date,
		EntryTime:  entry.Time,
		EntryPrice: entry.Close,
		ExitTime:   exit.Time,
		ExitPrice:  exit.Open,
		Signal:     entry.Signal,
	}, true
}

// firstSignal returns the earliest bar with a nonzero signal
func firstSignal(bars []model.SignaledBar) (model.SignaledBar, bool) {
	for _, b := range bars {
		if b.Signal != model.SignalFlat {
			return b, true
		}
	}
	return model.SignaledBar{}, false
}

func (s *Simulator) exitBar(bars []model.SignaledBar) model.SignaledBar {
	for _, b := range bars {
		if b.TimeOfDay == s.exitTime {
			return b
		}
	}
	return bars[len(bars)-1]
}
