package backtest

import (
	"errors"
	"testing"
	"time"

	"orb/internal/session"
	"orb/pkg/model"
)

func mtick(d session.Date, hh, mm int, o, h, l, c float64) model.Tick {
	return model.Tick{
		Time:   session.Clock(hh, mm, 0).On(d, time.UTC),
		Open:   o,
		High:   h,
		Low:    l,
		Close:  c,
		Volume: 1000,
	}
}

// scenarioTicks builds one bullish breakout day followed by a day that has
// no opening-range bar at all.
func scenarioTicks() []model.Tick {
	ticks := []model.Tick{
		mtick(day1, 9, 15, 99, 100.5, 98.5, 100),
		mtick(day1, 9, 20, 100, 101, 99.5, 100),
		mtick(day1, 9, 25, 100, 106, 99, 105), // bullish, ref = 106
		mtick(day1, 9, 26, 105, 105.5, 104, 105),
		mtick(day1, 9, 30, 105, 106, 104, 105.5),
		mtick(day1, 9, 35, 105.5, 107.5, 105, 107), // breakout close 107 > 106
		mtick(day1, 9, 40, 107, 109, 106, 108),
		mtick(day1, 12, 0, 108, 108, 102, 103),
		mtick(day1, 15, 15, 103, 104, 102, 103.5), // exit at open 103
		mtick(day1, 15, 25, 103.5, 104, 103, 103.8),
	}
	// Day 2 opens late: no 09:25 bar, so nothing trades
	ticks = append(ticks,
		mtick(day2, 9, 30, 100, 120, 90, 119),
		mtick(day2, 10, 0, 119, 125, 80, 81),
		mtick(day2, 15, 15, 81, 82, 80, 81),
	)
	return ticks
}

func TestBacktester_EndToEnd(t *testing.T) {
	bt, err := NewBacktester(DefaultBacktestConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var progressDays int
	bt.SetProgressCallback(func(done, total int) { progressDays = total })

	result, err := bt.Run(scenarioTicks())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.RunID == "" {
		t.Error("Expected run ID")
	}
	if result.Ticks != 13 {
		t.Errorf("Expected 13 ticks, got %d", result.Ticks)
	}
	// 09:25 and 09:26 merge into one bar
	if result.Bars != 12 {
		t.Errorf("Expected 12 bars, got %d", result.Bars)
	}
	if result.SignalDays != 1 {
		t.Errorf("Expected 1 signal day, got %d", result.SignalDays)
	}
	if progressDays != 2 {
		t.Errorf("Expected progress over 2 days, got %d", progressDays)
	}
	if len(result.Timings) != 4 {
		t.Errorf("Expected 4 stage timings, got %d", len(result.Timings))
	}

	if len(result.Trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(result.Trades))
	}
	tr := result.Trades[0]
	if tr.Signal != model.SignalLong || tr.EntryPrice != 107 || tr.ExitPrice != 103 {
		t.Errorf("Unexpected trade: %+v", tr)
	}
	if !approx(tr.GrossPnL, -4) {
		t.Errorf("Expected gross -4, got %.4f", tr.GrossPnL)
	}
	if !approx(tr.TransactionCost, 0.0048) {
		t.Errorf("Expected cost 0.0048, got %.6f", tr.TransactionCost)
	}
	if !approx(tr.NetPnL, -4.0048) {
		t.Errorf("Expected net -4.0048, got %.6f", tr.NetPnL)
	}

	if !approx(result.Summary.TotalPnL, -4.0048) {
		t.Errorf("Expected total -4.0048, got %.6f", result.Summary.TotalPnL)
	}
	if result.Summary.MaxDrawdown != 0 || result.Summary.SharpeRatio != 0 || result.Summary.CalmarRatio != 0 {
		t.Errorf("Expected guarded zero ratios for a single trade, got %+v", result.Summary)
	}
	if result.Summary.WinRate != 0 || !approx(result.Summary.AvgLoss, -4.0048) {
		t.Errorf("Unexpected win/loss stats: %+v", result.Summary)
	}
	if len(result.EquityCurve) != 1 || !approx(result.EquityCurve[0], -4.0048) {
		t.Errorf("Unexpected equity curve: %v", result.EquityCurve)
	}
	if result.Period != "2024-01-15 ~ 2024-01-16" {
		t.Errorf("Unexpected period %q", result.Period)
	}
}

func TestBacktester_EmptyInput(t *testing.T) {
	bt, err := NewBacktester(DefaultBacktestConfig())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	result, err := bt.Run(nil)
	if err != nil {
		t.Fatalf("Expected no error for empty input, got %v", err)
	}
	if len(result.Trades) != 0 || result.Summary != (model.Summary{}) {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

func TestBacktester_UnsortedTicks(t *testing.T) {
	bt, _ := NewBacktester(DefaultBacktestConfig())
	ticks := scenarioTicks()
	ticks[0], ticks[5] = ticks[5], ticks[0]

	if _, err := bt.Run(ticks); err == nil {
		t.Error("Expected error for unsorted ticks")
	}
}

func TestBacktestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *BacktestConfig)
	}{
		{name: "Zero interval", mutate: func(c *BacktestConfig) { c.BarInterval = 0 }},
		{name: "Negative interval", mutate: func(c *BacktestConfig) { c.BarInterval = -time.Minute }},
		{name: "Window end before start", mutate: func(c *BacktestConfig) {
			c.TradingWindow = session.Window{Start: session.Clock(15, 0, 0), End: session.Clock(9, 30, 0)}
		}},
		{name: "Exit outside window", mutate: func(c *BacktestConfig) { c.ExitTime = session.Clock(15, 30, 0) }},
		{name: "Negative cost", mutate: func(c *BacktestConfig) { c.CostRate = -0.1 }},
		{name: "Opening time past midnight", mutate: func(c *BacktestConfig) {
			c.OpeningRangeTime = session.TimeOfDay(25 * time.Hour)
		}},
	}

	if err := DefaultBacktestConfig().Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultBacktestConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if _, err := NewBacktester(cfg); err == nil {
				t.Error("Expected NewBacktester to reject the config")
			}
		})
	}
}
