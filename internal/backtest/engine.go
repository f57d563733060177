package backtest

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"orb/internal/bars"
	"orb/internal/strategy"
	"orb/pkg/model"
)

// StageTiming records how long one pipeline stage took
type StageTiming struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
}

// BacktestResult contains the complete backtest results
type BacktestResult struct {
	RunID    string         `json:"run_id"`
	Strategy string         `json:"strategy"`
	Period   string         `json:"period"`
	Config   BacktestConfig `json:"-"`

	// Pipeline volume
	Ticks      int `json:"ticks"`
	Bars       int `json:"bars"`
	SignalDays int `json:"signal_days"` // days with an opening-range bar
	SignalBars int `json:"signal_bars"` // bars with a nonzero signal

	Summary model.Summary `json:"summary"`

	// Individual trades, priced
	Trades []model.Trade `json:"trades"`

	// Equity curve (cumulative net PnL after each trade)
	EquityCurve []float64 `json:"equity_curve"`

	Timings []StageTiming `json:"timings"`
}

// Backtester runs the ORB pipeline: ticks -> bars -> signals -> trades -> metrics
type Backtester struct {
	config    BacktestConfig
	detector  strategy.Detector
	simulator *Simulator
}

// NewBacktester validates the configuration and wires the pipeline stages
func NewBacktester(cfg BacktestConfig) (*Backtester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backtester{
		config:    cfg,
		detector:  strategy.NewORBDetector(strategy.ORBConfig{OpeningRangeTime: cfg.OpeningRangeTime}),
		simulator: NewSimulator(cfg.TradingWindow, cfg.ExitTime),
	}, nil
}

// SetProgressCallback reports per-day progress of the trade simulation
func (b *Backtester) SetProgressCallback(cb ProgressCallback) {
	b.simulator.SetProgressCallback(cb)
}

// Run executes every stage in sequence over ticks sorted ascending by time
func (b *Backtester) Run(ticks []model.Tick) (*BacktestResult, error) {
	result := &BacktestResult{
		RunID:    uuid.NewString(),
		Strategy: b.detector.Name(),
		Config:   b.config,
		Ticks:    len(ticks),
	}

	timed := func(name string, fn func()) {
		start := time.Now()
		fn()
		elapsed := time.Since(start)
		result.Timings = append(result.Timings, StageTiming{Stage: name, Duration: elapsed})
		log.Printf("[BACKTEST] %s completed in %.2f seconds", name, elapsed.Seconds())
	}

	var (
		barSeries []model.Bar
		signaled  []model.SignaledBar
		trades    []model.Trade
		err       error
	)

	timed("bar aggregation", func() {
		barSeries, err = bars.Aggregate(ticks, b.config.BarInterval)
	})
	if err != nil {
		return nil, fmt.Errorf("bar aggregation: %w", err)
	}
	result.Bars = len(barSeries)
	log.Printf("[BACKTEST] Created %d %s bars from %d ticks", len(barSeries), b.config.BarInterval, len(ticks))

	timed("signal detection", func() {
		var days []model.DaySignalState
		signaled, days = b.detector.Detect(barSeries)
		result.SignalDays = len(days)
		result.SignalBars = strategy.CountSignals(signaled)
	})
	log.Printf("[BACKTEST] Found %d signal days, %d signal bars", result.SignalDays, result.SignalBars)

	timed("trade identification", func() {
		trades = b.simulator.Simulate(signaled)
	})
	log.Printf("[BACKTEST] Identified %d trades", len(trades))

	timed("performance calculation", func() {
		result.Trades, result.Summary = Analyze(trades, b.config.CostRate)
	})

	result.EquityCurve = make([]float64, len(result.Trades))
	for i, t := range result.Trades {
		result.EquityCurve[i] = t.CumPnL
	}
	if len(barSeries) > 0 {
		result.Period = barSeries[0].Date.String() + " ~ " + barSeries[len(barSeries)-1].Date.String()
	}

	return result, nil
}
