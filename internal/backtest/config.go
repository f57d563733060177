package backtest

import (
	"errors"
	"fmt"
	"time"

	"orb/internal/bars"
	"orb/internal/session"
)

// ErrInvalidConfig wraps every configuration fault found by Validate
var ErrInvalidConfig = errors.New("invalid backtest config")

// DefaultCostRate is the round-trip friction applied to the absolute price move
const DefaultCostRate = 0.0012

// BacktestConfig holds backtest parameters
type BacktestConfig struct {
	BarInterval      time.Duration     // e.g., 5m bars
	OpeningRangeTime session.TimeOfDay // reference bar, e.g. 09:25
	TradingWindow    session.Window    // entries allowed inside, e.g. 09:30-15:15
	ExitTime         session.TimeOfDay // forced close-out bar, e.g. 15:15
	CostRate         float64           // e.g., 0.0012 = 0.12% of |exit - entry|
}

// DefaultBacktestConfig returns default configuration
func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		BarInterval:      bars.DefaultInterval,
		OpeningRangeTime: session.OpeningRangeTime,
		TradingWindow:    session.TradingWindow,
		ExitTime:         session.ExitTime,
		CostRate:         DefaultCostRate,
	}
}

// Validate checks the configuration before any computation starts
func (c BacktestConfig) Validate() error {
	if c.BarInterval <= 0 {
		return fmt.Errorf("%w: bar interval must be positive, got %s", ErrInvalidConfig, c.BarInterval)
	}
	if !c.OpeningRangeTime.Valid() {
		return fmt.Errorf("%w: opening range time %s out of range", ErrInvalidConfig, c.OpeningRangeTime)
	}
	if err := c.TradingWindow.Validate(); err != nil {
		return fmt.Errorf("%w: trading window: %v", ErrInvalidConfig, err)
	}
	if !c.TradingWindow.Contains(c.ExitTime) {
		return fmt.Errorf("%w: exit time %s outside trading window %s", ErrInvalidConfig, c.ExitTime, c.TradingWindow)
	}
	if c.CostRate < 0 {
		return fmt.Errorf("%w: cost rate must not be negative, got %g", ErrInvalidConfig, c.CostRate)
	}
	return nil
}
