package model

import (
	"time"

	"orb/internal/session"
)

// Tick is one raw input row (one minute or finer)
type Tick struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Bar represents an OHLCV candle over a fixed wall-clock interval
type Bar struct {
	Time      time.Time         `json:"time"` // interval start
	Date      session.Date      `json:"date"`
	TimeOfDay session.TimeOfDay `json:"time_of_day"`
	Open      float64           `json:"open"`
	High      float64           `json:"high"`
	Low       float64           `json:"low"`
	Close     float64           `json:"close"`
	Volume    float64           `json:"volume"`
}

// CandleType classifies the opening-range bar
type CandleType string

const (
	CandleNone    CandleType = ""
	CandleBullish CandleType = "bullish"
	CandleBearish CandleType = "bearish"
)

// Signal is the per-bar breakout direction
type Signal int

const (
	SignalShort Signal = -1
	SignalFlat  Signal = 0
	SignalLong  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case SignalShort:
		return "short"
	case SignalLong:
		return "long"
	default:
		return "flat"
	}
}

// DayState is the per-date breakout state
type DayState int

const (
	AwaitingOpen DayState = iota // opening bar not seen yet
	Armed                        // reference level fixed, no breakout yet
	Triggered                    // at least one breakout bar seen
)

func (s DayState) String() string {
	switch s {
	case Armed:
		return "armed"
	case Triggered:
		return "triggered"
	default:
		return "awaiting_open"
	}
}

// DaySignalState is the opening-range reference for one trading day
type DaySignalState struct {
	Date       session.Date `json:"date"`
	CandleType CandleType   `json:"candle_type"`
	CandleVal  float64      `json:"candle_val"`
}

// SignaledBar is a bar annotated with that day's reference and its signal
type SignaledBar struct {
	Bar
	CandleType   CandleType `json:"candle_type,omitempty"`
	CandleVal    float64    `json:"candle_val,omitempty"`
	HasReference bool       `json:"has_reference"`
	State        DayState   `json:"state"`
	Signal       Signal     `json:"signal"`
}

// Trade is a single intraday round trip
type Trade struct {
	Date       session.Date `json:"date"`
	EntryTime  time.Time    `json:"entry_time"`
	EntryPrice float64      `json:"entry_price"`
	ExitTime   time.Time    `json:"exit_time"`
	ExitPrice  float64      `json:"exit_price"`
	Signal     Signal       `json:"signal"`

	// Filled in by performance analysis
	GrossPnL        float64 `json:"gross_pnl"`
	TransactionCost float64 `json:"transaction_cost"`
	NetPnL          float64 `json:"net_pnl"`
	CumPnL          float64 `json:"cum_pnl"`
	RunningMax      float64 `json:"running_max"`
	Drawdown        float64 `json:"drawdown"`
}

// IsShort reports whether the trade sold first
func (t Trade) IsShort() bool {
	return t.Signal == SignalShort
}

// Summary holds aggregate performance statistics
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	TotalPnL      float64 `json:"total_pnl"`
	MaxDrawdown   float64 `json:"max_drawdown"` // most negative drawdown, points
	SharpeRatio   float64 `json:"sharpe_ratio"`
	CalmarRatio   float64 `json:"calmar_ratio"`
	WinRate       float64 `json:"win_rate"` // percent
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`

	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	MaxWinStreak  int     `json:"max_win_streak"`
	MaxLoseStreak int     `json:"max_lose_streak"`
}
