package backtest

import (
	"math"

	"orb/pkg/model"
)

// varianceEpsilon absorbs rounding noise when every trade has the same PnL
const varianceEpsilon = 1e-12

// Analyze prices every trade with the proportional cost model and computes
// the summary statistics. Trades must be ordered by date. The input slice is
// left untouched; an enriched copy is returned.
func Analyze(trades []model.Trade, costRate float64) ([]model.Trade, model.Summary) {
	out := make([]model.Trade, len(trades))
	copy(out, trades)

	var summary model.Summary
	if len(out) == 0 {
		return out, summary
	}

	var cum, peak float64
	for i := range out {
		t := &out[i]
		t.GrossPnL = grossPnL(*t)
		t.TransactionCost = math.Abs(t.ExitPrice-t.EntryPrice) * costRate
		t.NetPnL = t.GrossPnL - t.TransactionCost

		cum += t.NetPnL
		if i == 0 || cum > peak {
			peak = cum
		}
		t.CumPnL = cum
		t.RunningMax = peak
		t.Drawdown = cum - peak
	}

	calculateStats(&summary, out)
	return out, summary
}

func grossPnL(t model.Trade) float64 {
	if t.IsShort() {
		return t.EntryPrice - t.ExitPrice
	}
	return t.ExitPrice - t.EntryPrice
}

// calculateStats fills the summary from already-priced trades
func calculateStats(result *model.Summary, trades []model.Trade) {
	result.TotalTrades = len(trades)

	var totalWin, totalLoss float64
	var winStreak, loseStreak int
	netPnL := make([]float64, len(trades))

	for i, t := range trades {
		netPnL[i] = t.NetPnL
		result.TotalPnL += t.NetPnL
		if t.Drawdown < result.MaxDrawdown {
			result.MaxDrawdown = t.Drawdown
		}

		switch {
		case t.NetPnL > 0:
			result.WinningTrades++
			totalWin += t.NetPnL
			if t.NetPnL > result.LargestWin {
				result.LargestWin = t.NetPnL
			}

			winStreak++
			loseStreak = 0
			if winStreak > result.MaxWinStreak {
				result.MaxWinStreak = winStreak
			}
		case t.NetPnL < 0:
			result.LosingTrades++
			totalLoss += t.NetPnL
			if t.NetPnL < result.LargestLoss {
				result.LargestLoss = t.NetPnL
			}

			loseStreak++
			winStreak = 0
			if loseStreak > result.MaxLoseStreak {
				result.MaxLoseStreak = loseStreak
			}
		default:
			winStreak = 0
			loseStreak = 0
		}
	}

	result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	if result.WinningTrades > 0 {
		result.AvgWin = totalWin / float64(result.WinningTrades)
	}
	if result.LosingTrades > 0 {
		result.AvgLoss = totalLoss / float64(result.LosingTrades)
	}

	// Profit Factor
	if totalLoss < 0 {
		result.ProfitFactor = totalWin / math.Abs(totalLoss)
	}

	// Sharpe Ratio (per trade, not annualized)
	mean := average(netPnL)
	if std := stdDev(netPnL); std > varianceEpsilon {
		result.SharpeRatio = mean / std
	}

	// Calmar Ratio
	if result.MaxDrawdown != 0 {
		result.CalmarRatio = mean / math.Abs(result.MaxDrawdown)
	}
}

// MaxDrawdown returns the most negative gap between cumulative PnL and its
// running peak over a PnL sequence, or 0 for an empty or never-falling one.
func MaxDrawdown(pnl []float64) float64 {
	var cum, peak, maxDD float64
	for i, v := range pnl {
		cum += v
		if i == 0 || cum > peak {
			peak = cum
		}
		if dd := cum - peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation; 0 for fewer than two values
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := average(values)
	var sumSquares float64
	for _, v := range values {
		sumSquares += (v - avg) * (v - avg)
	}
	return math.Sqrt(sumSquares / float64(len(values)-1))
}
