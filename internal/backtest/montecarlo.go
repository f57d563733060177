package backtest

import (
	"math/rand/v2"
	"sort"

	"orb/pkg/model"
)

// MonteCarloResult contains Monte Carlo simulation results
type MonteCarloResult struct {
	Simulations    int       `json:"simulations"`
	Seed           uint64    `json:"seed"`
	TotalPnL       float64   `json:"total_pnl"`        // identical for every ordering
	MedianDrawdown float64   `json:"median_drawdown"`  // 50th percentile max drawdown
	WorstDrawdown  float64   `json:"worst_drawdown"`   // 5th percentile (most negative)
	BestDrawdown   float64   `json:"best_drawdown"`    // 95th percentile
	ProbWorseThan  float64   `json:"prob_worse_than"`  // % of orderings deeper than the realised drawdown
	MaxDrawdowns   []float64 `json:"max_drawdowns"`    // sorted ascending
}

// RunMonteCarlo reshuffles the order of the trades' net PnL and records the
// max drawdown of every reshuffled equity curve. Trades must already be priced.
func RunMonteCarlo(trades []model.Trade, simulations int, seed uint64) *MonteCarloResult {
	if len(trades) == 0 || simulations <= 0 {
		return nil
	}

	pnl := make([]float64, len(trades))
	var total float64
	for i, t := range trades {
		pnl[i] = t.NetPnL
		total += t.NetPnL
	}
	realised := MaxDrawdown(pnl)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	maxDDs := make([]float64, simulations)
	worse := 0

	shuffled := make([]float64, len(pnl))
	for sim := 0; sim < simulations; sim++ {
		copy(shuffled, pnl)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		maxDDs[sim] = MaxDrawdown(shuffled)
		if maxDDs[sim] < realised {
			worse++
		}
	}

	sort.Float64s(maxDDs)

	return &MonteCarloResult{
		Simulations:    simulations,
		Seed:           seed,
		TotalPnL:       total,
		MedianDrawdown: maxDDs[simulations/2],
		WorstDrawdown:  maxDDs[simulations/20],
		BestDrawdown:   maxDDs[simulations*19/20],
		ProbWorseThan:  float64(worse) / float64(simulations) * 100,
		MaxDrawdowns:   maxDDs,
	}
}
