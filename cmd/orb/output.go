package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"orb/internal/backtest"
	"orb/internal/config"
	"orb/internal/export"
	"orb/internal/loader"
	"orb/internal/store"
	"orb/pkg/model"
)

// previewTrades is how many trades the table report lists without --verbose
const previewTrades = 5

type report struct {
	*backtest.BacktestResult
	Load       loader.Stats               `json:"load"`
	MonteCarlo *backtest.MonteCarloResult `json:"monte_carlo,omitempty"`
}

func outputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputTable(r *report, cfg *config.Config) error {
	res := r.BacktestResult
	sum := res.Summary

	fmt.Printf("\nORB backtest %s (%s)\n", res.RunID, res.Period)
	fmt.Printf("Bars: %s | Opening bar: %s | Window: %s | Exit: %s | Cost: %.4f%%\n\n",
		res.Config.BarInterval, res.Config.OpeningRangeTime, res.Config.TradingWindow,
		res.Config.ExitTime, res.Config.CostRate*100)

	if sum.TotalTrades == 0 {
		fmt.Println("No trades generated.")
	} else {
		limit := previewTrades
		if verbose || len(res.Trades) < limit {
			limit = len(res.Trades)
		}
		if limit < len(res.Trades) {
			fmt.Printf("First %d of %d trades:\n", limit, len(res.Trades))
		} else {
			fmt.Printf("%d trades:\n", len(res.Trades))
		}
		renderTrades(res.Trades[:limit])
	}

	fmt.Println("\n--- Performance Summary ---")
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Metric", "Value"}),
	)
	rows := [][]string{
		{"Data points", fmt.Sprintf("%d (%d skipped)", r.Load.Loaded, r.Load.Skipped)},
		{"Bars", fmt.Sprintf("%d", res.Bars)},
		{"Signal days", fmt.Sprintf("%d", res.SignalDays)},
		{"Signals generated", fmt.Sprintf("%d", res.SignalBars)},
		{"Total trades", fmt.Sprintf("%d", sum.TotalTrades)},
		{"Profitable trades", fmt.Sprintf("%d", sum.WinningTrades)},
		{"Losing trades", fmt.Sprintf("%d", sum.LosingTrades)},
		{"Total PnL", fmt.Sprintf("%.2f", sum.TotalPnL)},
		{"Max drawdown", fmt.Sprintf("%.2f", sum.MaxDrawdown)},
		{"Sharpe ratio", fmt.Sprintf("%.2f", sum.SharpeRatio)},
		{"Calmar ratio", fmt.Sprintf("%.2f", sum.CalmarRatio)},
		{"Win rate", fmt.Sprintf("%.2f%%", sum.WinRate)},
		{"Average win", fmt.Sprintf("%.2f", sum.AvgWin)},
		{"Average loss", fmt.Sprintf("%.2f", sum.AvgLoss)},
		{"Largest win", fmt.Sprintf("%.2f", sum.LargestWin)},
		{"Largest loss", fmt.Sprintf("%.2f", sum.LargestLoss)},
		{"Profit factor", fmt.Sprintf("%.2f", sum.ProfitFactor)},
		{"Win / lose streak", fmt.Sprintf("%d / %d", sum.MaxWinStreak, sum.MaxLoseStreak)},
	}
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()

	if r.MonteCarlo != nil {
		mc := r.MonteCarlo
		fmt.Printf("\n--- Monte Carlo (%d reshuffles, seed %d) ---\n", mc.Simulations, mc.Seed)
		fmt.Printf("  Max drawdown: median %.2f | 5th pct %.2f | 95th pct %.2f\n",
			mc.MedianDrawdown, mc.WorstDrawdown, mc.BestDrawdown)
		fmt.Printf("  Orderings deeper than realised (%.2f): %.1f%%\n", sum.MaxDrawdown, mc.ProbWorseThan)
	}

	if verbose {
		fmt.Println("\n--- Stage Timings ---")
		for _, t := range res.Timings {
			fmt.Printf("  %-24s %s\n", t.Stage, t.Duration.Round(time.Microsecond))
		}
	}

	if cfg.Output.TradesCSV != "" {
		fmt.Printf("\nTrades saved to %s\n", cfg.Output.TradesCSV)
	}
	return nil
}

func renderTrades(trades []model.Trade) {
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Date", "Side", "Entry", "Entry Px", "Exit", "Exit Px", "Net", "Cum", "DD"}),
	)
	for _, t := range trades {
		table.Append([]string{
			t.Date.String(),
			t.Signal.String(),
			t.EntryTime.Format("15:04"),
			fmt.Sprintf("%.2f", t.EntryPrice),
			t.ExitTime.Format("15:04"),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%+.2f", t.NetPnL),
			fmt.Sprintf("%.2f", t.CumPnL),
			fmt.Sprintf("%.2f", t.Drawdown),
		})
	}
	table.Render()
}

func outputRunsTable(runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Println("No stored runs.")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Run", "Created", "Period", "Bars", "Trades", "Win %", "PnL", "Max DD", "Sharpe"}),
	)
	for _, r := range runs {
		table.Append([]string{
			r.ID[:min(8, len(r.ID))],
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Period,
			r.BarInterval,
			fmt.Sprintf("%d", r.Summary.TotalTrades),
			fmt.Sprintf("%.1f%%", r.Summary.WinRate),
			fmt.Sprintf("%.2f", r.Summary.TotalPnL),
			fmt.Sprintf("%.2f", r.Summary.MaxDrawdown),
			fmt.Sprintf("%.2f", r.Summary.SharpeRatio),
		})
	}
	table.Render()
	return nil
}

func outputRunDetail(r store.Run, trades []model.Trade) error {
	fmt.Printf("Run %s\n", r.ID)
	fmt.Printf("  Source: %s | Period: %s | Created: %s\n", r.Source, r.Period, r.CreatedAt.Local().Format(export.TimeLayout))
	fmt.Printf("  Bars: %s | Opening bar: %s | Window: %s | Exit: %s | Cost: %.4f%%\n",
		r.BarInterval, r.OpeningTime, r.Window, r.ExitTime, r.CostRate*100)
	fmt.Printf("  Trades: %d | PnL: %.2f | Max DD: %.2f | Sharpe: %.2f | Calmar: %.2f\n\n",
		r.Summary.TotalTrades, r.Summary.TotalPnL, r.Summary.MaxDrawdown, r.Summary.SharpeRatio, r.Summary.CalmarRatio)

	if len(trades) == 0 {
		fmt.Println("No trades stored.")
		return nil
	}
	renderTrades(trades)
	return nil
}
