package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"orb/internal/backtest"
	"orb/internal/config"
	"orb/internal/export"
	"orb/internal/loader"
	"orb/internal/logx"
	"orb/internal/session"
	"orb/internal/store"
	"orb/pkg/model"
)

var (
	cfgFile     string
	dataPath    string
	interval    time.Duration
	opening     string
	windowStart string
	windowEnd   string
	exitTime    string
	costRate    float64
	tradesOut   string
	dbPath      string
	format      string
	monteCarlo  int
	seed        uint64
	logLevel    string
	verbose     bool
	runsLimit   int
	deleteRun   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orb",
		Short: "Opening range breakout backtester",
		Long: `orb backtests an opening range breakout strategy on intraday tick data.

Ticks are resampled into fixed bars. The 09:25 bar of each day sets the
reference level: a bullish bar arms a long above its high, a bearish bar
arms a short below its low. The first breakout inside the trading window
is entered at the bar close and exited at the open of the 15:15 bar.

Examples:
  orb --data nifty_ticks.csv
  orb --data nifty_ticks.csv --interval 15m --cost 0.001 --format json
  orb --data nifty_ticks.csv --db runs.db --monte-carlo 1000
  orb runs --db runs.db`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite run history (default: output.database)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.Flags().StringVar(&dataPath, "data", "", "tick CSV file (default: data.path or ORB_DATA_PATH)")
	rootCmd.Flags().DurationVar(&interval, "interval", 5*time.Minute, "bar interval")
	rootCmd.Flags().StringVar(&opening, "opening", "09:25", "opening range bar start (HH:MM)")
	rootCmd.Flags().StringVar(&windowStart, "window-start", "09:30", "trading window start (HH:MM)")
	rootCmd.Flags().StringVar(&windowEnd, "window-end", "15:15", "trading window end (HH:MM)")
	rootCmd.Flags().StringVar(&exitTime, "exit", "15:15", "exit bar start (HH:MM)")
	rootCmd.Flags().Float64Var(&costRate, "cost", backtest.DefaultCostRate, "transaction cost as a fraction of |exit - entry|")
	rootCmd.Flags().StringVar(&tradesOut, "trades-out", "", "trades CSV path (default: output.trades_csv)")
	rootCmd.Flags().IntVar(&monteCarlo, "monte-carlo", 0, "number of trade-order reshuffles (0 = off)")
	rootCmd.Flags().Uint64Var(&seed, "seed", 0, "Monte Carlo seed (0 = time based)")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "show detailed output")

	runsCmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List stored backtest runs, or show the trades of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to list (0 = all)")
	runsCmd.Flags().BoolVar(&deleteRun, "delete", false, "delete the given run instead of showing it")
	rootCmd.AddCommand(runsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Data.Path = dataPath
	}
	if flags.Changed("interval") {
		cfg.Strategy.BarInterval = interval
	}
	for _, f := range []struct {
		name  string
		value string
		dst   *session.TimeOfDay
	}{
		{"opening", opening, &cfg.Strategy.OpeningRangeTime},
		{"window-start", windowStart, &cfg.Strategy.TradingWindow.Start},
		{"window-end", windowEnd, &cfg.Strategy.TradingWindow.End},
		{"exit", exitTime, &cfg.Strategy.ExitTime},
	} {
		if !flags.Changed(f.name) {
			continue
		}
		tod, err := session.ParseTimeOfDay(f.value)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", f.name, err)
		}
		*f.dst = tod
	}
	if flags.Changed("cost") {
		cfg.Strategy.CostRate = costRate
	}
	if flags.Changed("trades-out") {
		cfg.Output.TradesCSV = tradesOut
	}
	if flags.Changed("db") {
		cfg.Output.Database = dbPath
	}
	if flags.Changed("format") {
		cfg.Output.Format = format
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}

	if err := logx.Setup(cfg.Log.Level, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

// interruptContext cancels on SIGINT/SIGTERM
func interruptContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted. Stopping backtest...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := interruptContext()
	defer cancel()

	start := time.Now()
	l := loader.NewCSVLoader(loader.Options{
		Location:        loc,
		TimestampColumn: cfg.Data.TimestampColumn,
		Layouts:         cfg.Data.TimestampLayouts,
	})
	ticks, stats, err := l.LoadFile(ctx, cfg.Data.Path)
	if err != nil {
		return err
	}
	log.Printf("[BACKTEST] data loading completed in %.2f seconds", time.Since(start).Seconds())

	bt, err := backtest.NewBacktester(cfg.Backtest())
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if cfg.Output.Format == "table" {
		bt.SetProgressCallback(func(done, total int) {
			if bar == nil {
				bar = newProgressBar(total)
			}
			bar.Set(done)
		})
	}

	result, err := bt.Run(ticks)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("running backtest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if cfg.Output.TradesCSV != "" {
		if err := export.SaveTradesCSV(cfg.Output.TradesCSV, result.Trades); err != nil {
			return err
		}
		log.Printf("[BACKTEST] Results saved to %s", cfg.Output.TradesCSV)
	}

	if cfg.Output.Database != "" {
		st, err := store.Open(ctx, cfg.Output.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveRun(ctx, cfg.Data.Path, result); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
	}

	var mc *backtest.MonteCarloResult
	if monteCarlo > 0 {
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		mc = backtest.RunMonteCarlo(result.Trades, monteCarlo, seed)
	}

	rep := &report{BacktestResult: result, Load: stats, MonteCarlo: mc}
	if cfg.Output.Format == "json" {
		return outputJSON(rep)
	}
	return outputTable(rep, cfg)
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Simulating"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Output.Database == "" {
		return fmt.Errorf("no run history configured (set output.database, --db or ORB_DB_PATH)")
	}

	ctx, cancel := interruptContext()
	defer cancel()

	st, err := store.Open(ctx, cfg.Output.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		if deleteRun {
			return fmt.Errorf("--delete needs a run id")
		}
		runs, err := st.Runs(ctx, runsLimit)
		if err != nil {
			return err
		}
		if cfg.Output.Format == "json" {
			return outputJSON(runs)
		}
		return outputRunsTable(runs)
	}

	id := args[0]
	if deleteRun {
		if err := st.DeleteRun(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", id)
		return nil
	}

	r, err := st.Run(ctx, id)
	if err != nil {
		return err
	}
	trades, err := st.Trades(ctx, id)
	if err != nil {
		return err
	}
	if cfg.Output.Format == "json" {
		return outputJSON(struct {
			Run    store.Run     `json:"run"`
			Trades []model.Trade `json:"trades"`
		}{r, trades})
	}
	return outputRunDetail(r, trades)
}
