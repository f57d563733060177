package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // timezone names resolve without a system zoneinfo

	"gopkg.in/yaml.v3"

	"orb/internal/backtest"
	"orb/internal/bars"
	"orb/internal/session"
)

// Config represents the application configuration
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Strategy StrategyConfig `yaml:"strategy"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
}

// DataConfig describes the tick CSV handed to the loader
type DataConfig struct {
	Path             string   `yaml:"path"`
	Timezone         string   `yaml:"timezone"`          // IANA name used for zone-less timestamps
	TimestampColumn  string   `yaml:"timestamp_column"`  // empty = guess from header
	TimestampLayouts []string `yaml:"timestamp_layouts"` // tried before the built-in layouts
}

// StrategyConfig holds the ORB pipeline settings
type StrategyConfig struct {
	BarInterval      time.Duration     `yaml:"bar_interval"`
	OpeningRangeTime session.TimeOfDay `yaml:"opening_range_time"`
	TradingWindow    session.Window    `yaml:"trading_window"`
	ExitTime         session.TimeOfDay `yaml:"exit_time"`
	CostRate         float64           `yaml:"cost_rate"` // fraction of |exit - entry|
}

// OutputConfig holds result sinks
type OutputConfig struct {
	TradesCSV string `yaml:"trades_csv"` // empty = no export
	Database  string `yaml:"database"`   // SQLite run history, empty = disabled
	Format    string `yaml:"format"`     // table, json
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Path:     os.Getenv("ORB_DATA_PATH"),
			Timezone: "UTC",
		},
		Strategy: StrategyConfig{
			BarInterval:      bars.DefaultInterval,
			OpeningRangeTime: session.OpeningRangeTime,
			TradingWindow:    session.TradingWindow,
			ExitTime:         session.ExitTime,
			CostRate:         backtest.DefaultCostRate,
		},
		Output: OutputConfig{
			TradesCSV: "orb_trades_results.csv",
			Database:  os.Getenv("ORB_DB_PATH"),
			Format:    "table",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Override with environment variables if set
	if path := os.Getenv("ORB_DATA_PATH"); path != "" {
		cfg.Data.Path = path
	}
	if path := os.Getenv("ORB_DB_PATH"); path != "" {
		cfg.Output.Database = path
	}

	return cfg, nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	if c.Data.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Data.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Data.Timezone, err)
	}
	return loc, nil
}

// Backtest converts the strategy section into engine parameters
func (c *Config) Backtest() backtest.BacktestConfig {
	return backtest.BacktestConfig{
		BarInterval:      c.Strategy.BarInterval,
		OpeningRangeTime: c.Strategy.OpeningRangeTime,
		TradingWindow:    c.Strategy.TradingWindow,
		ExitTime:         c.Strategy.ExitTime,
		CostRate:         c.Strategy.CostRate,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Data.Path == "" {
		return fmt.Errorf("data path is required (set data.path, --data or ORB_DATA_PATH)")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.Backtest().Validate(); err != nil {
		return err
	}
	switch c.Output.Format {
	case "table", "json":
	default:
		return fmt.Errorf("unknown output format %q (want table or json)", c.Output.Format)
	}
	return nil
}
