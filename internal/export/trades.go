// Package export writes backtest trades to flat files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"orb/pkg/model"
)

// TimeLayout is used for entry and exit timestamps
const TimeLayout = "2006-01-02 15:04:05"

// TradeColumns is the CSV header, one column per trade field
var TradeColumns = []string{
	"date", "entry_time", "entry_price", "exit_time", "exit_price", "signal",
	"gross_pnl", "transaction_cost", "net_pnl", "cum_pnl", "running_max", "drawdown",
}

// WriteTradesCSV writes the header followed by one row per trade
func WriteTradesCSV(w io.Writer, trades []model.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TradeColumns); err != nil {
		return err
	}

	for _, t := range trades {
		rec := []string{
			t.Date.String(),
			t.EntryTime.Format(TimeLayout),
			formatF(t.EntryPrice),
			t.ExitTime.Format(TimeLayout),
			formatF(t.ExitPrice),
			strconv.Itoa(int(t.Signal)),
			formatF(t.GrossPnL),
			formatF(t.TransactionCost),
			formatF(t.NetPnL),
			formatF(t.CumPnL),
			formatF(t.RunningMax),
			formatF(t.Drawdown),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveTradesCSV creates (or truncates) path and writes trades into it
func SaveTradesCSV(path string, trades []model.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := WriteTradesCSV(f, trades); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func formatF(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
