package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orb/internal/session"
	"orb/pkg/model"
)

func sampleTrades() []model.Trade {
	entry := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	return []model.Trade{
		{
			Date:            session.DateOf(entry),
			EntryTime:       entry,
			EntryPrice:      106.5,
			ExitTime:        time.Date(2024, 1, 15, 15, 15, 0, 0, time.UTC),
			ExitPrice:       110,
			Signal:          model.SignalLong,
			GrossPnL:        3.5,
			TransactionCost: 0.0042,
			NetPnL:          3.4958,
			CumPnL:          3.4958,
			RunningMax:      3.4958,
		},
		{
			Date:       session.Date{Year: 2024, Month: time.January, Day: 16},
			EntryTime:  time.Date(2024, 1, 16, 9, 45, 0, 0, time.UTC),
			EntryPrice: 98,
			ExitTime:   time.Date(2024, 1, 16, 15, 15, 0, 0, time.UTC),
			ExitPrice:  100,
			Signal:     model.SignalShort,
			GrossPnL:   -2,
			NetPnL:     -2.0024,
			CumPnL:     1.4934,
			RunningMax: 3.4958,
			Drawdown:   -2.0024,
		},
	}
}

func TestWriteTradesCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, sampleTrades()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(records))
	}
	if strings.Join(records[0], ",") != strings.Join(TradeColumns, ",") {
		t.Errorf("Unexpected header: %v", records[0])
	}

	tests := []struct {
		row, col int
		want     string
	}{
		{1, 0, "2024-01-15"},
		{1, 1, "2024-01-15 09:30:00"},
		{1, 2, "106.5"},
		{1, 3, "2024-01-15 15:15:00"},
		{1, 5, "1"},
		{1, 8, "3.4958"},
		{2, 5, "-1"},
		{2, 11, "-2.0024"},
	}
	for _, tt := range tests {
		if got := records[tt.row][tt.col]; got != tt.want {
			t.Errorf("Row %d column %s: expected %q, got %q", tt.row, TradeColumns[tt.col], tt.want, got)
		}
	}
}

func TestWriteTradesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTradesCSV(&buf, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(TradeColumns, ",") {
		t.Errorf("Expected header only, got %q", got)
	}
}

func TestSaveTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	if err := SaveTradesCSV(path, sampleTrades()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 3 {
		t.Errorf("Expected 3 lines, got %d", lines)
	}

	if err := SaveTradesCSV(filepath.Join(t.TempDir(), "missing", "trades.csv"), nil); err == nil {
		t.Error("Expected error for unwritable path")
	}
}
