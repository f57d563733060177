package loader

import (
	"fmt"
	"strings"
)

// columnLayout maps tick fields to CSV column indexes; -1 means absent
type columnLayout struct {
	timestamp int
	clock     int // separate time-of-day column joined to a date column
	open      int
	high      int
	low       int
	close     int
	volume    int
}

// positionalLayout is used for header-less files: ts,open,high,low,close[,volume]
func positionalLayout(fields int) *columnLayout {
	cl := &columnLayout{timestamp: 0, clock: -1, open: 1, high: 2, low: 3, close: 4, volume: -1}
	if fields >= 6 {
		cl.volume = 5
	}
	return cl
}

func (cl *columnLayout) maxIndex() int {
	m := cl.timestamp
	for _, i := range []int{cl.clock, cl.open, cl.high, cl.low, cl.close, cl.volume} {
		if i > m {
			m = i
		}
	}
	return m
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(strings.Trim(h, `"`)))
	return strings.ReplaceAll(h, " ", "_")
}

// detectLayout inspects the first record. A record naming the OHLC columns is
// a header; anything else is treated as data in positional order.
func detectLayout(rec []string, tsColumn string) (*columnLayout, bool, error) {
	index := make(map[string]int, len(rec))
	for i, h := range rec {
		name := normalizeHeader(h)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	_, hasOpen := index["open"]
	_, hasClose := index["close"]
	if !hasOpen && !hasClose {
		if tsColumn != "" {
			return nil, false, fmt.Errorf("timestamp column %q requires a header row", tsColumn)
		}
		if len(rec) < 5 {
			return nil, false, fmt.Errorf("header-less input needs timestamp,open,high,low,close columns, got %d", len(rec))
		}
		return positionalLayout(len(rec)), false, nil
	}

	cl := &columnLayout{clock: -1, volume: -1}
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{"open", &cl.open}, {"high", &cl.high}, {"low", &cl.low}, {"close", &cl.close},
	} {
		i, ok := index[f.name]
		if !ok {
			return nil, true, fmt.Errorf("header is missing the %q column", f.name)
		}
		*f.dst = i
	}
	if i, ok := index["volume"]; ok {
		cl.volume = i
	} else if i, ok := index["vol"]; ok {
		cl.volume = i
	}

	ts, clock, err := timestampColumn(index, tsColumn)
	if err != nil {
		return nil, true, err
	}
	cl.timestamp, cl.clock = ts, clock
	return cl, true, nil
}

// timestampColumn picks the configured column, then a known name, then the
// first column. A lone "date" plus "time" pair is read as one timestamp.
func timestampColumn(index map[string]int, configured string) (int, int, error) {
	if configured != "" {
		i, ok := index[normalizeHeader(configured)]
		if !ok {
			return 0, -1, fmt.Errorf("timestamp column %q not found in header", configured)
		}
		return i, -1, nil
	}

	_, hasDateTime := index["datetime"]
	_, hasTimestamp := index["timestamp"]
	di, hasDate := index["date"]
	ti, hasTime := index["time"]
	if hasDate && hasTime && !hasDateTime && !hasTimestamp {
		return di, ti, nil
	}

	for _, name := range timestampColumns {
		if i, ok := index[name]; ok {
			return i, -1, nil
		}
	}
	return 0, -1, nil
}
