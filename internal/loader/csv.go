// Package loader reads tick CSV files into sorted model.Tick slices.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"orb/pkg/model"
)

// ErrNoRows is returned when a file yields no usable tick
var ErrNoRows = errors.New("no valid rows in input")

// DefaultLayouts are tried, in order, for zone-less timestamps
var DefaultLayouts = []string{
	"2006-01-02 15:04:05",
	"02-01-2006 15:04:05",
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04",
	"02-01-2006 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
}

// Header names recognised for the timestamp column, most specific first
var timestampColumns = []string{"datetime", "date_time", "timestamp", "timestamp_ms", "date", "time"}

// maxWarnings caps per-row warnings; the rest are only counted
const maxWarnings = 10

// Options configures a CSVLoader
type Options struct {
	Location        *time.Location // zone for timestamps without an offset
	TimestampColumn string         // header name; empty = guess
	Layouts         []string       // tried before DefaultLayouts
}

// Stats summarises one load
type Stats struct {
	Rows     int  `json:"rows"`
	Loaded   int  `json:"loaded"`
	Skipped  int  `json:"skipped"`
	Resorted bool `json:"resorted"` // input was not in ascending order
}

// CSVLoader parses OHLCV tick files
type CSVLoader struct {
	opts     Options
	layouts  []string
	progress rate.Sometimes
}

// NewCSVLoader creates a new loader
func NewCSVLoader(opts Options) *CSVLoader {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	layouts := make([]string, 0, len(opts.Layouts)+len(DefaultLayouts))
	layouts = append(layouts, opts.Layouts...)
	layouts = append(layouts, DefaultLayouts...)

	return &CSVLoader{
		opts:     opts,
		layouts:  layouts,
		progress: rate.Sometimes{Interval: 2 * time.Second},
	}
}

// LoadFile reads ticks from a CSV file on disk
func (l *CSVLoader) LoadFile(ctx context.Context, path string) ([]model.Tick, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ticks, stats, err := l.Load(ctx, f)
	if err != nil {
		return nil, stats, fmt.Errorf("loading %s: %w", path, err)
	}
	return ticks, stats, nil
}

// Load parses ticks from r. Malformed rows are skipped and counted; the
// returned ticks are sorted ascending by time.
func (l *CSVLoader) Load(ctx context.Context, r io.Reader) ([]model.Tick, Stats, error) {
	// UTF-8 or UTF-16 with BOM (spreadsheet exports) all decode to UTF-8
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		stats  Stats
		ticks  []model.Tick
		layout *columnLayout
	)

	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				l.skip(&stats, line, err)
				continue
			}
			return nil, stats, fmt.Errorf("reading csv: %w", err)
		}

		if layout == nil {
			cl, isHeader, err := detectLayout(rec, l.opts.TimestampColumn)
			if err != nil {
				return nil, stats, err
			}
			layout = cl
			if isHeader {
				continue
			}
		}

		stats.Rows++
		if stats.Rows%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}

		tick, err := l.parseRow(rec, layout)
		if err != nil {
			l.skip(&stats, line, err)
			continue
		}
		ticks = append(ticks, tick)

		l.progress.Do(func() {
			log.Printf("[LOADER] DEBUG read %d rows", stats.Rows)
		})
	}

	stats.Loaded = len(ticks)
	if stats.Skipped > maxWarnings {
		log.Printf("[LOADER] WARN %d more malformed rows skipped", stats.Skipped-maxWarnings)
	}
	if len(ticks) == 0 {
		return nil, stats, ErrNoRows
	}

	if !sort.SliceIsSorted(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) }) {
		sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Time.Before(ticks[j].Time) })
		stats.Resorted = true
	}

	log.Printf("[LOADER] Loaded %d rows (%d skipped)", stats.Loaded, stats.Skipped)
	return ticks, stats, nil
}

func (l *CSVLoader) skip(stats *Stats, line int, err error) {
	stats.Skipped++
	if stats.Skipped <= maxWarnings {
		log.Printf("[LOADER] WARN skipping line %d: %v", line, err)
	}
}

func (l *CSVLoader) parseRow(rec []string, cl *columnLayout) (model.Tick, error) {
	if len(rec) <= cl.maxIndex() {
		return model.Tick{}, fmt.Errorf("expected at least %d fields, got %d", cl.maxIndex()+1, len(rec))
	}

	raw := strings.TrimSpace(rec[cl.timestamp])
	if cl.clock >= 0 {
		raw += " " + strings.TrimSpace(rec[cl.clock])
	}
	ts, err := ParseTimestamp(raw, l.layouts, l.opts.Location)
	if err != nil {
		return model.Tick{}, err
	}

	var vals [4]float64
	for i, idx := range []int{cl.open, cl.high, cl.low, cl.close} {
		if vals[i], err = parseNumber(rec[idx]); err != nil {
			return model.Tick{}, err
		}
	}
	tick := model.Tick{Time: ts, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3]}

	if cl.volume >= 0 {
		if tick.Volume, err = parseNumber(rec[cl.volume]); err != nil {
			return model.Tick{}, err
		}
	}

	if tick.High < math.Max(tick.Open, tick.Close) || tick.Low > math.Min(tick.Open, tick.Close) {
		return model.Tick{}, fmt.Errorf("inconsistent OHLC %.4f/%.4f/%.4f/%.4f", tick.Open, tick.High, tick.Low, tick.Close)
	}
	return tick, nil
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.Trim(s, `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

// ParseTimestamp tries each layout in order, then epoch seconds or
// milliseconds. Results are expressed in loc.
func ParseTimestamp(s string, layouts []string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if len(s) >= 13 {
			return time.UnixMilli(n).In(loc), nil
		}
		return time.Unix(n, 0).In(loc), nil
	}

	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
