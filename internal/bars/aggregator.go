// Package bars resamples raw ticks into fixed-interval OHLCV bars.
package bars

import (
	"errors"
	"fmt"
	"time"

	"orb/internal/session"
	"orb/pkg/model"
)

var (
	// ErrInvalidInterval is returned for a zero or negative bar interval
	ErrInvalidInterval = errors.New("bar interval must be positive")
	// ErrUnsortedTicks is returned when a tick precedes its predecessor
	ErrUnsortedTicks = errors.New("ticks must be sorted ascending by time")
)

// DefaultInterval is the bar width used when none is configured
const DefaultInterval = 5 * time.Minute

// BucketStart returns the start of the wall-clock interval containing t.
// Buckets are aligned to local midnight, so a 5m interval yields :00, :05, :10, ...
func BucketStart(t time.Time, interval time.Duration) time.Time {
	date := session.DateOf(t)
	return session.TimeOf(t).Truncate(interval).On(date, t.Location())
}

// Aggregate partitions ticks into left-closed intervals and builds one bar per
// non-empty interval. Empty intervals produce no bar.
func Aggregate(ticks []model.Tick, interval time.Duration) ([]model.Bar, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	out := make([]model.Bar, 0, estimateBars(ticks, interval))
	if len(ticks) == 0 {
		return out, nil
	}

	var cur *model.Bar
	for i, tk := range ticks {
		if i > 0 && tk.Time.Before(ticks[i-1].Time) {
			return nil, fmt.Errorf("%w: tick %d at %s after %s",
				ErrUnsortedTicks, i, tk.Time.Format(time.RFC3339), ticks[i-1].Time.Format(time.RFC3339))
		}

		start := BucketStart(tk.Time, interval)
		if cur != nil && cur.Time.Equal(start) {
			if tk.High > cur.High {
				cur.High = tk.High
			}
			if tk.Low < cur.Low {
				cur.Low = tk.Low
			}
			cur.Close = tk.Close
			cur.Volume += tk.Volume
			continue
		}

		out = append(out, model.Bar{
			Time:      start,
			Date:      session.DateOf(start),
			TimeOfDay: session.TimeOf(start),
			Open:      tk.Open,
			High:      tk.High,
			Low:       tk.Low,
			Close:     tk.Close,
			Volume:    tk.Volume,
		})
		cur = &out[len(out)-1]
	}

	return out, nil
}

func estimateBars(ticks []model.Tick, interval time.Duration) int {
	if len(ticks) < 2 {
		return len(ticks)
	}
	span := ticks[len(ticks)-1].Time.Sub(ticks[0].Time)
	n := int(span/interval) + 1
	if n > len(ticks) || n < 0 {
		return len(ticks)
	}
	return n
}
