package session

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Date is a calendar day in the exchange's wall clock
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Before reports whether d falls on an earlier day than other
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

// IsZero reports whether d is unset
func (d Date) IsZero() bool {
	return d == Date{}
}

// In returns midnight of d in loc
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalText encodes the date as YYYY-MM-DD
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a YYYY-MM-DD date
func (d *Date) UnmarshalText(text []byte) error {
	t, err := time.Parse("2006-01-02", string(text))
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", text, err)
	}
	*d = DateOf(t)
	return nil
}

// TimeOfDay is a wall-clock offset from midnight
type TimeOfDay time.Duration

// Clock builds a TimeOfDay from hour, minute and second
func Clock(hour, minute, second int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second)
}

// TimeOf returns the wall-clock time of t, ignoring DST shifts of the day
func TimeOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return Clock(h, m, s) + TimeOfDay(time.Duration(t.Nanosecond()))
}

// ParseTimeOfDay parses "15:04" or "15:04:05"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q (want HH:MM or HH:MM:SS)", s)
}

// MustParseTimeOfDay is like ParseTimeOfDay but panics on error
func MustParseTimeOfDay(s string) TimeOfDay {
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return tod
}

// Valid reports whether the offset lies within a single day
func (t TimeOfDay) Valid() bool {
	return t >= 0 && time.Duration(t) < 24*time.Hour
}

// On anchors the time of day to a date
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	v := time.Duration(t)
	return time.Date(d.Year, d.Month, d.Day,
		int(v/time.Hour), int(v%time.Hour/time.Minute), int(v%time.Minute/time.Second),
		int(v%time.Second), loc)
}

// Truncate rounds t down to a multiple of step
func (t TimeOfDay) Truncate(step time.Duration) TimeOfDay {
	if step <= 0 {
		return t
	}
	return TimeOfDay(time.Duration(t) / step * step)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// MarshalText encodes the time of day as HH:MM
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText parses HH:MM or HH:MM:SS
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	v, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// UnmarshalYAML accepts the same forms as UnmarshalText
func (t *TimeOfDay) UnmarshalYAML(node *yaml.Node) error {
	return t.UnmarshalText([]byte(node.Value))
}

// MarshalYAML encodes the time of day as a HH:MM string
func (t TimeOfDay) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// Window is an inclusive time-of-day range
type Window struct {
	Start TimeOfDay `yaml:"start" json:"start"`
	End   TimeOfDay `yaml:"end" json:"end"`
}

// Contains reports whether tod lies inside the window, both ends inclusive
func (w Window) Contains(tod TimeOfDay) bool {
	return tod >= w.Start && tod <= w.End
}

// Validate checks that both bounds are on the clock and ordered
func (w Window) Validate() error {
	if !w.Start.Valid() || !w.End.Valid() {
		return fmt.Errorf("window bounds must be within a day, got %s-%s", w.Start, w.End)
	}
	if w.End < w.Start {
		return fmt.Errorf("window end %s is before start %s", w.End, w.Start)
	}
	return nil
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// Default NSE cash session anchors used by the strategy
var (
	OpeningRangeTime = Clock(9, 25, 0)
	TradingWindow    = Window{Start: Clock(9, 30, 0), End: Clock(15, 15, 0)}
	ExitTime         = Clock(15, 15, 0)
)
