package strategy

import (
	"testing"
	"time"

	"orb/internal/session"
	"orb/pkg/model"
)

var day1 = session.Date{Year: 2024, Month: time.January, Day: 15}
var day2 = session.Date{Year: 2024, Month: time.January, Day: 16}

func bar(d session.Date, hh, mm int, o, h, l, c float64) model.Bar {
	tod := session.Clock(hh, mm, 0)
	return model.Bar{
		Time:      tod.On(d, time.UTC),
		Date:      d,
		TimeOfDay: tod,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    100,
	}
}

func TestClassifyOpeningBar(t *testing.T) {
	tests := []struct {
		name    string
		bar     model.Bar
		wantTyp model.CandleType
		wantVal float64
	}{
		{
			name:    "Bullish uses high",
			bar:     bar(day1, 9, 25, 100, 106, 99, 105),
			wantTyp: model.CandleBullish,
			wantVal: 106,
		},
		{
			name:    "Bearish uses low",
			bar:     bar(day1, 9, 25, 105, 106, 98, 100),
			wantTyp: model.CandleBearish,
			wantVal: 98,
		},
		{
			name:    "Flat bar is bearish",
			bar:     bar(day1, 9, 25, 100, 101, 99, 100),
			wantTyp: model.CandleBearish,
			wantVal: 99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := ClassifyOpeningBar(tt.bar)
			if ref.CandleType != tt.wantTyp {
				t.Errorf("Expected %s, got %s", tt.wantTyp, ref.CandleType)
			}
			if ref.CandleVal != tt.wantVal {
				t.Errorf("Expected candle_val %.2f, got %.2f", tt.wantVal, ref.CandleVal)
			}
			if ref.Date != day1 {
				t.Errorf("Expected date %s, got %s", day1, ref.Date)
			}
		})
	}
}

func TestBreakoutSignal(t *testing.T) {
	bull := model.DaySignalState{CandleType: model.CandleBullish, CandleVal: 106}
	bear := model.DaySignalState{CandleType: model.CandleBearish, CandleVal: 98}

	cases := []struct {
		ref   model.DaySignalState
		close float64
		want  model.Signal
	}{
		{bull, 107, model.SignalLong},
		{bull, 106, model.SignalFlat},
		{bull, 90, model.SignalFlat},
		{bear, 97, model.SignalShort},
		{bear, 98, model.SignalFlat},
		{bear, 120, model.SignalFlat},
		{model.DaySignalState{}, 1, model.SignalFlat},
	}
	for _, c := range cases {
		if got := BreakoutSignal(c.ref, c.close); got != c.want {
			t.Errorf("BreakoutSignal(%s %.0f, %.0f): expected %v, got %v",
				c.ref.CandleType, c.ref.CandleVal, c.close, c.want, got)
		}
	}
}

func TestDetect_StateMachine(t *testing.T) {
	d := NewORBDetector(DefaultORBConfig())
	bars := []model.Bar{
		bar(day1, 9, 15, 100, 110, 90, 108), // before opening bar: would break out but must stay 0
		bar(day1, 9, 20, 100, 101, 99, 100),
		bar(day1, 9, 25, 100, 106, 99, 105), // bullish, ref = 106
		bar(day1, 9, 30, 105, 106, 104, 105.5),
		bar(day1, 9, 35, 105, 108, 105, 107), // breakout
		bar(day1, 9, 40, 107, 107, 100, 101), // back inside
		bar(day1, 9, 45, 101, 112, 101, 111), // breaks again
	}

	signaled, days := d.Detect(bars)
	if len(signaled) != len(bars) {
		t.Fatalf("Expected %d signaled bars, got %d", len(bars), len(signaled))
	}
	if len(days) != 1 {
		t.Fatalf("Expected 1 day reference, got %d", len(days))
	}
	if days[0].CandleType != model.CandleBullish || days[0].CandleVal != 106 {
		t.Errorf("Unexpected day reference: %+v", days[0])
	}

	wantSignals := []model.Signal{0, 0, 0, 0, 1, 0, 1}
	wantStates := []model.DayState{
		model.AwaitingOpen, model.AwaitingOpen, model.Armed, model.Armed,
		model.Triggered, model.Triggered, model.Triggered,
	}
	for i, sb := range signaled {
		if sb.Signal != wantSignals[i] {
			t.Errorf("Bar %d (%s): expected signal %d, got %d", i, sb.TimeOfDay, wantSignals[i], sb.Signal)
		}
		if sb.State != wantStates[i] {
			t.Errorf("Bar %d (%s): expected state %s, got %s", i, sb.TimeOfDay, wantStates[i], sb.State)
		}
	}

	for i := 0; i < 2; i++ {
		if signaled[i].HasReference || signaled[i].CandleType != model.CandleNone || signaled[i].CandleVal != 0 {
			t.Errorf("Bar %d before opening bar should carry no reference: %+v", i, signaled[i])
		}
	}

	// Reference never changes for the rest of the day
	for i := 2; i < len(signaled); i++ {
		if signaled[i].CandleType != model.CandleBullish || signaled[i].CandleVal != 106 {
			t.Errorf("Bar %d: reference changed to %s %.2f", i, signaled[i].CandleType, signaled[i].CandleVal)
		}
	}
}

func TestDetect_BearishDay(t *testing.T) {
	d := NewORBDetector(DefaultORBConfig())
	bars := []model.Bar{
		bar(day1, 9, 25, 105, 106, 98, 100), // bearish, ref = 98
		bar(day1, 9, 30, 100, 100, 97, 97.5),
		bar(day1, 9, 35, 97.5, 99, 97, 98.5),
	}

	signaled, _ := d.Detect(bars)
	want := []model.Signal{0, -1, 0}
	for i, sb := range signaled {
		if sb.Signal != want[i] {
			t.Errorf("Bar %d: expected signal %d, got %d", i, want[i], sb.Signal)
		}
	}
}

func TestDetect_FlatOpeningBar(t *testing.T) {
	d := NewORBDetector(DefaultORBConfig())
	bars := []model.Bar{
		bar(day1, 9, 25, 100, 101, 99, 100),
		bar(day1, 9, 30, 100, 101, 98, 98.5),
		bar(day1, 9, 35, 100, 102, 100, 101.5),
	}

	signaled, days := d.Detect(bars)
	if len(days) != 1 || days[0].CandleType != model.CandleBearish {
		t.Fatalf("Expected flat opening bar to be bearish, got %+v", days)
	}
	if signaled[1].Signal != model.SignalShort {
		t.Errorf("Expected short signal below 99, got %d", signaled[1].Signal)
	}
	if signaled[2].Signal != model.SignalFlat {
		t.Errorf("Expected no long signal on a bearish day, got %d", signaled[2].Signal)
	}
}

func TestDetect_MissingOpeningBarIsInert(t *testing.T) {
	d := NewORBDetector(DefaultORBConfig())
	bars := []model.Bar{
		bar(day1, 9, 20, 100, 101, 99, 100),
		bar(day1, 9, 30, 100, 150, 50, 140),
		bar(day1, 9, 35, 140, 150, 10, 20),
	}

	signaled, days := d.Detect(bars)
	if len(days) != 0 {
		t.Errorf("Expected no day reference, got %d", len(days))
	}
	for i, sb := range signaled {
		if sb.Signal != model.SignalFlat || sb.State != model.AwaitingOpen || sb.HasReference {
			t.Errorf("Bar %d should be inert, got %+v", i, sb)
		}
	}
}

func TestDetect_ResetsAtDayRollover(t *testing.T) {
	d := NewORBDetector(DefaultORBConfig())
	bars := []model.Bar{
		bar(day1, 9, 25, 100, 106, 99, 105), // bullish 106
		bar(day1, 9, 30, 105, 110, 105, 109),
		bar(day2, 9, 15, 100, 120, 80, 115), // new day, no reference yet
		bar(day2, 9, 25, 110, 111, 95, 100), // bearish 95
		bar(day2, 9, 30, 100, 100, 90, 94),
		bar(day2, 9, 35, 94, 120, 94, 119),
	}

	signaled, days := d.Detect(bars)
	if len(days) != 2 {
		t.Fatalf("Expected 2 day references, got %d", len(days))
	}
	if days[1].Date != day2 || days[1].CandleType != model.CandleBearish || days[1].CandleVal != 95 {
		t.Errorf("Unexpected second day reference: %+v", days[1])
	}

	want := []model.Signal{0, 1, 0, 0, -1, 0}
	for i, sb := range signaled {
		if sb.Signal != want[i] {
			t.Errorf("Bar %d: expected signal %d, got %d", i, want[i], sb.Signal)
		}
	}
	if signaled[2].HasReference {
		t.Error("Expected reference to reset on the new day")
	}
}

func TestDetect_CustomOpeningTime(t *testing.T) {
	d := NewORBDetector(ORBConfig{OpeningRangeTime: session.Clock(9, 15, 0)})
	bars := []model.Bar{
		bar(day1, 9, 15, 100, 102, 99, 101), // bullish 102
		bar(day1, 9, 20, 101, 103, 101, 102.5),
	}

	signaled, _ := d.Detect(bars)
	if signaled[1].Signal != model.SignalLong {
		t.Errorf("Expected long signal, got %d", signaled[1].Signal)
	}
	if CountSignals(signaled) != 1 {
		t.Errorf("Expected 1 signal, got %d", CountSignals(signaled))
	}
}

func TestDetect_DoesNotModifyInput(t *testing.T) {
	d := NewORBDetector(DefaultORBConfig())
	bars := []model.Bar{bar(day1, 9, 25, 100, 106, 99, 105)}
	orig := bars[0]

	d.Detect(bars)
	if bars[0] != orig {
		t.Errorf("Input bar modified: %+v", bars[0])
	}
	if d.Name() != "orb" {
		t.Errorf("Expected name orb, got %s", d.Name())
	}
}
