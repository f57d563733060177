package strategy

import (
	"orb/pkg/model"
)

// Detector defines the interface for per-bar signal generators
type Detector interface {
	// Name returns the strategy name
	Name() string

	// Description returns a brief description
	Description() string

	// Detect annotates bars with signals and returns the per-day references
	Detect(bars []model.Bar) ([]model.SignaledBar, []model.DaySignalState)
}

var _ Detector = (*ORBDetector)(nil)

// CountSignals returns the number of bars carrying a nonzero signal
func CountSignals(bars []model.SignaledBar) int {
	n := 0
	for _, b := range bars {
		if b.Signal != model.SignalFlat {
			n++
		}
	}
	return n
}
