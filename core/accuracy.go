package core

import "fmt"

// AccuracyClass buckets a provider accuracy radius for display.
type AccuracyClass int

const (
	AccuracyHigh AccuracyClass = iota
	AccuracyMedium
	AccuracyLow
)

func (c AccuracyClass) String() string {
	switch c {
	case AccuracyHigh:
		return "high"
	case AccuracyMedium:
		return "medium"
	case AccuracyLow:
		return "low"
	default:
		return "unknown"
	}
}

// Thresholds are the inclusive upper bounds, in metres, of the High and
// Medium classes. Anything above Medium (or NaN) is Low.
type Thresholds struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// The direction indicator and the GPS data panel classify with different
// bounds; both are kept as separate defaults.
var (
	IndicatorThresholds = Thresholds{High: 5, Medium: 15}
	PanelThresholds     = Thresholds{High: 5, Medium: 10}
)

// Classify returns the accuracy class of the given radius.
func (t Thresholds) Classify(accuracy float64) AccuracyClass {
	switch {
	case accuracy <= t.High:
		return AccuracyHigh
	case accuracy <= t.Medium:
		return AccuracyMedium
	default:
		return AccuracyLow
	}
}

// Validate checks 0 <= High <= Medium.
func (t Thresholds) Validate() error {
	if t.High < 0 {
		return fmt.Errorf("high threshold must be non-negative, got %v", t.High)
	}
	if t.Medium < t.High {
		return fmt.Errorf("medium threshold %v must not be below high threshold %v", t.Medium, t.High)
	}
	return nil
}
