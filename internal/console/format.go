// Package console renders the navigation state as a terminal status panel.
package console

import (
	"fmt"
	"math"

	"github.com/fatih/color"

	"github.com/signalsfoundry/target-compass/core"
)

var (
	faint = color.New(color.Faint)
	bold  = color.New(color.Bold)
)

// FormatDistance renders metres below one kilometre and kilometres above.
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.1f m", meters)
	}
	return fmt.Sprintf("%.2f km", meters/1000)
}

// ClassColor returns the display colour of an accuracy class.
func ClassColor(c core.AccuracyClass) *color.Color {
	switch c {
	case core.AccuracyHigh:
		return color.New(color.FgGreen)
	case core.AccuracyMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

// FormatAccuracy renders an accuracy radius coloured by t.
func FormatAccuracy(accuracy float64, t core.Thresholds) string {
	return ClassColor(t.Classify(accuracy)).Sprintf("%.1f m", accuracy)
}

var arrows = [...]string{"↑", "↗", "→", "↘", "↓", "↙", "←", "↖"}

// Arrow picks the eight-way arrow closest to a relative bearing.
func Arrow(relative float64) string {
	deg := math.Mod(math.Mod(relative, 360)+360, 360)
	return arrows[int(math.Round(deg/45))%len(arrows)]
}
