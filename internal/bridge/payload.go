package bridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/signalsfoundry/target-compass/model"
)

// FixFieldCount is the exact number of '|' separated fields in a fix payload.
const FixFieldCount = 6

// FormatFix renders f in the wire format the location plugin emits.
func FormatFix(f model.Fix) string {
	return fmt.Sprintf("%.7f|%.7f|%.1f|%.1f|%.1f|%.1f",
		f.Latitude, f.Longitude, f.Accuracy, f.Altitude, f.Speed, f.Bearing)
}

// Status messages the location plugin reports when updates begin and end.
const (
	StatusStarted = "started"
	StatusStopped = "stopped"
)

// FormatStatus renders a status payload.
func FormatStatus(message string, code int) string {
	return message + "|" + strconv.Itoa(code)
}

// StatusMessage returns the first segment of a status payload.
func StatusMessage(payload string) string {
	msg, _, _ := strings.Cut(payload, "|")
	return msg
}
