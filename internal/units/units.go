// Package units holds the pure conversion helpers shared by the evaluation
// and dispatch stages: epoch-to-wall-clock rendering and per-country
// temperature display units.
package units

import (
	"fmt"
	"math"
	"time"
)

// ClockTime is a local wall-clock rendering of an epoch timestamp.
type ClockTime struct {
	Hour12 int
	Minute int
	AMPM   string
	Day    int
}

// String formats the time as it appears in notification bodies, e.g.
// "9:05 AM".
func (c ClockTime) String() string {
	return fmt.Sprintf("%d:%02d %s", c.Hour12, c.Minute, c.AMPM)
}

// EpochToClock applies a fractional hour offset to an epoch and returns the
// resulting wall-clock fields. Noon and midnight render as 12.
func EpochToClock(epoch int64, offsetHours float64) ClockTime {
	shift := time.Duration(offsetHours * float64(time.Hour))
	t := time.Unix(epoch, 0).UTC().Add(shift)

	ampm := "AM"
	if t.Hour() >= 12 {
		ampm = "PM"
	}
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}

	return ClockTime{
		Hour12: hour,
		Minute: t.Minute(),
		AMPM:   ampm,
		Day:    t.Day(),
	}
}

// ConvertTempByCountry converts a provider temperature (Fahrenheit, the
// provider's native unit) into the country's display value: Celsius rounded
// to the nearest integer everywhere except the US, where Fahrenheit is kept
// and truncated toward zero.
func ConvertTempByCountry(country string, fahrenheit float64) int {
	if country != "US" {
		return int(math.Round((fahrenheit - 32) / 1.8))
	}
	return int(fahrenheit)
}

// ConvertUnitByCountry returns the display unit suffix matching
// ConvertTempByCountry.
func ConvertUnitByCountry(country string) string {
	if country != "US" {
		return "˚C"
	}
	return "˚F"
}
