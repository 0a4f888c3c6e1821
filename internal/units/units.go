// Package units provides shared constants and conversion for wind
// speed units. Instruments deliver meters per second; readings are
// converted to the configured display unit at ingest, and ToMPS goes
// back the other way where a formula wants SI input.
package units

import "math"

// Unit constants
const (
	MPS   = "mps"
	Knots = "kn"
	MPH   = "mph"
	KMPH  = "kmph"
	KPH   = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, Knots, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, kn, mph, kmph, kph"
}

// ConvertSpeed converts a speed from meters per second to the target units
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedMPS
	case Knots:
		return speedMPS * 1.9438444924406
	case MPH:
		return speedMPS * 2.2369362920544
	case KMPH, KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// ToMPS converts a speed in the given units back to meters per second
func ToMPS(speed float64, sourceUnits string) float64 {
	switch sourceUnits {
	case MPS:
		return speed
	case Knots:
		return speed / 1.9438444924406
	case MPH:
		return speed / 2.2369362920544
	case KMPH, KPH:
		return speed / 3.6
	default:
		return speed
	}
}

// beaufortUpper holds the upper bound in m/s of each Beaufort force
// number 0..11; force 12 is unbounded.
var beaufortUpper = []float64{
	0.5, 1.5, 3.3, 5.5, 7.9, 10.7, 13.8, 17.1, 20.7, 24.4, 28.4, 32.6,
}

// Beaufort returns the Beaufort force number (0-12) for a wind speed
// in m/s.
func Beaufort(speedMPS float64) int {
	s := math.Max(speedMPS, 0)
	for force, upper := range beaufortUpper {
		if s < upper {
			return force
		}
	}
	return 12
}
