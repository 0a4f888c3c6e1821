package rose

import "math"

// millisecondThreshold separates unix-seconds timestamps from
// unix-milliseconds timestamps. Anything below it is treated as seconds
// and scaled up.
const millisecondThreshold = 1e12

// Reading is a single wind observation: direction in degrees [0,360),
// speed in the instance's display unit, and timestamp in milliseconds
// since the epoch. Direction is meaningless at zero speed and is
// normalized to 0.
type Reading struct {
	Direction float64 `json:"dir"`
	Speed     float64 `json:"speed"`
	When      int64   `json:"when"`
}

// NormalizeDirection maps any angle in degrees onto [0,360).
func NormalizeDirection(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// NormalizeTimestamp scales unix-seconds values to milliseconds. The
// cutoff is heuristic: 1e12 ms is September 2001, 1e12 s is the year
// 33658, so no plausible reading is misclassified.
func NormalizeTimestamp(when int64) int64 {
	if when > 0 && when < millisecondThreshold {
		return when * 1000
	}
	return when
}

// NewReading builds a normalized Reading from raw transport values.
func NewReading(dir, speed float64, when int64) Reading {
	if speed < 0 {
		speed = 0
	}
	if speed == 0 {
		dir = 0
	} else {
		dir = NormalizeDirection(dir)
	}
	return Reading{Direction: dir, Speed: speed, When: NormalizeTimestamp(when)}
}

// Vector returns the reading as a Cartesian pair with north up:
// x = sin(dir)*speed, y = -cos(dir)*speed.
func (r Reading) Vector() (x, y float64) {
	rad := r.Direction * math.Pi / 180
	return math.Sin(rad) * r.Speed, -math.Cos(rad) * r.Speed
}
