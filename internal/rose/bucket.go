package rose

import (
	"fmt"
	"math"
	"strconv"
)

// MaxBandSpeed is the sentinel upper boundary appended to every band
// set. It closes the otherwise unbounded top band; no real wind speed
// approaches it.
const MaxBandSpeed = 200

// Bucket identifies an (arc, band) cell of the grid as a single
// integer, band*numArcs+arc. The zero-speed sentinel is -1.
type Bucket int

// Sentinel is the bucket for zero-speed readings, where direction
// carries no information.
const Sentinel Bucket = -1

// Grid fixes the classification geometry for one rose: the number of
// equal direction arcs and the speed band boundaries.
//
// Bands are strictly increasing and right-open: band i covers
// [Bands[i-1], Bands[i]), with band 0 starting at zero. The final
// element is always MaxBandSpeed.
type Grid struct {
	NumArcs  int
	ArcWidth float64
	Bands    []float64
}

// NewGrid builds a Grid from a requested arc width in degrees and a
// set of band boundaries. The requested width is a lower bound on
// granularity: the arc count is rounded up so the arcs evenly divide
// the circle, so the actual width may be smaller.
func NewGrid(requestedArcDegrees float64, bands []float64) (Grid, error) {
	if requestedArcDegrees <= 0 || requestedArcDegrees > 360 {
		return Grid{}, fmt.Errorf("invalid arc width %g: must be in (0,360]", requestedArcDegrees)
	}
	numArcs := int(math.Ceil(360 / requestedArcDegrees))
	if err := validateBands(bands); err != nil {
		return Grid{}, err
	}
	return Grid{
		NumArcs:  numArcs,
		ArcWidth: 360 / float64(numArcs),
		Bands:    bands,
	}, nil
}

// NewGridArcs builds a Grid from an exact arc count, as carried by the
// history protocol.
func NewGridArcs(numArcs int, bands []float64) (Grid, error) {
	if numArcs < 1 || numArcs > 360 {
		return Grid{}, fmt.Errorf("invalid arc count %d", numArcs)
	}
	if err := validateBands(bands); err != nil {
		return Grid{}, err
	}
	return Grid{
		NumArcs:  numArcs,
		ArcWidth: 360 / float64(numArcs),
		Bands:    bands,
	}, nil
}

func validateBands(bands []float64) error {
	if len(bands) == 0 {
		return fmt.Errorf("no band boundaries")
	}
	prev := 0.0
	for i, b := range bands {
		if b <= prev {
			return fmt.Errorf("band boundary %d (%g) not greater than previous (%g)", i, b, prev)
		}
		prev = b
	}
	if bands[len(bands)-1] != MaxBandSpeed {
		return fmt.Errorf("final band boundary is %g, want sentinel %d", bands[len(bands)-1], MaxBandSpeed)
	}
	return nil
}

// NumBands returns the number of speed bands, including the top
// sentinel band.
func (g Grid) NumBands() int {
	return len(g.Bands)
}

// Classify maps a direction/speed pair onto a bucket. Zero speed
// always lands in the sentinel bucket. A direction exactly between two
// arcs rounds to the higher arc index; a speed exactly on a boundary
// belongs to the band above it.
func (g Grid) Classify(dir, speed float64) Bucket {
	if speed <= 0 {
		return Sentinel
	}
	dir = NormalizeDirection(dir)
	arc := int(math.Round(dir/g.ArcWidth)) % g.NumArcs
	band := len(g.Bands) - 1
	for i, b := range g.Bands {
		if speed < b {
			band = i
			break
		}
	}
	return Bucket(band*g.NumArcs + arc)
}

// Arc returns the arc index of a non-sentinel bucket.
func (g Grid) Arc(b Bucket) int {
	return int(b) % g.NumArcs
}

// Band returns the band index of a non-sentinel bucket.
func (g Grid) Band(b Bucket) int {
	return int(b) / g.NumArcs
}

// Valid reports whether b is the sentinel or lies within the grid.
func (g Grid) Valid(b Bucket) bool {
	return b == Sentinel || (b >= 0 && g.Band(b) < len(g.Bands))
}

// Midpoint reconstructs the representative direction and speed for a
// bucket: the angular center of its arc and the midpoint of its band
// interval. The sentinel maps to (0, 0). Reconstruction is lossy by
// design; it is all the compact history format retains.
func (g Grid) Midpoint(b Bucket) (dir, speed float64) {
	if b == Sentinel {
		return 0, 0
	}
	arc, band := g.Arc(b), g.Band(b)
	dir = NormalizeDirection((float64(arc) + 0.5) * g.ArcWidth)
	lower := 0.0
	if band > 0 {
		lower = g.Bands[band-1]
	}
	return dir, (g.Bands[band] + lower) / 2
}

// StyleSource is an external key-value lookup of styling metadata. A
// key "speed<n>" (n in 1..199) being present declares a band boundary
// at n; its value is the band's color. "speedmax" colors the top band.
type StyleSource interface {
	Value(key string) (string, bool)
}

// maxSpeedKeys bounds the threshold probe. MaxBandSpeed itself is
// never a named threshold; it is always appended as the sentinel.
const maxSpeedKeys = 199

// DefaultBandColor is used for any band whose color the style source
// does not define, including an unset "speedmax".
const DefaultBandColor = "#999999"

// DiscoverBands probes src for named speed thresholds and returns the
// boundary set with the sentinel appended. The probe order makes the
// result monotonically increasing by construction. No thresholds at
// all is a valid degenerate configuration: the sentinel alone gives a
// one-band rose.
func DiscoverBands(src StyleSource) []float64 {
	var bands []float64
	for i := 1; i <= maxSpeedKeys; i++ {
		if _, ok := src.Value("speed" + strconv.Itoa(i)); ok {
			bands = append(bands, float64(i))
		}
	}
	return append(bands, MaxBandSpeed)
}

// DiscoverColors returns one color per band from the same keys the
// boundaries were discovered under. Band i takes the color of its
// upper boundary's key; the top band uses "speedmax".
func DiscoverColors(src StyleSource, bands []float64) []string {
	colors := make([]string, len(bands))
	for i, b := range bands {
		key := "speedmax"
		if b < MaxBandSpeed {
			key = "speed" + strconv.Itoa(int(b))
		}
		if c, ok := src.Value(key); ok {
			colors[i] = c
		} else {
			colors[i] = DefaultBandColor
		}
	}
	return colors
}
