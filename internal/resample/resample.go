// Package resample turns the discrete reading window into a
// continuously moving wind vector by cubic interpolation at a lagged
// "now", for driving an animated pointer.
package resample

import (
	"context"
	"math"
	"time"

	"github.com/faceless2/anemometer/internal/monitoring"
	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/timeutil"
)

// DefaultLag is how far the interpolation point trails real time, so
// enough real samples exist on both sides to fit a curve through.
const DefaultLag = 4 * time.Second

// Source supplies the ordered sample window, satisfied by *rose.Rose.
type Source interface {
	Samples() []rose.Sample
}

// Frame is one interpolated output: the wind vector, its magnitude,
// and the blended band color for that magnitude.
type Frame struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Speed float64 `json:"speed"`
	Color string  `json:"color"`
}

// FrameFunc consumes interpolated frames, once per tick.
type FrameFunc func(Frame)

// Sampler interpolates the sample window at a lagged clock.
type Sampler struct {
	src    Source
	grid   rose.Grid
	colors []string
	lag    time.Duration
	clock  timeutil.Clock
	frame  FrameFunc
}

// Option adjusts a Sampler at construction time.
type Option func(*Sampler)

// WithLag overrides the default interpolation lag.
func WithLag(d time.Duration) Option {
	return func(s *Sampler) { s.lag = d }
}

// WithClock substitutes the wall clock for tests.
func WithClock(c timeutil.Clock) Option {
	return func(s *Sampler) { s.clock = c }
}

// New creates a Sampler over src. colors holds one color per band of
// grid, used for magnitude blending; frame receives the output.
func New(src Source, grid rose.Grid, colors []string, frame FrameFunc, opts ...Option) *Sampler {
	s := &Sampler{
		src:    src,
		grid:   grid,
		colors: colors,
		lag:    DefaultLag,
		clock:  timeutil.RealClock{},
		frame:  frame,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run emits frames at the given interval until ctx is cancelled. Each
// tick is guarded: a panic in one frame is logged and the next tick
// proceeds, so a single bad frame never stops the animation.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			s.tick(now)
		}
	}
}

func (s *Sampler) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("resample: frame skipped: %v", r)
		}
	}()
	if f, ok := s.Step(now); ok {
		s.frame(f)
	}
}

// Step computes the frame for the given wall time. It returns false
// when the window has too few qualifying samples to interpolate,
// which is silent by design.
func (s *Sampler) Step(now time.Time) (Frame, bool) {
	samples := s.src.Samples()
	if len(samples) < 2 {
		return Frame{}, false
	}
	lagged := now.UnixMilli() - s.lag.Milliseconds()

	// Latest sample at or before the lagged now.
	i := -1
	for j := range samples {
		if samples[j].When <= lagged {
			i = j
		} else {
			break
		}
	}
	if i < 0 {
		return Frame{}, false
	}

	// Neighbors for the cubic, clamped by repeating the end samples.
	p1 := samples[i]
	p0 := samples[clampIndex(i-1, len(samples))]
	p2 := samples[clampIndex(i+1, len(samples))]
	p3 := samples[clampIndex(i+2, len(samples))]

	t := 0.0
	if p2.When > p1.When {
		t = float64(lagged-p1.When) / float64(p2.When-p1.When)
	}

	x := catmullRom(t, p0.X, p1.X, p2.X, p3.X)
	y := catmullRom(t, p0.Y, p1.Y, p2.Y, p3.Y)
	speed := math.Hypot(x, y)
	return Frame{X: x, Y: y, Speed: speed, Color: s.colorFor(speed)}, true
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// catmullRom evaluates the uniform Catmull-Rom cubic through p0..p3 at
// parameter t in [0,1] between p1 and p2.
func catmullRom(t, p0, p1, p2, p3 float64) float64 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * (2*p1 +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}

// colorFor blends between adjacent band colors in proportion to where
// the speed sits within its band interval.
func (s *Sampler) colorFor(speed float64) string {
	if len(s.colors) == 0 {
		return rose.DefaultBandColor
	}
	band := len(s.grid.Bands) - 1
	for i, b := range s.grid.Bands {
		if speed < b {
			band = i
			break
		}
	}
	lower := 0.0
	if band > 0 {
		lower = s.grid.Bands[band-1]
	}
	upper := s.grid.Bands[band]
	frac := 0.0
	if upper > lower {
		frac = (speed - lower) / (upper - lower)
	}
	next := clampIndex(band+1, len(s.colors))
	return BlendColors(s.colors[clampIndex(band, len(s.colors))], s.colors[next], frac)
}
