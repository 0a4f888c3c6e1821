// Package rose maintains a windowed wind-rose histogram: a bounded,
// time-ordered window of wind readings bucketed by direction arc and
// speed band, with derived per-arc frequencies and a quantized radial
// scale for rendering.
package rose

import (
	"fmt"
	"math"
	"sync"

	"github.com/faceless2/anemometer/internal/timeutil"
)

// Config bounds the reading window and tunes the frequency scale.
// Zero values for the caps mean unbounded.
type Config struct {
	// MaxDataCount caps the number of retained readings.
	MaxDataCount int
	// MaxDataAgeMs caps the age of the oldest retained reading,
	// measured against the wall clock at insertion time.
	MaxDataAgeMs int64

	// FreqMin and FreqMax clamp the maximum arc frequency before
	// quantization; FreqStep is the guide spacing in percent.
	FreqMin  float64
	FreqMax  float64
	FreqStep float64
}

// Defaults for the frequency scale when the config leaves them zero.
const (
	DefaultFreqMax  = 1.0
	DefaultFreqStep = 5.0
)

// Renderer receives redraw signals from the aggregator. Wedges are
// pushed on every insertion; the scale only when the quantized step
// count changes, so guide redraws are debounced.
type Renderer interface {
	RenderWedges([]Wedge)
	RenderScale(steps int)
}

type entry struct {
	Reading
	bucket Bucket
}

// Rose is a windowed histogram aggregator. The time-ordered queue is
// the authoritative store of readings; buckets hold only counts, and
// each queued reading remembers its bucket so eviction never has to
// reclassify by scanning.
//
// A Rose is safe for concurrent use. Each instance is fully
// independent; a process may run any number of them.
type Rose struct {
	mu    sync.Mutex
	grid  Grid
	cfg   Config
	clock timeutil.Clock

	queue     []entry
	counts    []int // NumArcs*NumBands, indexed by bucket
	zeroCount int   // sentinel bucket

	arcFreq  []float64
	maxFreq  float64
	minFreq  float64
	steps    int
	renderer Renderer

	backfilling bool
}

// Option adjusts a Rose at construction time.
type Option func(*Rose)

// WithClock substitutes the wall clock, for tests driving age
// eviction manually.
func WithClock(c timeutil.Clock) Option {
	return func(r *Rose) { r.clock = c }
}

// WithRenderer attaches a renderer to receive redraw signals.
func WithRenderer(rr Renderer) Option {
	return func(r *Rose) { r.renderer = rr }
}

// New creates an empty aggregator over the given grid.
func New(grid Grid, cfg Config, opts ...Option) *Rose {
	if cfg.FreqMax <= 0 {
		cfg.FreqMax = DefaultFreqMax
	}
	if cfg.FreqStep <= 0 {
		cfg.FreqStep = DefaultFreqStep
	}
	r := &Rose{
		grid:    grid,
		cfg:     cfg,
		clock:   timeutil.RealClock{},
		counts:  make([]int, grid.NumArcs*grid.NumBands()),
		arcFreq: make([]float64, grid.NumArcs),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Grid returns the classification geometry.
func (r *Rose) Grid() Grid { return r.grid }

// Insert ingests one reading. It normalizes the inputs, keeps the
// queue timestamp-ordered, silently discards exact duplicates, applies
// the window caps, and recomputes the derived frequency state. It
// returns false when the reading was dropped (duplicate, or a bulk
// backfill is in progress).
//
// Insert never blocks beyond the instance lock and is safe to call
// from any transport event handler.
func (r *Rose) Insert(dir, speed float64, when int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backfilling {
		// Live readings arriving mid-backfill would interleave with
		// historical state; drop them rather than queue them.
		return false
	}
	return r.insertLocked(dir, speed, when)
}

// BackfillInsert ingests one reading during a bulk history decode. It
// is only valid between BeginBackfill and EndBackfill.
func (r *Rose) BackfillInsert(dir, speed float64, when int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.backfilling {
		return false
	}
	return r.insertLocked(dir, speed, when)
}

// BeginBackfill marks the start of a bulk decode. While set, direct
// Insert calls are dropped. Returns an error if a backfill is already
// in progress.
func (r *Rose) BeginBackfill() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backfilling {
		return fmt.Errorf("backfill already in progress")
	}
	r.backfilling = true
	return nil
}

// EndBackfill clears the backfill flag.
func (r *Rose) EndBackfill() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backfilling = false
}

func (r *Rose) insertLocked(dir, speed float64, when int64) bool {
	rd := NewReading(dir, speed, when)

	// Walk backward from the tail while the predecessor is not
	// strictly older. Near-simultaneous samples cluster at the tail,
	// so the scan is bounded by the stream's out-of-order-ness, not
	// the queue length.
	i := len(r.queue) - 1
	for i >= 0 && r.queue[i].When >= rd.When {
		if r.queue[i].Reading == rd {
			return false
		}
		i--
	}

	b := r.grid.Classify(rd.Direction, rd.Speed)
	e := entry{Reading: rd, bucket: b}
	r.queue = append(r.queue, entry{})
	copy(r.queue[i+2:], r.queue[i+1:])
	r.queue[i+1] = e
	r.addCount(b, 1)

	r.evictLocked()
	r.recomputeLocked()
	return true
}

func (r *Rose) addCount(b Bucket, delta int) {
	if b == Sentinel {
		r.zeroCount += delta
	} else {
		r.counts[b] += delta
	}
}

// evictLocked pops the oldest queue entry while either cap is
// exceeded, giving the count back to the entry's bucket.
func (r *Rose) evictLocked() {
	now := r.clock.Now().UnixMilli()
	for len(r.queue) > 0 {
		over := r.cfg.MaxDataCount > 0 && len(r.queue) > r.cfg.MaxDataCount
		stale := r.cfg.MaxDataAgeMs > 0 && now-r.queue[0].When > r.cfg.MaxDataAgeMs
		if !over && !stale {
			break
		}
		r.addCount(r.queue[0].bucket, -1)
		r.queue = r.queue[1:]
	}
}

// recomputeLocked rebuilds the per-arc frequencies and the quantized
// radial scale, and signals the renderer.
func (r *Rose) recomputeLocked() {
	total := len(r.queue)
	r.maxFreq, r.minFreq = 0, 0
	for arc := 0; arc < r.grid.NumArcs; arc++ {
		n := 0
		for band := 0; band < r.grid.NumBands(); band++ {
			n += r.counts[band*r.grid.NumArcs+arc]
		}
		f := 0.0
		if total > 0 {
			f = float64(n) / float64(total)
		}
		r.arcFreq[arc] = f
		if arc == 0 || f < r.minFreq {
			r.minFreq = f
		}
		if f > r.maxFreq {
			r.maxFreq = f
		}
	}

	if r.maxFreq > 1 {
		// More readings attributed to arcs than exist in the window:
		// a classification or eviction bug. Continuing would render
		// silently wrong frequencies.
		panic(fmt.Sprintf("rose: arc frequency %g exceeds 1.0 (queue=%d)", r.maxFreq, total))
	}

	clamped := math.Min(math.Max(r.maxFreq, r.cfg.FreqMin), r.cfg.FreqMax)
	steps := int(math.Ceil(clamped / (r.cfg.FreqStep / 100)))

	if r.renderer != nil {
		if steps != r.steps {
			r.renderer.RenderScale(steps)
		}
		r.renderer.RenderWedges(r.wedgesLocked(steps))
	}
	r.steps = steps
}

// Len returns the number of readings currently in the window.
func (r *Rose) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Count returns the live reading count for one bucket.
func (r *Rose) Count(b Bucket) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b == Sentinel {
		return r.zeroCount
	}
	return r.counts[b]
}

// Snapshot is a consistent copy of the derived aggregator state.
type Snapshot struct {
	Total     int       `json:"total"`
	ZeroCount int       `json:"zero_count"`
	Counts    []int     `json:"counts"` // band-major, NumArcs per row
	ArcFreq   []float64 `json:"arc_freq"`
	MaxFreq   float64   `json:"max_freq"`
	MinFreq   float64   `json:"min_freq"`
	Steps     int       `json:"freq_steps"`
	NumArcs   int       `json:"numarcs"`
	Bands     []float64 `json:"bands"`
}

// State returns a snapshot of counts and frequencies.
func (r *Rose) State() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Total:     len(r.queue),
		ZeroCount: r.zeroCount,
		Counts:    append([]int(nil), r.counts...),
		ArcFreq:   append([]float64(nil), r.arcFreq...),
		MaxFreq:   r.maxFreq,
		MinFreq:   r.minFreq,
		Steps:     r.steps,
		NumArcs:   r.grid.NumArcs,
		Bands:     append([]float64(nil), r.grid.Bands...),
	}
}

// Sample is one queue entry projected onto Cartesian coordinates for
// interpolation.
type Sample struct {
	When int64
	X, Y float64
}

// Samples returns the window contents in timestamp order as Cartesian
// vectors. The resampler consumes this.
func (r *Rose) Samples() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sample, len(r.queue))
	for i, e := range r.queue {
		x, y := e.Vector()
		out[i] = Sample{When: e.When, X: x, Y: y}
	}
	return out
}

// Readings returns a copy of the window contents in timestamp order.
func (r *Rose) Readings() []Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reading, len(r.queue))
	for i, e := range r.queue {
		out[i] = e.Reading
	}
	return out
}
