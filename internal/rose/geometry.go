package rose

// Wedge is one annular sector of the drawn rose: the slice of an arc
// covered by a single speed band. Radii are fractions of the full
// rose radius; Start/End are compass degrees with the wedge centered
// on its arc.
type Wedge struct {
	Arc   int     `json:"arc"`
	Band  int     `json:"band"`
	Count int     `json:"count"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Inner float64 `json:"inner"`
	Outer float64 `json:"outer"`
}

// Wedges derives the stacked wedge geometry from the current counts.
// Each band's radii are cumulative frequency sums divided by the full
// scale span, so every wedge in an arc depends on the others; the set
// is recomputed whole, never cached incrementally.
func (r *Rose) Wedges() []Wedge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wedgesLocked(r.steps)
}

func (r *Rose) wedgesLocked(steps int) []Wedge {
	total := len(r.queue)
	if total == 0 || steps == 0 {
		return nil
	}
	span := float64(steps) * r.cfg.FreqStep / 100

	var out []Wedge
	for arc := 0; arc < r.grid.NumArcs; arc++ {
		start := (float64(arc) - 0.5) * r.grid.ArcWidth
		cum := 0.0
		for band := 0; band < r.grid.NumBands(); band++ {
			n := r.counts[band*r.grid.NumArcs+arc]
			if n == 0 {
				continue
			}
			f := float64(n) / float64(total)
			inner := cum / span
			cum += f
			out = append(out, Wedge{
				Arc:   arc,
				Band:  band,
				Count: n,
				Start: NormalizeDirection(start),
				End:   NormalizeDirection(start + r.grid.ArcWidth),
				Inner: inner,
				Outer: cum / span,
			})
		}
	}
	return out
}
