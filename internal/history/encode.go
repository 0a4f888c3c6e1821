package history

import (
	"fmt"

	"github.com/faceless2/anemometer/internal/rose"
)

// EncodeSimple writes readings verbatim as flat dir/speed/elapsed
// triples. The base timestamp is the first reading's, so the first
// elapsed value is zero.
func EncodeSimple(readings []rose.Reading) *Payload {
	p := &Payload{Format: FormatSimple}
	if len(readings) == 0 {
		return p
	}
	p.When = readings[0].When
	p.Records = make([]Record, 0, len(readings)*3)
	prev := p.When
	for _, r := range readings {
		p.Records = append(p.Records,
			Num(r.Direction),
			Num(r.Speed),
			Num(float64(r.When-prev)),
		)
		prev = r.When
	}
	return p
}

// EncodeDelta compresses readings into the delta format using the
// given grid, which the decoder must be told verbatim (it travels in
// the payload). Each reading costs one small integer when sampling is
// regular; irregular gaps cost an extra clock-adjustment record.
//
// The bucket cursor starts at zero ("arc 0, band 0") and each record
// is the signed offset from the previous reading's bucket, with the
// zero-speed sentinel at -1. The virtual clock starts at When and
// advances by Step per emitting record; whenever a reading's actual
// timestamp has drifted at least one step from the running guess, a
// {"when": delta} record resynchronizes the guess to the actual time.
func EncodeDelta(readings []rose.Reading, grid rose.Grid, step int64) (*Payload, error) {
	if step <= 0 {
		step = DefaultStep
	}
	p := &Payload{
		Format:  FormatDelta,
		Step:    step,
		NumArcs: grid.NumArcs,
		Bands:   append([]float64(nil), grid.Bands...),
	}
	if len(readings) == 0 {
		return p, nil
	}

	// Choosing the base one step before the first reading makes a
	// regularly-sampled log start with no adjustment record.
	p.When = readings[0].When - step
	guess := p.When
	cursor := rose.Bucket(0)

	prev := readings[0].When - 1
	for i, r := range readings {
		if r.When < prev {
			return nil, fmt.Errorf("reading %d out of order: %d < %d", i, r.When, prev)
		}
		prev = r.When

		guess += step
		if drift := r.When - guess; drift >= step || drift <= -step {
			p.Records = append(p.Records, Adj(drift))
			guess = r.When
		}

		b := grid.Classify(r.Direction, r.Speed)
		p.Records = append(p.Records, Num(float64(b-cursor)))
		cursor = b
	}
	return p, nil
}
