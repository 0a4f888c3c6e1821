package history

import (
	"context"
	"fmt"
	"runtime"

	"github.com/faceless2/anemometer/internal/rose"
)

// Readings decodes the payload into the reading sequence it carries.
// Delta-format readings are reconstructed at their bucket midpoints;
// that is all the format retains.
//
// A delta record whose cursor lands in a band beyond the payload's own
// band count means the producer and consumer disagreed about the grid;
// it is rejected, never clamped.
func (p *Payload) Readings() ([]rose.Reading, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch p.Format {
	case FormatSimple:
		return p.simpleReadings(), nil
	default:
		return p.deltaReadings()
	}
}

func (p *Payload) simpleReadings() []rose.Reading {
	out := make([]rose.Reading, 0, len(p.Records)/3)
	when := p.When
	for i := 0; i+2 < len(p.Records); i += 3 {
		when += int64(p.Records[i+2].Value)
		out = append(out, rose.NewReading(p.Records[i].Value, p.Records[i+1].Value, when))
	}
	return out
}

func (p *Payload) deltaReadings() ([]rose.Reading, error) {
	grid, err := rose.NewGridArcs(p.NumArcs, p.Bands)
	if err != nil {
		return nil, fmt.Errorf("payload grid: %v", err)
	}

	out := make([]rose.Reading, 0, len(p.Records))
	target := rose.Bucket(0)
	vclock := p.When
	for i, rec := range p.Records {
		if rec.Adjust {
			vclock += rec.When
			continue
		}
		target += rose.Bucket(rec.Value)
		vclock += p.Step

		b := target
		if b < 0 {
			b = rose.Sentinel
		} else if !grid.Valid(b) {
			return nil, fmt.Errorf("record %d: bucket %d outside %d arcs x %d bands", i, b, grid.NumArcs, grid.NumBands())
		}
		dir, speed := grid.Midpoint(b)
		out = append(out, rose.Reading{Direction: dir, Speed: speed, When: vclock})
	}
	return out, nil
}

// Inserter is the consuming side of a bulk load, satisfied by
// *rose.Rose via the Backfiller adapter.
type Inserter interface {
	Insert(dir, speed float64, when int64) bool
}

// DefaultChunkSize is the number of inserts applied per chunk of a
// bulk load before yielding.
const DefaultChunkSize = 256

// Apply feeds the decoded readings into sink in bounded chunks,
// yielding the processor between chunks so interleaved work is not
// starved. Chunk order follows reading order, and the resulting sink
// state is identical to a single synchronous pass. Validation and
// decoding errors surface before the first insert.
func Apply(ctx context.Context, p *Payload, sink Inserter, chunkSize int) error {
	readings, err := p.Readings()
	if err != nil {
		return err
	}
	return applyChunked(ctx, readings, sink, chunkSize)
}

func applyChunked(ctx context.Context, readings []rose.Reading, sink Inserter, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	for start := 0; start < len(readings); start += chunkSize {
		end := start + chunkSize
		if end > len(readings) {
			end = len(readings)
		}
		for _, r := range readings[start:end] {
			sink.Insert(r.Direction, r.Speed, r.When)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// Backfiller adapts a Rose to the Inserter interface using its
// backfill entry point, which is only open between BeginBackfill and
// EndBackfill.
type Backfiller struct {
	Rose *rose.Rose
}

func (b Backfiller) Insert(dir, speed float64, when int64) bool {
	return b.Rose.BackfillInsert(dir, speed, when)
}

// Load runs a complete guarded bulk load: it validates the payload,
// takes the rose's backfill flag so live inserts are dropped for the
// duration, applies the readings in chunks, and releases the flag.
func Load(ctx context.Context, p *Payload, r *rose.Rose, chunkSize int) error {
	// Validate before taking the flag so a malformed payload never
	// blocks live ingestion, even briefly.
	readings, err := p.Readings()
	if err != nil {
		return err
	}
	if err := r.BeginBackfill(); err != nil {
		return err
	}
	defer r.EndBackfill()
	return applyChunked(ctx, readings, Backfiller{r}, chunkSize)
}
