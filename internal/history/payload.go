// Package history implements the compact wind-history transfer
// protocol: a simple verbatim format and a delta format that encodes
// each reading as a small integer offset between consecutive bucket
// ids plus a virtual clock.
package history

import (
	"encoding/json"
	"fmt"
)

// Wire format discriminators.
const (
	FormatSimple = "simple"
	FormatDelta  = "delta"
)

// DefaultStep is the virtual clock advance per delta record when the
// producer does not choose one, in milliseconds.
const DefaultStep = int64(2000)

// Record is one element of a payload's record stream. It is either a
// bare number (a bucket delta in the delta format, or one value of a
// dir/speed/elapsed triple in the simple format) or a pure clock
// adjustment {"when": d} that nudges the virtual clock without
// emitting a reading.
type Record struct {
	Value  float64
	When   int64
	Adjust bool
}

// Num builds a numeric record.
func Num(v float64) Record { return Record{Value: v} }

// Adj builds a clock-adjustment record.
func Adj(d int64) Record { return Record{When: d, Adjust: true} }

func (r Record) MarshalJSON() ([]byte, error) {
	if r.Adjust {
		return json.Marshal(struct {
			When int64 `json:"when"`
		}{r.When})
	}
	return json.Marshal(r.Value)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*r = Record{Value: v}
		return nil
	}
	var adj struct {
		When *int64 `json:"when"`
	}
	if err := json.Unmarshal(b, &adj); err != nil || adj.When == nil {
		return fmt.Errorf("record is neither a number nor a {\"when\": n} object: %s", b)
	}
	*r = Record{When: *adj.When, Adjust: true}
	return nil
}

// Payload is a complete history transfer in either wire format.
// ID and Nonce, when set, are correlation values echoed from the
// request that produced the payload.
type Payload struct {
	Format  string    `json:"format"`
	When    int64     `json:"when"`
	Step    int64     `json:"step,omitempty"`
	NumArcs int       `json:"numarcs,omitempty"`
	Bands   []float64 `json:"bands,omitempty"`
	Records []Record  `json:"records"`
	ID      string    `json:"id,omitempty"`
	Nonce   string    `json:"nonce,omitempty"`
}

// Validate checks the payload's framing before any decoding work.
// Malformed payloads fail here, synchronously, so a caller never
// starts a chunked apply it cannot finish for structural reasons.
func (p *Payload) Validate() error {
	switch p.Format {
	case FormatSimple:
		if len(p.Records)%3 != 0 {
			return fmt.Errorf("simple format records length %d is not a multiple of 3", len(p.Records))
		}
		for i, r := range p.Records {
			if r.Adjust {
				return fmt.Errorf("simple format record %d is a clock adjustment", i)
			}
		}
	case FormatDelta:
		if p.NumArcs <= 0 {
			return fmt.Errorf("delta format requires numarcs, got %d", p.NumArcs)
		}
		if len(p.Bands) == 0 {
			return fmt.Errorf("delta format requires bands")
		}
		if p.Step <= 0 {
			return fmt.Errorf("delta format requires a positive step, got %d", p.Step)
		}
	case "":
		return fmt.Errorf("payload has no format discriminator")
	default:
		return fmt.Errorf("unknown payload format %q", p.Format)
	}
	return nil
}

// ParsePayload unmarshals and validates a raw payload.
func ParsePayload(raw []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed history payload: %v", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
