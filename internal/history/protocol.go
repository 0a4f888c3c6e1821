package history

import (
	"encoding/json"
	"fmt"

	"github.com/faceless2/anemometer/internal/rose"
)

// Request asks a log-holding peer for historical readings. A requester
// that supplies NumArcs and Bands receives the compact delta format
// built with exactly that grid; otherwise it receives the simple
// format. When, if nonzero, filters out readings older than it.
// ID and Nonce are opaque correlation values echoed in the response.
type Request struct {
	When    int64     `json:"when,omitempty"`
	NumArcs int       `json:"numarcs,omitempty"`
	Bands   []float64 `json:"bands,omitempty"`
	ID      string    `json:"id,omitempty"`
	Nonce   string    `json:"nonce,omitempty"`
}

// ParseRequest unmarshals and sanity-checks a raw request.
func ParseRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("malformed history request: %v", err)
	}
	if req.NumArcs < 0 {
		return nil, fmt.Errorf("invalid numarcs %d", req.NumArcs)
	}
	if (req.NumArcs > 0) != (len(req.Bands) > 0) {
		return nil, fmt.Errorf("numarcs and bands must be supplied together")
	}
	return &req, nil
}

// wantsDelta reports whether the requester supplied a grid.
func (r *Request) wantsDelta() bool {
	return r.NumArcs > 0 && len(r.Bands) > 0
}

// BuildResponse produces the response payload for a request over the
// producer's raw reading log. The readings must be in timestamp order.
func BuildResponse(req *Request, readings []rose.Reading, step int64) (*Payload, error) {
	if req.When > 0 {
		since := rose.NormalizeTimestamp(req.When)
		i := 0
		for i < len(readings) && readings[i].When < since {
			i++
		}
		readings = readings[i:]
	}

	var p *Payload
	if req.wantsDelta() {
		grid, err := rose.NewGridArcs(req.NumArcs, req.Bands)
		if err != nil {
			return nil, fmt.Errorf("requested grid: %v", err)
		}
		p, err = EncodeDelta(readings, grid, step)
		if err != nil {
			return nil, err
		}
	} else {
		p = EncodeSimple(readings)
	}
	p.ID = req.ID
	p.Nonce = req.Nonce
	return p, nil
}
