package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/faceless2/anemometer/internal/httputil"
	"github.com/faceless2/anemometer/internal/rose"
)

// Client fetches history payloads from a log-holding peer over HTTP.
type Client struct {
	http httputil.HTTPClient
	url  string
}

// NewClient creates a history client for the given endpoint URL.
// Passing a nil HTTP client uses the default.
func NewClient(url string, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{http: hc, url: url}
}

// Fetch requests history since the given timestamp. A non-nil grid
// asks for the compact delta format built with that grid; nil asks for
// the simple format. The request carries fresh correlation values and
// the response is rejected if they do not come back verbatim.
func (c *Client) Fetch(since int64, grid *rose.Grid) (*Payload, error) {
	req := Request{
		When:  since,
		ID:    uuid.NewString(),
		Nonce: uuid.NewString(),
	}
	if grid != nil {
		req.NumArcs = grid.NumArcs
		req.Bands = append([]float64(nil), grid.Bands...)
	}

	body, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Post(c.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history request returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading history response: %w", err)
	}
	p, err := ParsePayload(raw)
	if err != nil {
		return nil, err
	}
	if p.ID != req.ID || p.Nonce != req.Nonce {
		return nil, fmt.Errorf("history response correlation mismatch (id %q, nonce %q)", p.ID, p.Nonce)
	}
	return p, nil
}

// Backfill fetches history since the given timestamp and bulk loads it
// into r, asking the peer for the compact delta format built with r's
// own grid. Live inserts are dropped for the duration of the load.
func (c *Client) Backfill(ctx context.Context, r *rose.Rose, since int64) error {
	grid := r.Grid()
	p, err := c.Fetch(since, &grid)
	if err != nil {
		return err
	}
	return Load(ctx, p, r, DefaultChunkSize)
}
