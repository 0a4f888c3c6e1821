package history

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/faceless2/anemometer/internal/httputil"
	"github.com/faceless2/anemometer/internal/rose"
)

func TestClientFetchEchoesCorrelation(t *testing.T) {
	readings := []rose.Reading{
		{Direction: 2, Speed: 2, When: t0},
		{Direction: 100, Speed: 7, When: t0 + 2000},
	}

	mock := httputil.NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		parsed, err := ParseRequest(body)
		if err != nil {
			t.Fatalf("server saw bad request: %v", err)
		}
		p, err := BuildResponse(parsed, readings, 2000)
		if err != nil {
			t.Fatal(err)
		}
		raw, _ := json.Marshal(p)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(raw)),
			Header:     make(http.Header),
		}, nil
	}

	c := NewClient("http://example.invalid/api/history", mock)
	g := testGrid(t)
	p, err := c.Fetch(0, &g)
	if err != nil {
		t.Fatal(err)
	}
	if p.Format != FormatDelta {
		t.Errorf("format = %q, want delta", p.Format)
	}
	decoded, err := p.Readings()
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 {
		t.Errorf("decoded %d readings, want 2", len(decoded))
	}
}

func TestClientBackfill(t *testing.T) {
	readings := []rose.Reading{
		{Direction: 2, Speed: 2, When: t0},
		{Direction: 100, Speed: 7, When: t0 + 2000},
		{Direction: 0, Speed: 0, When: t0 + 4000},
	}

	mock := httputil.NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		parsed, err := ParseRequest(body)
		if err != nil {
			t.Fatalf("server saw bad request: %v", err)
		}
		p, err := BuildResponse(parsed, readings, 2000)
		if err != nil {
			t.Fatal(err)
		}
		raw, _ := json.Marshal(p)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(raw)),
			Header:     make(http.Header),
		}, nil
	}

	g := testGrid(t)
	r := rose.New(g, rose.Config{})
	c := NewClient("http://example.invalid/api/history", mock)
	if err := c.Backfill(context.Background(), r, 0); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 3 {
		t.Fatalf("backfilled %d readings, want 3", r.Len())
	}
	// The load went through the delta codec, so buckets must match a
	// direct classification of the source log.
	for _, rd := range readings {
		b := g.Classify(rd.Direction, rd.Speed)
		if r.Count(b) == 0 {
			t.Errorf("bucket %d empty after backfill", b)
		}
	}
	// The backfill flag must be released afterwards.
	if !r.Insert(45, 3, t0+6000) {
		t.Error("live insert rejected after backfill completed")
	}
}

func TestClientFetchRejectsBadCorrelation(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"format":"simple","when":0,"records":[],"id":"wrong","nonce":"wrong"}`)
	c := NewClient("http://example.invalid/api/history", mock)
	if _, err := c.Fetch(0, nil); err == nil {
		t.Fatal("accepted response with mismatched correlation values")
	}
}

func TestClientFetchErrorStatus(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	mock.AddResponse(http.StatusInternalServerError, `{"error":"boom"}`)
	c := NewClient("http://example.invalid/api/history", mock)
	if _, err := c.Fetch(0, nil); err == nil {
		t.Fatal("accepted non-200 response")
	}
}
