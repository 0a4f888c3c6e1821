package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/faceless2/anemometer/internal/history"
	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/serialmux"
	"github.com/faceless2/anemometer/internal/testutil"
	"github.com/faceless2/anemometer/internal/timeutil"
	"github.com/faceless2/anemometer/internal/units"
	"github.com/faceless2/anemometer/internal/windlog"
)

const t0 = int64(1700000000000)

func newTestServer(t *testing.T) (*Server, *rose.Rose) {
	t.Helper()
	grid, err := rose.NewGrid(20, []float64{5, 10, 200})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	clock := timeutil.NewMockClock(time.UnixMilli(t0 + 10000))
	r := rose.New(grid, rose.Config{MaxDataCount: 1000}, rose.WithClock(clock))
	colors := []string{"#00ff00", "#ffff00", "#ff0000"}
	srv := NewServer(serialmux.NewDisabledSerialMux(), r, nil, grid, colors, units.Knots, 2000)
	return srv, r
}

func seed(r *rose.Rose) {
	r.Insert(10, 3, t0)
	r.Insert(100, 7, t0+2000)
	r.Insert(200, 12, t0+4000)
	r.Insert(0, 0, t0+6000)
}

func TestListReadings(t *testing.T) {
	srv, r := newTestServer(t)
	seed(r)

	w := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/api/readings"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var resp struct {
		Units    string         `json:"units"`
		Readings []rose.Reading `json:"readings"`
	}
	testutil.AssertNoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if resp.Units != "kn" {
		t.Errorf("units = %q, want kn", resp.Units)
	}
	if len(resp.Readings) != 4 {
		t.Errorf("readings = %d, want 4", len(resp.Readings))
	}
}

func TestListReadingsRejectsBadSince(t *testing.T) {
	srv, _ := newTestServer(t)

	w := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/api/readings?since=abc"))
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestShowRose(t *testing.T) {
	srv, r := newTestServer(t)
	seed(r)

	w := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/api/rose"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var resp struct {
		State  rose.Snapshot `json:"state"`
		Wedges []rose.Wedge  `json:"wedges"`
		Colors []string      `json:"colors"`
	}
	testutil.AssertNoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if resp.State.Total != 4 {
		t.Errorf("total = %d, want 4", resp.State.Total)
	}
	if resp.State.ZeroCount != 1 {
		t.Errorf("zero_count = %d, want 1", resp.State.ZeroCount)
	}
	if len(resp.Colors) != 3 {
		t.Errorf("colors = %v, want 3 entries", resp.Colors)
	}
	if len(resp.Wedges) == 0 {
		t.Error("no wedges in response")
	}
}

func TestHistoryRoundTripThroughHandlers(t *testing.T) {
	srv, r := newTestServer(t)
	seed(r)

	// Fetch the window in delta encoding.
	reqBody := `{"when":0,"numarcs":18,"bands":[5,10,200],"id":"test-1","nonce":"n-1"}`
	w := testutil.NewTestRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/history", strings.NewReader(reqBody))
	srv.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	payload, err := history.ParsePayload(w.Body.Bytes())
	testutil.AssertNoError(t, err)
	if payload.Format != history.FormatDelta {
		t.Fatalf("format = %q, want delta", payload.Format)
	}
	if payload.ID != "test-1" || payload.Nonce != "n-1" {
		t.Errorf("correlation not echoed: id=%q nonce=%q", payload.ID, payload.Nonce)
	}

	// Load it into a fresh server and compare bucket contents.
	srv2, r2 := newTestServer(t)
	w2 := testutil.NewTestRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/api/load", bytes.NewReader(w.Body.Bytes()))
	srv2.ServeMux().ServeHTTP(w2, req2)
	testutil.AssertStatusCode(t, w2.Code, http.StatusOK)

	if r2.Len() != r.Len() {
		t.Fatalf("loaded %d readings, want %d", r2.Len(), r.Len())
	}
	want := r.State()
	got := r2.State()
	if got.ZeroCount != want.ZeroCount {
		t.Errorf("zero_count = %d, want %d", got.ZeroCount, want.ZeroCount)
	}
	for i := range want.Counts {
		if got.Counts[i] != want.Counts[i] {
			t.Errorf("counts[%d] = %d, want %d", i, got.Counts[i], want.Counts[i])
		}
	}
}

func TestHistoryServedFromLogNotWindow(t *testing.T) {
	grid, err := rose.NewGrid(20, []float64{5, 10, 200})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	wl, err := windlog.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	defer wl.Close()

	// A tight window cap evicts most readings from the rose while the
	// log keeps every one of them.
	clock := timeutil.NewMockClock(time.UnixMilli(t0 + 20000))
	r := rose.New(grid, rose.Config{MaxDataCount: 2}, rose.WithClock(clock))
	for i := 0; i < 5; i++ {
		when := t0 + int64(i)*2000
		dir, speed := float64(10+i*30), float64(3+i)
		r.Insert(dir, speed, when)
		testutil.AssertNoError(t, wl.RecordReading(dir, speed, when))
	}
	if r.Len() != 2 {
		t.Fatalf("window holds %d readings, want 2", r.Len())
	}

	colors := []string{"#00ff00", "#ffff00", "#ff0000"}
	srv := NewServer(serialmux.NewDisabledSerialMux(), r, wl, grid, colors, units.Knots, 2000)

	w := testutil.NewTestRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/history",
		strings.NewReader(`{"numarcs":18,"bands":[5,10,200]}`))
	srv.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	payload, err := history.ParsePayload(w.Body.Bytes())
	testutil.AssertNoError(t, err)
	decoded, err := payload.Readings()
	testutil.AssertNoError(t, err)
	if len(decoded) != 5 {
		t.Errorf("history response carries %d readings, want all 5 from the log", len(decoded))
	}
}

func TestHistoryRejectsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"numarcs without bands", `{"numarcs":18}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.NewTestRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/history", strings.NewReader(tt.body))
			srv.ServeMux().ServeHTTP(w, req)
			testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
		})
	}
}

func TestLoadRejectsMalformedPayload(t *testing.T) {
	srv, r := newTestServer(t)

	w := testutil.NewTestRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/load", strings.NewReader(`{"format":"wat"}`))
	srv.ServeMux().ServeHTTP(w, req)
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
	if r.Len() != 0 {
		t.Errorf("malformed payload mutated the rose: %d readings", r.Len())
	}
}

func TestShowConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	w := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/api/config"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var resp map[string]any
	testutil.AssertNoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if resp["units"] != "kn" {
		t.Errorf("units = %v, want kn", resp["units"])
	}
	if resp["numarcs"] != float64(18) {
		t.Errorf("numarcs = %v, want 18", resp["numarcs"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	mux := srv.ServeMux()

	for _, path := range []string{"/api/readings", "/api/rose", "/api/config"} {
		w := testutil.NewTestRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
	}
	for _, path := range []string{"/api/history", "/api/load"} {
		w := testutil.NewTestRecorder()
		mux.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, path))
		testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
	}
}

func TestRoseChartRenders(t *testing.T) {
	srv, r := newTestServer(t)
	seed(r)

	w := testutil.NewTestRecorder()
	srv.ServeMux().ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/debug/rose"))
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
	if !strings.Contains(w.Body.String(), "echarts") {
		t.Error("chart response does not embed echarts")
	}
}
