package api

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/faceless2/anemometer/internal/history"
	"github.com/faceless2/anemometer/internal/httputil"
	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/serialmux"
	"github.com/faceless2/anemometer/internal/windlog"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	m      serialmux.SerialMuxInterface
	rose   *rose.Rose
	log    *windlog.DB // optional
	grid   rose.Grid
	colors []string
	units  string
	step   int64 // history delta encoding step, milliseconds
	frames frameHolder
}

func NewServer(m serialmux.SerialMuxInterface, r *rose.Rose, wl *windlog.DB, grid rose.Grid, colors []string, units string, step int64) *Server {
	return &Server{
		m:      m,
		rose:   r,
		log:    wl,
		grid:   grid,
		colors: colors,
		units:  units,
		step:   step,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/readings", s.listReadings)
	mux.HandleFunc("/api/rose", s.showRose)
	mux.HandleFunc("/api/history", s.serveHistory)
	mux.HandleFunc("/api/load", s.loadHistory)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/frame", s.showFrame)
	mux.HandleFunc("/api/sentence", s.sendSentenceHandler)
	mux.HandleFunc("/debug/rose", s.showRoseChart)
	return mux
}

func (s *Server) sendSentenceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sentence := r.FormValue("sentence")

	if err := s.m.SendSentence(sentence); err != nil {
		http.Error(w, "Failed to send sentence", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Sentence sent successfully")
}

// listReadings returns the readings currently in the aggregation window,
// or, with a "since" query parameter and a reading log attached, the
// persisted readings after that timestamp. Speeds are stored in the
// configured display unit at ingest so no conversion happens here.
func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	readings := s.rose.Readings()
	if since := r.URL.Query().Get("since"); since != "" {
		if s.log == nil {
			httputil.BadRequest(w, "no reading log attached")
			return
		}
		sinceMs, err := strconv.ParseInt(since, 10, 64)
		if err != nil {
			httputil.BadRequest(w, "invalid 'since' parameter")
			return
		}
		readings, err = s.log.ReadingsSince(sinceMs)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to read log: %v", err))
			return
		}
	}

	httputil.WriteJSONOK(w, map[string]any{
		"units":    s.units,
		"readings": readings,
	})
}

// showRose returns the aggregator snapshot plus the wedge geometry a
// client needs to draw the rose.
func (s *Server) showRose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]any{
		"state":  s.rose.State(),
		"wedges": s.rose.Wedges(),
		"colors": s.colors,
	})
}

// serveHistory answers a history request in the requested encoding.
// Responses are built from the reading log, which holds everything ever
// ingested; only when no log is attached does the in-memory window
// stand in, and then the response is bounded by the window caps.
func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		httputil.BadRequest(w, "failed to read request body")
		return
	}
	req, err := history.ParseRequest(raw)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid history request: %v", err))
		return
	}

	readings := s.rose.Readings()
	if s.log != nil {
		readings, err = s.log.ReadingsSince(rose.NormalizeTimestamp(req.When))
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to read log: %v", err))
			return
		}
	}

	payload, err := history.BuildResponse(req, readings, s.step)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to encode history: %v", err))
		return
	}
	httputil.WriteJSONOK(w, payload)
}

// loadHistory bulk loads an encoded history payload into the rose.
func (s *Server) loadHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		httputil.BadRequest(w, "failed to read request body")
		return
	}
	payload, err := history.ParsePayload(raw)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid history payload: %v", err))
		return
	}

	if err := history.Load(r.Context(), payload, s.rose, history.DefaultChunkSize); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to load history: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]any{"loaded": s.rose.Len()})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSONOK(w, map[string]any{
		"units":           s.units,
		"numarcs":         s.grid.NumArcs,
		"arc_degrees":     s.grid.ArcWidth,
		"bands":           s.grid.Bands,
		"colors":          s.colors,
		"history_step_ms": s.step,
	})
}
