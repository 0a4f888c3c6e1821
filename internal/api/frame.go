package api

import (
	"net/http"
	"sync"

	"github.com/faceless2/anemometer/internal/httputil"
	"github.com/faceless2/anemometer/internal/resample"
	"github.com/faceless2/anemometer/internal/units"
)

// frameHolder keeps the most recent interpolated frame for the
// /api/frame endpoint.
type frameHolder struct {
	mu    sync.Mutex
	frame resample.Frame
	set   bool
}

// StoreFrame records a frame from the resampler. Safe to pass as a
// resample.FrameFunc.
func (s *Server) StoreFrame(f resample.Frame) {
	s.frames.mu.Lock()
	s.frames.frame = f
	s.frames.set = true
	s.frames.mu.Unlock()
}

// showFrame returns the latest interpolated wind frame, or 204 when the
// resampler has not produced one yet. Frame speeds are in the display
// unit; the Beaufort force is derived from the m/s equivalent.
func (s *Server) showFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	s.frames.mu.Lock()
	frame, ok := s.frames.frame, s.frames.set
	s.frames.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSONOK(w, struct {
		resample.Frame
		Beaufort int `json:"beaufort"`
	}{frame, units.Beaufort(units.ToMPS(frame.Speed, s.units))})
}
