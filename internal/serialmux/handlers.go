package serialmux

import (
	"fmt"
	"log"

	"github.com/faceless2/anemometer/internal/nmea"
	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/timeutil"
	"github.com/faceless2/anemometer/internal/units"
	"github.com/faceless2/anemometer/internal/windlog"
)

// WindHandler routes wind sentences from the serial port into the live rose
// and the on-disk reading log. Speeds are converted from the instrument's
// native unit to Units before they are stored, so the rose bands and the log
// share one unit.
type WindHandler struct {
	Rose  *rose.Rose
	Log   *windlog.DB // optional, nil disables persistence
	Units string
	Clock timeutil.Clock
}

func (h *WindHandler) now() int64 {
	return h.Clock.Now().UnixMilli()
}

// HandleWind parses an MWV sentence and records the reading.
func (h *WindHandler) HandleWind(line string) error {
	m, err := nmea.ParseWind(line)
	if err != nil {
		return fmt.Errorf("failed to parse wind sentence: %w", err)
	}

	speed := units.ConvertSpeed(m.Speed, h.Units)
	when := h.now()

	if h.Rose != nil {
		h.Rose.Insert(m.Angle, speed, when)
	}
	if h.Log != nil {
		if err := h.Log.RecordReading(m.Angle, speed, when); err != nil {
			return fmt.Errorf("failed to record reading: %w", err)
		}
	}
	return nil
}

// HandleEvent dispatches a single line from the serial port. Non-wind NMEA
// traffic from the instrument is dropped silently; anything else is logged
// once so a misconfigured baud rate shows up in the daemon log.
func (h *WindHandler) HandleEvent(line string) error {
	switch ClassifyLine(line) {
	case EventTypeWind:
		if err := h.HandleWind(line); err != nil {
			return fmt.Errorf("failed to handle wind event: %w", err)
		}
	case EventTypeSentence:
		// other instrument sentences (heading, temperature) are expected
	default:
		log.Printf("unknown serial line: %s", line)
	}
	return nil
}
