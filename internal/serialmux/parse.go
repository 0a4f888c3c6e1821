package serialmux

import "strings"

const (
	EventTypeWind     = "wind"
	EventTypeSentence = "sentence"
	EventTypeUnknown  = "unknown"
)

// ClassifyLine inspects a line from the serial port and returns a simple
// event type token. Wind instruments interleave MWV sentences with other
// NMEA traffic (heading, temperature) that we pass through untouched.
func ClassifyLine(line string) string {
	if !strings.HasPrefix(line, "$") {
		return EventTypeUnknown
	}
	if i := strings.IndexByte(line, ','); i > 1 && strings.HasSuffix(line[1:i], "MWV") {
		return EventTypeWind
	}
	return EventTypeSentence
}
