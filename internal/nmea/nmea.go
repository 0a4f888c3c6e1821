// Package nmea parses NMEA 0183 sentences from wind instruments.
// Only the fields the aggregator needs are extracted; everything else
// on the wire is ignored by the caller.
package nmea

import (
	"fmt"
	"strconv"
	"strings"
)

// Wind reference codes from the MWV sentence.
const (
	ReferenceRelative    = "R"
	ReferenceTheoretical = "T"
)

// MWV is a parsed "wind speed and angle" sentence. Speed is converted
// to m/s regardless of the unit on the wire.
type MWV struct {
	Talker    string
	Angle     float64 // degrees [0,360)
	Reference string  // R or T
	Speed     float64 // m/s
	Valid     bool    // status field was "A"
}

// Sentence is a checksum-validated NMEA sentence split into its
// address and data fields.
type Sentence struct {
	Address string // e.g. "WIMWV"
	Fields  []string
}

// ParseSentence validates framing and checksum and splits the fields.
// The checksum is the XOR of every byte between "$" and "*".
func ParseSentence(line string) (*Sentence, error) {
	line = strings.TrimSpace(line)
	if len(line) < 4 || line[0] != '$' {
		return nil, fmt.Errorf("not an NMEA sentence: %q", line)
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 != len(line) {
		return nil, fmt.Errorf("missing checksum: %q", line)
	}
	body := line[1:star]
	want, err := strconv.ParseUint(line[star+1:], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("bad checksum field: %q", line)
	}
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	if sum != byte(want) {
		return nil, fmt.Errorf("checksum mismatch: got %02X, want %02X", sum, want)
	}

	parts := strings.Split(body, ",")
	return &Sentence{Address: parts[0], Fields: parts[1:]}, nil
}

// IsMWV reports whether the sentence is a wind speed/angle sentence
// from any talker.
func (s *Sentence) IsMWV() bool {
	return strings.HasSuffix(s.Address, "MWV")
}

// speedToMPS converts an MWV speed field to m/s per its unit code.
func speedToMPS(v float64, unit string) (float64, error) {
	switch unit {
	case "M":
		return v, nil
	case "N": // knots
		return v * 0.514444, nil
	case "K": // km/h
		return v / 3.6, nil
	case "S": // statute mph
		return v * 0.44704, nil
	default:
		return 0, fmt.Errorf("unknown speed unit %q", unit)
	}
}

// ParseMWV extracts the wind measurement from a validated sentence.
// $WIMWV,214.8,R,8.5,N,A*hh: angle, reference, speed, unit, status.
func ParseMWV(s *Sentence) (*MWV, error) {
	if !s.IsMWV() {
		return nil, fmt.Errorf("not an MWV sentence: %s", s.Address)
	}
	if len(s.Fields) < 5 {
		return nil, fmt.Errorf("MWV wants 5 fields, got %d", len(s.Fields))
	}
	angle, err := strconv.ParseFloat(s.Fields[0], 64)
	if err != nil {
		return nil, fmt.Errorf("bad wind angle %q: %v", s.Fields[0], err)
	}
	ref := s.Fields[1]
	if ref != ReferenceRelative && ref != ReferenceTheoretical {
		return nil, fmt.Errorf("bad wind reference %q", ref)
	}
	rawSpeed, err := strconv.ParseFloat(s.Fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("bad wind speed %q: %v", s.Fields[2], err)
	}
	speed, err := speedToMPS(rawSpeed, s.Fields[3])
	if err != nil {
		return nil, err
	}

	talker := ""
	if len(s.Address) >= 2 {
		talker = s.Address[:len(s.Address)-3]
	}
	return &MWV{
		Talker:    talker,
		Angle:     angle,
		Reference: ref,
		Speed:     speed,
		Valid:     s.Fields[4] == "A",
	}, nil
}

// ParseWind is the one-shot path from a raw line to a wind
// measurement: frame check, checksum, MWV extraction, validity.
// Invalid-status sentences are an error; callers log and drop.
func ParseWind(line string) (*MWV, error) {
	s, err := ParseSentence(line)
	if err != nil {
		return nil, err
	}
	m, err := ParseMWV(s)
	if err != nil {
		return nil, err
	}
	if !m.Valid {
		return nil, fmt.Errorf("MWV sentence flagged invalid")
	}
	return m, nil
}

// Checksum computes the NMEA checksum suffix for a sentence body
// (everything between "$" and "*"). Used by fixture generators.
func Checksum(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("%02X", sum)
}
