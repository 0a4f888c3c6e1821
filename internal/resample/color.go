package resample

import (
	"fmt"
	"strconv"
	"strings"
)

// parseHexColor reads "#rgb" or "#rrggbb". Unparseable colors come
// back as mid gray rather than an error; color is cosmetic and must
// never break a frame.
func parseHexColor(s string) (r, g, b uint8) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	case 6:
	default:
		return 0x99, 0x99, 0x99
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0x99, 0x99, 0x99
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}

// BlendColors linearly interpolates two hex colors. frac 0 yields a,
// frac 1 yields b; out-of-range fractions are clamped.
func BlendColors(a, b string, frac float64) string {
	if frac <= 0 {
		frac = 0
	} else if frac >= 1 {
		frac = 1
	}
	ar, ag, ab := parseHexColor(a)
	br, bg, bb := parseHexColor(b)
	mix := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*frac + 0.5)
	}
	return fmt.Sprintf("#%02x%02x%02x", mix(ar, br), mix(ag, bg), mix(ab, bb))
}
