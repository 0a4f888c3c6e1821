package rose

import (
	"math"
	"testing"
)

func mustGrid(t *testing.T, arcDegrees float64, bands []float64) Grid {
	t.Helper()
	g, err := NewGrid(arcDegrees, bands)
	if err != nil {
		t.Fatalf("NewGrid(%g, %v): %v", arcDegrees, bands, err)
	}
	return g
}

func TestNewGridArcCounts(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
		numArcs   int
		width     float64
	}{
		{"even divisor", 20, 18, 20},
		{"rounds count up", 17, 22, 360.0 / 22},
		{"quadrants", 90, 4, 90},
		{"single arc", 360, 1, 360},
		{"degrees", 1, 360, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustGrid(t, tt.requested, []float64{5, 10, MaxBandSpeed})
			if g.NumArcs != tt.numArcs {
				t.Errorf("NumArcs = %d, want %d", g.NumArcs, tt.numArcs)
			}
			if math.Abs(g.ArcWidth-tt.width) > 1e-9 {
				t.Errorf("ArcWidth = %g, want %g", g.ArcWidth, tt.width)
			}
		})
	}
}

func TestNewGridRejectsBadBands(t *testing.T) {
	tests := []struct {
		name  string
		bands []float64
	}{
		{"empty", nil},
		{"not increasing", []float64{10, 5, MaxBandSpeed}},
		{"duplicate", []float64{5, 5, MaxBandSpeed}},
		{"missing sentinel", []float64{5, 10}},
		{"zero boundary", []float64{0, MaxBandSpeed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewGrid(20, tt.bands); err == nil {
				t.Errorf("NewGrid(20, %v) accepted invalid bands", tt.bands)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	g := mustGrid(t, 20, []float64{5, 10, MaxBandSpeed})

	tests := []struct {
		name  string
		dir   float64
		speed float64
		want  Bucket
	}{
		{"zero speed is sentinel", 45, 0, Sentinel},
		{"zero speed any direction", 300, 0, Sentinel},
		{"north low band", 0, 1, Bucket(0)},
		{"arc rounding down", 9, 1, Bucket(0)},
		{"arc tie rounds up", 10, 1, Bucket(1)},
		{"arc rounding up", 11, 1, Bucket(1)},
		{"wraps through north", 355, 1, Bucket(0)},
		{"wrap tie rounds to zero", 350, 1, Bucket(0)},
		{"second band", 0, 5, Bucket(18)},
		{"boundary goes up", 0, 10, Bucket(36)},
		{"just under boundary", 0, 9.999, Bucket(18)},
		{"top band", 0, 150, Bucket(36)},
		{"beyond sentinel still top band", 0, 500, Bucket(36)},
		{"mid arc mid band", 45, 7, Bucket(18 + 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Classify(tt.dir, tt.speed); got != tt.want {
				t.Errorf("Classify(%g, %g) = %d, want %d", tt.dir, tt.speed, got, tt.want)
			}
		})
	}
}

func TestClassifyNormalizationIdempotent(t *testing.T) {
	g := mustGrid(t, 17, []float64{3, 8, 25, MaxBandSpeed})
	for _, dir := range []float64{0, 10, 45.5, 180, 359.2} {
		for _, speed := range []float64{0, 1, 8, 100} {
			base := g.Classify(dir, speed)
			if got := g.Classify(dir+360, speed); got != base {
				t.Errorf("Classify(%g+360, %g) = %d, want %d", dir, speed, got, base)
			}
			if got := g.Classify(dir-360, speed); got != base {
				t.Errorf("Classify(%g-360, %g) = %d, want %d", dir, speed, got, base)
			}
		}
	}
}

func TestMidpoint(t *testing.T) {
	g := mustGrid(t, 20, []float64{5, 10, MaxBandSpeed})

	tests := []struct {
		name      string
		b         Bucket
		wantDir   float64
		wantSpeed float64
	}{
		{"sentinel", Sentinel, 0, 0},
		{"arc 0 band 0", Bucket(0), 10, 2.5},
		{"arc 5 band 1", Bucket(18 + 5), 110, 7.5},
		{"top band midpoint", Bucket(36), 10, 105},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, speed := g.Midpoint(tt.b)
			if math.Abs(dir-tt.wantDir) > 1e-9 || math.Abs(speed-tt.wantSpeed) > 1e-9 {
				t.Errorf("Midpoint(%d) = (%g, %g), want (%g, %g)", tt.b, dir, speed, tt.wantDir, tt.wantSpeed)
			}
		})
	}
}

func TestBucketRoundTrip(t *testing.T) {
	g := mustGrid(t, 20, []float64{5, 10, MaxBandSpeed})
	for b := Bucket(0); int(b) < g.NumArcs*g.NumBands(); b++ {
		dir, speed := g.Midpoint(b)
		if got := g.Classify(dir, speed); got != b {
			t.Errorf("Classify(Midpoint(%d)) = %d", b, got)
		}
	}
}

type mapStyle map[string]string

func (m mapStyle) Value(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func TestDiscoverBands(t *testing.T) {
	style := mapStyle{
		"speed5":   "#00ff00",
		"speed10":  "#ffff00",
		"speed25":  "#ff0000",
		"speedmax": "#800000",
		"other":    "x",
	}
	bands := DiscoverBands(style)
	want := []float64{5, 10, 25, MaxBandSpeed}
	if len(bands) != len(want) {
		t.Fatalf("DiscoverBands = %v, want %v", bands, want)
	}
	for i := range want {
		if bands[i] != want[i] {
			t.Fatalf("DiscoverBands = %v, want %v", bands, want)
		}
	}

	colors := DiscoverColors(style, bands)
	wantColors := []string{"#00ff00", "#ffff00", "#ff0000", "#800000"}
	for i := range wantColors {
		if colors[i] != wantColors[i] {
			t.Errorf("color[%d] = %q, want %q", i, colors[i], wantColors[i])
		}
	}
}

func TestDiscoverBandsDegenerate(t *testing.T) {
	bands := DiscoverBands(mapStyle{})
	if len(bands) != 1 || bands[0] != MaxBandSpeed {
		t.Fatalf("DiscoverBands(empty) = %v, want [%d]", bands, MaxBandSpeed)
	}
	colors := DiscoverColors(mapStyle{}, bands)
	if colors[0] != DefaultBandColor {
		t.Errorf("default speedmax color = %q, want %q", colors[0], DefaultBandColor)
	}
}

func TestGridValid(t *testing.T) {
	g := mustGrid(t, 20, []float64{5, 10, MaxBandSpeed})
	max := Bucket(g.NumArcs*g.NumBands() - 1)
	if !g.Valid(Sentinel) || !g.Valid(0) || !g.Valid(max) {
		t.Error("expected sentinel, 0 and max buckets to be valid")
	}
	if g.Valid(max + 1) {
		t.Errorf("bucket %d beyond band count reported valid", max+1)
	}
}
