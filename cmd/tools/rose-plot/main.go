// Command rose-plot renders a wind rose PNG from a reading log. Useful
// for eyeballing a recorded session without running the daemon.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/windlog"
)

var (
	dbFile    = flag.String("db", "wind_data.db", "reading log database path")
	output    = flag.String("o", "rose.png", "output PNG path")
	since     = flag.Int64("since", 0, "only plot readings at or after this unix ms timestamp")
	arcDeg    = flag.Float64("arc", 20, "arc width in degrees")
	bandsFlag = flag.String("bands", "5,10,15,20,200", "comma-separated band boundaries")
	colorFlag = flag.String("colors", "#31688e,#35b779,#fde725,#fd9a44,#d03a3a", "comma-separated band colors")
)

func parseBands(s string) ([]float64, error) {
	var bands []float64
	for _, f := range strings.Split(s, ",") {
		b, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bad band %q: %v", f, err)
		}
		bands = append(bands, b)
	}
	return bands, nil
}

func hexColor(s string) color.Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.Gray{Y: 0x99}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.Gray{Y: 0x99}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// wedgePolygon approximates a wedge as a closed polygon. Angles are
// compass bearings, so x grows with sin and y with cos.
func wedgePolygon(w rose.Wedge) plotter.XYs {
	start, end := w.Start, w.End
	if end < start {
		end += 360
	}
	segments := int(math.Ceil(end-start)) + 1
	if segments < 2 {
		segments = 2
	}

	pts := make(plotter.XYs, 0, 2*segments+1)
	for i := 0; i <= segments; i++ {
		a := (start + (end-start)*float64(i)/float64(segments)) * math.Pi / 180
		pts = append(pts, plotter.XY{X: w.Outer * math.Sin(a), Y: w.Outer * math.Cos(a)})
	}
	for i := segments; i >= 0; i-- {
		a := (start + (end-start)*float64(i)/float64(segments)) * math.Pi / 180
		pts = append(pts, plotter.XY{X: w.Inner * math.Sin(a), Y: w.Inner * math.Cos(a)})
	}
	return pts
}

func main() {
	flag.Parse()

	bands, err := parseBands(*bandsFlag)
	if err != nil {
		log.Fatalf("invalid bands: %v", err)
	}
	grid, err := rose.NewGrid(*arcDeg, bands)
	if err != nil {
		log.Fatalf("invalid grid: %v", err)
	}
	colors := strings.Split(*colorFlag, ",")

	db, err := windlog.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *dbFile, err)
	}
	defer db.Close()

	readings, err := db.ReadingsSince(*since)
	if err != nil {
		log.Fatalf("failed to read log: %v", err)
	}
	if len(readings) == 0 {
		log.Fatal("no readings to plot")
	}

	r := rose.New(grid, rose.Config{MaxDataCount: len(readings)})
	for _, rd := range readings {
		r.Insert(rd.Direction, rd.Speed, rd.When)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Wind Rose (%d readings)", r.Len())
	p.X.Min, p.X.Max = -1.1, 1.1
	p.Y.Min, p.Y.Max = -1.1, 1.1
	p.HideAxes()

	for _, w := range r.Wedges() {
		if w.Outer <= w.Inner {
			continue
		}
		poly, err := plotter.NewPolygon(wedgePolygon(w))
		if err != nil {
			log.Fatalf("failed to build wedge: %v", err)
		}
		c := color.Color(color.Gray{Y: 0x99})
		if w.Band < len(colors) {
			c = hexColor(colors[w.Band])
		}
		poly.Color = c
		poly.LineStyle.Color = color.Black
		poly.LineStyle.Width = vg.Points(0.5)
		p.Add(poly)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, *output); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	log.Printf("✓ Created: %s", *output)
}
