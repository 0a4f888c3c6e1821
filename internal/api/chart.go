package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/faceless2/anemometer/internal/httputil"
)

// showRoseChart renders a quick polar plot (HTML) of the current window
// using go-echarts. Each reading is projected onto XY with north up, so
// the scatter sketches the rose shape without the frontend. This is a
// debugging-only endpoint.
func (s *Server) showRoseChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	readings := s.rose.Readings()

	data := make([]opts.ScatterData, 0, len(readings))
	maxSpeed := 0.0
	for _, rd := range readings {
		rad := rd.Direction * math.Pi / 180
		x := rd.Speed * math.Sin(rad)
		y := rd.Speed * math.Cos(rad)
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, rd.Speed}})
		if rd.Speed > maxSpeed {
			maxSpeed = rd.Speed
		}
	}

	pad := maxSpeed * 1.05
	if pad == 0 {
		pad = 1.0
	}

	// Force a square plot by using equal width/height and symmetric axis ranges
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Wind Rose (Polar->XY)", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Wind Rose Window", Subtitle: fmt.Sprintf("readings=%d units=%s", len(data), s.units)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "E", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "N", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(math.Max(maxSpeed, 1)),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)

	scatter.AddSeries("readings", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
