// Package plot renders physio traces with their extracted events.
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/theaxonlab/physioevents/internal/model"
)

// maxPoints bounds the samples drawn per panel; longer traces are strided.
const maxPoints = 20000

// Figure size of the written PNG.
const (
	width  = 30 * vg.Inch
	height = 10 * vg.Inch
)

type panel struct {
	title  string
	values []float64
}

// Render draws RB, ECG and GA as three stacked panels sharing the time axis,
// with a dashed vertical line at each event onset.
func Render(w io.Writer, trace model.Trace, t model.EventTable) error {
	if trace.Len() == 0 {
		return errors.New("empty trace")
	}

	colors := trialColors(t)
	panels := []panel{
		{"RB", trace.RB},
		{"ECG", trace.ECG},
		{"GA", trace.GA},
	}

	plots := make([][]*plot.Plot, len(panels))
	for i, pn := range panels {
		p, err := newPanel(pn, trace.Time, t, colors, i == 0)
		if err != nil {
			return fmt.Errorf("%s panel: %w", pn.title, err)
		}
		if i == len(panels)-1 {
			p.X.Label.Text = "Time (s)"
		}
		plots[i] = []*plot.Plot{p}
	}

	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: len(panels),
		Cols: 1,
		PadY: vg.Points(10),
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

// RenderFile writes the figure to path as PNG.
func RenderFile(path string, trace model.Trace, t model.EventTable) error {
	f, err := os.Create(path) //nolint:gosec // output path derives from the input path
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Render(f, trace, t); err != nil {
		_ = f.Close()
		return fmt.Errorf("plotting %s: %w", path, err)
	}
	return f.Close()
}

func newPanel(pn panel, times []float64, t model.EventTable, colors map[model.TrialType]color.Color, legend bool) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = pn.title
	p.Y.Label.Text = pn.title

	pts := decimate(times, pn.values)
	trace, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	trace.LineStyle.Width = vg.Points(0.5)
	trace.LineStyle.Color = color.Black
	p.Add(trace)

	lo, hi := bounds(pts)
	labeled := make(map[model.TrialType]bool)
	for _, r := range t.Records {
		marker, err := plotter.NewLine(plotter.XYs{{X: r.Onset, Y: lo}, {X: r.Onset, Y: hi}})
		if err != nil {
			return nil, err
		}
		marker.LineStyle.Color = colors[r.TrialType]
		marker.LineStyle.Width = vg.Points(1)
		marker.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(marker)

		if legend && !labeled[r.TrialType] {
			p.Legend.Add(string(r.TrialType), marker)
			labeled[r.TrialType] = true
		}
	}
	p.Legend.Top = true

	return p, nil
}

// trialColors assigns a palette color to each trial type in order of appearance.
func trialColors(t model.EventTable) map[model.TrialType]color.Color {
	colors := make(map[model.TrialType]color.Color)
	for i, tt := range t.TrialTypes() {
		colors[tt] = plotutil.Color(i)
	}
	return colors
}

// decimate pairs times with values, keeping at most maxPoints samples.
func decimate(times, values []float64) plotter.XYs {
	n := len(times)
	if len(values) < n {
		n = len(values)
	}
	stride := 1
	if n > maxPoints {
		stride = (n + maxPoints - 1) / maxPoints
	}

	pts := make(plotter.XYs, 0, n/stride+1)
	for i := 0; i < n; i += stride {
		pts = append(pts, plotter.XY{X: times[i], Y: values[i]})
	}
	return pts
}

func bounds(pts plotter.XYs) (lo, hi float64) {
	if len(pts) == 0 {
		return 0, 1
	}
	lo, hi = pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		if p.Y < lo {
			lo = p.Y
		}
		if p.Y > hi {
			hi = p.Y
		}
	}
	if lo == hi {
		hi = lo + 1
	}
	return lo, hi
}
