package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Figure is a log-log chart written to an image file.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Series []XYSeries
}

// SaveLogLog writes fig to path; the format follows the file extension
// (png, svg, pdf). Points with a non-positive coordinate are dropped because
// logarithmic axes cannot show them.
func SaveLogLog(path string, fig Figure, width, height vg.Length) error {
	p := plot.New()
	p.Title.Text = fig.Title
	p.X.Label.Text = fig.XLabel
	p.Y.Label.Text = fig.YLabel
	p.X.Scale = plot.LogScale{}
	p.Y.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	added := 0
	for i, s := range fig.Series {
		xys := positivePoints(s)
		if len(xys) == 0 {
			continue
		}
		if s.Scatter {
			sc, err := plotter.NewScatter(xys)
			if err != nil {
				return fmt.Errorf("failed to build scatter %q: %w", s.Name, err)
			}
			sc.GlyphStyle.Color = plotutil.Color(i)
			sc.GlyphStyle.Shape = plotutil.Shape(i)
			p.Add(sc)
			p.Legend.Add(s.Name, sc)
		} else {
			line, err := plotter.NewLine(xys)
			if err != nil {
				return fmt.Errorf("failed to build line %q: %w", s.Name, err)
			}
			line.Color = plotutil.Color(i)
			line.Width = vg.Points(1.5)
			p.Add(line)
			p.Legend.Add(s.Name, line)
		}
		added++
	}
	if added == 0 {
		return fmt.Errorf("nothing to plot: no series has positive points")
	}
	p.Legend.Top = true

	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save figure: %w", err)
	}
	return nil
}

// SaveLogLogPNG writes fig at the default 6x4 inch size.
func SaveLogLogPNG(path string, fig Figure) error {
	return SaveLogLog(path, fig, 6*vg.Inch, 4*vg.Inch)
}

func positivePoints(s XYSeries) plotter.XYs {
	n := min(len(s.X), len(s.Y))
	out := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		x, y := s.X[i], s.Y[i]
		if !(x > 0) || !(y > 0) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			continue
		}
		out = append(out, plotter.XY{X: x, Y: y})
	}
	return out
}
