package calibration

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

func series(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	return pts
}

// PlotRadius draws the raw, offset and corrected radius of every sample to an image file whose
// format follows the extension of path, e.g. ".png" or ".svg".
func PlotRadius(samples []r3.Vector, est *Estimate, title, path string) error {
	if len(samples) == 0 {
		return errors.New("no samples to plot")
	}
	raw, offset, scaled := est.Radii(samples)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "radius"
	p.Add(plotter.NewGrid())
	if err := plotutil.AddLines(p,
		"raw", series(raw),
		"offset ("+string(est.Method)+")", series(offset),
		"scaled ("+string(est.Method)+")", series(scaled),
	); err != nil {
		return errors.Wrap(err, "building radius plot")
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
