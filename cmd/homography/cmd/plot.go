package cmd

import (
	"fmt"
	"math"
	"strconv"

	"homography-finder/pkg/colorutil"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveResidualPlot draws one bar per pair with the inlier threshold as a
// dashed line. The output format follows the file extension.
func SaveResidualPlot(path string, residuals []float64, threshold float64) error {
	p := plot.New()
	p.Title.Text = "Reprojection residuals"
	p.X.Label.Text = "Pair"
	p.Y.Label.Text = "Distance (px)"

	values := make(plotter.Values, len(residuals))
	labels := make([]string, len(residuals))
	for i, r := range residuals {
		values[i] = finite(r)
		labels[i] = strconv.Itoa(i + 1)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("could not draw residuals: %w", err)
	}
	bars.Color = colorutil.PointColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	limit := plotter.NewFunction(func(float64) float64 { return threshold })
	limit.Color = colorutil.SelectedColor
	limit.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(limit)
	p.Legend.Add("inlier threshold", limit)
	p.Legend.Top = true

	if err := p.Save(15*vg.Centimeter, 10*vg.Centimeter, path); err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}

// finite maps a residual of a point sent to infinity to -1.
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return -1
	}
	return v
}
