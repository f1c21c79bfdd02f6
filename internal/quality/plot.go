package quality

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PlotQuality saves the drift in particle count and the fraction dropped
// against frame number as an image. The format follows the file extension
// (png, svg, pdf).
func PlotQuality(q *Quality, path string) error {
	if len(q.Samples) == 0 {
		return fmt.Errorf("no quality samples to plot")
	}
	p := plot.New()
	p.Title.Text = "Tracking quality"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Fraction of N0"

	drift, dropped := q.Drift(), q.Dropped()
	driftPts := make(plotter.XYs, len(q.Samples))
	droppedPts := make(plotter.XYs, len(q.Samples))
	for i, s := range q.Samples {
		driftPts[i] = plotter.XY{X: float64(s.Frame), Y: drift[i]}
		droppedPts[i] = plotter.XY{X: float64(s.Frame), Y: dropped[i]}
	}

	driftSc, err := plotter.NewScatter(driftPts)
	if err != nil {
		return fmt.Errorf("drift series: %w", err)
	}
	driftSc.GlyphStyle.Color = color.RGBA{B: 255, A: 255}
	driftSc.GlyphStyle.Shape = draw.CircleGlyph{}

	droppedSc, err := plotter.NewScatter(droppedPts)
	if err != nil {
		return fmt.Errorf("dropped series: %w", err)
	}
	droppedSc.GlyphStyle.Color = color.RGBA{R: 255, A: 255}
	droppedSc.GlyphStyle.Shape = draw.TriangleGlyph{}

	p.Add(driftSc, droppedSc, plotter.NewGrid())
	p.Legend.Add("(N - N0) / N0", driftSc)
	p.Legend.Add("fraction dropped", droppedSc)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save quality plot %s: %w", path, err)
	}
	return nil
}
