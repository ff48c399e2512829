package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// NewFilterPlot creates a plot of a filter run from three data sources,
// each a matrix whose rows are (time, value) pairs of one plotted
// coordinate:
// truth:    simulated reference values
// measured: measurement values
// filtered: filtered state estimates
// It returns error if either of the supplied data matrices is nil or does
// not have at least 2 columns, or if the plot fails to be created.
func NewFilterPlot(truth, measured, filtered *mat.Dense) (*plot.Plot, error) {
	if truth == nil || measured == nil || filtered == nil {
		return nil, fmt.Errorf("invalid data supplied")
	}

	for _, m := range []*mat.Dense{truth, measured, filtered} {
		if _, c := m.Dims(); c < 2 {
			return nil, fmt.Errorf("invalid data dimensions")
		}
	}

	p := plot.New()

	p.Title.Text = "Filter run"
	p.X.Label.Text = "time"
	p.Y.Label.Text = "state"

	legend := plot.NewLegend()
	legend.Top = true
	p.Legend = legend

	truthLine, err := plotter.NewLine(makePoints(truth))
	if err != nil {
		return nil, err
	}
	truthLine.Color = color.RGBA{R: 255, B: 128, A: 255}

	p.Add(truthLine)
	p.Legend.Add("truth", truthLine)

	measScatter, err := plotter.NewScatter(makePoints(measured))
	if err != nil {
		return nil, err
	}
	measScatter.GlyphStyle.Color = color.RGBA{G: 255, A: 128}
	measScatter.GlyphStyle.Radius = vg.Points(2)

	p.Add(measScatter)
	p.Legend.Add("measured", measScatter)

	filterScatter, err := plotter.NewScatter(makePoints(filtered))
	if err != nil {
		return nil, fmt.Errorf("failed to create scatter: %v", err)
	}
	filterScatter.GlyphStyle.Color = color.RGBA{R: 169, G: 169, B: 169}
	filterScatter.Shape = draw.CrossGlyph{}
	filterScatter.GlyphStyle.Radius = vg.Points(2)

	p.Add(filterScatter)
	p.Legend.Add("filtered", filterScatter)

	return p, nil
}

func makePoints(m *mat.Dense) plotter.XYs {
	r, _ := m.Dims()
	pts := make(plotter.XYs, r)
	for i := 0; i < r; i++ {
		pts[i].X = m.At(i, 0)
		pts[i].Y = m.At(i, 1)
	}

	return pts
}
