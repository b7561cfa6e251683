package present

import (
	"image/color"
	"math"

	"github.com/Noofbiz/acousticEval/datasets"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// histogramBins is the bin count of the error distribution.
const histogramBins = 30

// StepErrors is the mean absolute error of every time step.
func StepErrors(pred, target []*datasets.Field) []float64 {
	out := make([]float64, len(pred))
	for k := range pred {
		var sum float64
		for i := range pred[k].Data {
			sum += math.Abs(float64(pred[k].Data[i]) - float64(target[k].Data[i]))
		}
		out[k] = sum / float64(len(pred[k].Data))
	}
	return out
}

func renderError(pred, target []*datasets.Field, path string, opts RenderOptions) error {
	mae := StepErrors(pred, target)

	evolution := plot.New()
	evolution.Title.Text = opts.title("Error Evolution Over Time")
	evolution.X.Label.Text = "Time Step"
	evolution.Y.Label.Text = "Error"
	xys := make(plotter.XYs, len(mae))
	for k, v := range mae {
		xys[k] = plotter.XY{X: float64(k), Y: v}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	line.Width = vg.Points(1.2)
	evolution.Add(line, plotter.NewGrid())
	evolution.Legend.Add("Mean Absolute Error", line)

	distribution := plot.New()
	distribution.Title.Text = opts.title("Distribution of Prediction Errors")
	distribution.X.Label.Text = "Error Magnitude"
	distribution.Y.Label.Text = "Count"
	hist, err := plotter.NewHist(plotter.Values(mae), histogramBins)
	if err != nil {
		return err
	}
	hist.FillColor = color.RGBA{R: 20, G: 80, B: 200, A: 140}
	distribution.Add(hist)

	return savePNG(drawRow([]*plot.Plot{evolution, distribution}, 12*vg.Inch, 5*vg.Inch), path)
}
