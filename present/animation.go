package present

import (
	"image"
	stdpalette "image/color/palette"
	imagedraw "image/draw"
	"image/gif"
	"math"
	"os"

	"github.com/Noofbiz/acousticEval/datasets"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// frameDelay is the GIF delay between frames in 100ths of a second.
const frameDelay = 5

// renderAnimation writes one GIF frame per time step with the prediction and
// the ground truth side by side on a shared colour range.
func renderAnimation(pred, target []*datasets.Field, path string, opts RenderOptions) error {
	lo, hi := sharedRange(pred, target)

	anim := &gif.GIF{}
	for k := range pred {
		panels := []*plot.Plot{
			heatPanel(opts.title("Prediction"), pred[k], lo, hi),
			heatPanel(opts.title("Ground Truth"), target[k], lo, hi),
		}
		img := drawRow(panels, 8*vg.Inch, 4*vg.Inch).Image()
		b := img.Bounds()
		frame := image.NewPaletted(b, stdpalette.Plan9)
		imagedraw.Draw(frame, b, img, b.Min, imagedraw.Src)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, frameDelay)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// sharedRange is the min and max over both sequences, widened when flat.
func sharedRange(pred, target []*datasets.Field) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, seq := range [][]*datasets.Field{pred, target} {
		for _, f := range seq {
			for _, v := range f.Data {
				lo = math.Min(lo, float64(v))
				hi = math.Max(hi, float64(v))
			}
		}
	}
	if hi <= lo {
		lo, hi = lo-1, hi+1
	}
	return lo, hi
}
