// Package present renders predicted and true pressure sequences as static
// comparison figures, GIF animations and error plots.
package present

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Noofbiz/acousticEval/datasets"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
	"k8s.io/klog/v2"
)

// Default output paths used when RenderOptions.Path is empty.
const (
	DefaultPressurePath  = "pressure_results.png"
	DefaultAnimationPath = "pressure_evolution.gif"
	DefaultErrorPath     = "error_results.png"
)

// pressureRange is the fixed colour range of the static pressure comparison.
const pressureRange = 10.0

// RenderOptions selects what Render draws and where.
type RenderOptions struct {
	Kind Kind
	// Path of the output file; empty selects the kind's default path.
	Path string
	// Name is appended to figure titles when set.
	Name string
}

func (o RenderOptions) path() string {
	if o.Path != "" {
		return o.Path
	}
	return DefaultPath(o.Kind)
}

// DefaultPath is the output file written for kind when no path is given.
func DefaultPath(kind Kind) string {
	switch kind {
	case KindAnimation:
		return DefaultAnimationPath
	case KindError:
		return DefaultErrorPath
	}
	return DefaultPressurePath
}

func (o RenderOptions) title(s string) string {
	if o.Name == "" {
		return s
	}
	return fmt.Sprintf("%s (%s)", s, o.Name)
}

// Render draws the aligned pred/target sequences of [H, W] frames and returns
// the path written.
func Render(pred, target []*datasets.Field, opts RenderOptions) (string, error) {
	if !opts.Kind.Valid() {
		return "", fmt.Errorf("%w: %v", ErrInvalidKind, opts.Kind)
	}
	if err := checkSequences(pred, target); err != nil {
		return "", err
	}
	path := opts.path()
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return "", err
	}

	var err error
	switch opts.Kind {
	case KindPressure:
		err = renderPressure(pred, target, path, opts)
	case KindAnimation:
		klog.V(1).Infof("Saving animation to %s", path)
		err = renderAnimation(pred, target, path, opts)
	case KindError:
		err = renderError(pred, target, path, opts)
	}
	if err != nil {
		return "", fmt.Errorf("render %s: %w", opts.Kind, err)
	}
	return path, nil
}

func checkSequences(pred, target []*datasets.Field) error {
	if len(pred) == 0 {
		return fmt.Errorf("nothing to render")
	}
	if len(pred) != len(target) {
		return fmt.Errorf("sequence lengths differ: %d predicted, %d true", len(pred), len(target))
	}
	for k := range pred {
		if pred[k] == nil || target[k] == nil {
			return fmt.Errorf("frame %d is missing", k)
		}
		if pred[k].Rank() != 2 || !pred[k].SameShape(target[k]) {
			return fmt.Errorf("frame %d: expected matching [H, W] frames, got %v and %v", k, pred[k].Dims, target[k].Dims)
		}
		if pred[k].Size() == 0 {
			return fmt.Errorf("frame %d is empty", k)
		}
	}
	return nil
}

func renderPressure(pred, target []*datasets.Field, path string, opts RenderOptions) error {
	last := len(pred) - 1
	p, t := pred[last], target[last]
	diff := p.Clone()
	for i := range diff.Data {
		diff.Data[i] -= t.Data[i]
	}
	panels := []*plot.Plot{
		heatPanel(opts.title("Predicted Pressure"), p, -pressureRange, pressureRange),
		heatPanel(opts.title("Ground Truth Pressure"), t, -pressureRange, pressureRange),
		heatPanel(opts.title("Difference"), diff, -pressureRange, pressureRange),
	}
	return savePNG(drawRow(panels, 12*vg.Inch, 5*vg.Inch), path)
}

// fieldGrid adapts an [H, W] field to plotter.GridXYZ with row 0 drawn at
// the top.
type fieldGrid struct {
	f *datasets.Field
}

func (g fieldGrid) Dims() (c, r int) { return g.f.Dims[1], g.f.Dims[0] }

func (g fieldGrid) Z(c, r int) float64 {
	h, w := g.f.Dims[0], g.f.Dims[1]
	return float64(g.f.Data[(h-1-r)*w+c])
}

func (g fieldGrid) X(c int) float64 { return float64(c) }
func (g fieldGrid) Y(r int) float64 { return float64(r) }

// heatPanel plots f with a fixed colour range; values outside it saturate.
func heatPanel(title string, f *datasets.Field, lo, hi float64) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	pal := palette.Heat(64, 1)
	cols := pal.Colors()
	hm := plotter.NewHeatMap(fieldGrid{f: f}, pal)
	hm.Min, hm.Max = lo, hi
	hm.Underflow = cols[0]
	hm.Overflow = cols[len(cols)-1]
	p.Add(hm)
	p.HideAxes()
	return p
}

// drawRow lays plots out side by side on one image canvas.
func drawRow(plots []*plot.Plot, width, height vg.Length) *vgimg.Canvas {
	img := vgimg.New(width, height)
	dc := draw.New(img)
	t := draw.Tiles{
		Rows:      1,
		Cols:      len(plots),
		PadX:      vg.Millimeter,
		PadY:      vg.Millimeter,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
	}
	canvases := plot.Align([][]*plot.Plot{plots}, t, dc)
	for j, p := range plots {
		p.Draw(canvases[0][j])
	}
	return img
}

func savePNG(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
