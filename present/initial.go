package present

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/Noofbiz/acousticEval/datasets"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// DefaultInitialPath is used by PlotInitialConditions without a path.
const DefaultInitialPath = "initial_conditions.png"

// PlotInitialConditions draws the first target pressure frame, the velocity
// magnitude and the alpha field of one sample. Velocity and alpha fall back
// to input channels 1-2 and 3 when the sample does not carry them.
func PlotInitialConditions(s datasets.Sample, path string) (string, error) {
	if path == "" {
		path = DefaultInitialPath
	}
	if s.Y == nil || s.Y.Rank() != 3 {
		return "", fmt.Errorf("sample target must be [D, H, W]")
	}
	pressure, err := s.Y.Frame(0)
	if err != nil {
		return "", err
	}
	velocity, alpha, err := auxiliary(s)
	if err != nil {
		return "", err
	}
	speed := magnitude(velocity)
	if !speed.SameShape(pressure) || !alpha.SameShape(pressure) {
		return "", fmt.Errorf("auxiliary fields %v, %v do not match pressure grid %v", speed.Dims, alpha.Dims, pressure.Dims)
	}

	panels := make([]*plot.Plot, 0, 3)
	for _, p := range []struct {
		title string
		f     *datasets.Field
	}{
		{"Pressure", pressure},
		{"Velocity", speed},
		{"Alpha", alpha},
	} {
		lo, hi := sharedRange([]*datasets.Field{p.f}, nil)
		panels = append(panels, heatPanel(p.title, p.f, lo, hi))
	}

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	if err := savePNG(drawRow(panels, 15*vg.Inch, 5*vg.Inch), path); err != nil {
		return "", fmt.Errorf("render initial conditions: %w", err)
	}
	return path, nil
}

func auxiliary(s datasets.Sample) (velocity, alpha *datasets.Field, err error) {
	velocity, alpha = s.V, s.A
	if velocity == nil {
		if s.X == nil || s.X.Len() < 3 {
			return nil, nil, fmt.Errorf("sample has no velocity")
		}
		vx, _ := s.X.Frame(1)
		vy, _ := s.X.Frame(2)
		if velocity, err = datasets.Stack([]*datasets.Field{vx, vy}); err != nil {
			return nil, nil, err
		}
	}
	if alpha == nil {
		if s.X == nil || s.X.Len() < 4 {
			return nil, nil, fmt.Errorf("sample has no alpha field")
		}
		alpha, _ = s.X.Frame(3)
	}
	if velocity.Rank() != 3 || velocity.Dims[0] != 2 {
		return nil, nil, fmt.Errorf("velocity must be [2, H, W], got %v", velocity.Dims)
	}
	return velocity, alpha, nil
}

// magnitude turns a [2, H, W] velocity into its [H, W] speed.
func magnitude(v *datasets.Field) *datasets.Field {
	vx, _ := v.Frame(0)
	vy, _ := v.Frame(1)
	out := datasets.NewField(vx.Dims...)
	for i := range out.Data {
		out.Data[i] = float32(math.Hypot(float64(vx.Data[i]), float64(vy.Data[i])))
	}
	return out
}
