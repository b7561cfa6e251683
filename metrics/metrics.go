// Package metrics compares predicted pressure fields against ground truth.
//
// The trailing two axes of every field form the spatial domain; each leading
// index selects one slice (a time step, a channel or a batch entry). The
// functional-norm losses are relative per slice and summed over slices, so a
// single [H, W] frame yields the plain relative error of that frame while a
// [D, H, W] window yields the sum over its D frames.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/Noofbiz/acousticEval/datasets"
)

var (
	// ErrShapeMismatch is returned when prediction and target shapes differ.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrDegenerateNorm is returned under NormError when a relative error
	// has a zero-norm target.
	ErrDegenerateNorm = errors.New("degenerate target norm")
)

// ShapeMismatchError describes incompatible prediction and target shapes.
type ShapeMismatchError struct {
	Pred, Target []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: prediction %v, target %v", e.Pred, e.Target)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// NormPolicy selects how a zero-norm target is handled.
type NormPolicy int

const (
	// NormError reports ErrDegenerateNorm.
	NormError NormPolicy = iota
	// NormPropagate returns the IEEE-754 result (NaN or +Inf).
	NormPropagate
)

// Options configures the metric computation.
type Options struct {
	// DomainLength is the physical length L of each spatial axis used for
	// the H1 finite differences (h = L/n). Defaults to 2π.
	DomainLength float64

	// Policy for zero-norm targets. Defaults to NormError.
	Policy NormPolicy

	// SkipRelL2 leaves RelL2 at zero without evaluating it.
	SkipRelL2 bool
}

func (o Options) withDefaults() Options {
	if o.DomainLength <= 0 {
		o.DomainLength = 2 * math.Pi
	}
	return o
}

// Metric names in report order.
const (
	MSE      = "mse"
	L2Loss   = "l2_loss"
	H1Loss   = "h1_loss"
	RelL2    = "rel_l2"
	MaxError = "max_error"
)

// Values holds one value per metric.
type Values struct {
	MSE      float64
	L2Loss   float64
	H1Loss   float64
	RelL2    float64
	MaxError float64
}

// Get returns the value of the named metric.
func (v Values) Get(name string) (float64, bool) {
	switch name {
	case MSE:
		return v.MSE, true
	case L2Loss:
		return v.L2Loss, true
	case H1Loss:
		return v.H1Loss, true
	case RelL2:
		return v.RelL2, true
	case MaxError:
		return v.MaxError, true
	}
	return 0, false
}

// Map returns the values keyed by metric name.
func (v Values) Map() map[string]float64 {
	return map[string]float64{
		MSE:      v.MSE,
		L2Loss:   v.L2Loss,
		H1Loss:   v.H1Loss,
		RelL2:    v.RelL2,
		MaxError: v.MaxError,
	}
}

// Names lists every metric in report order.
func Names() []string {
	return []string{MSE, L2Loss, H1Loss, RelL2, MaxError}
}

// CheckShapes fails fast when pred and target cannot be compared.
func CheckShapes(pred, target *datasets.Field) error {
	if pred == nil || target == nil {
		return fmt.Errorf("%w: nil field", ErrShapeMismatch)
	}
	if !pred.SameShape(target) {
		return &ShapeMismatchError{Pred: pred.Dims, Target: target.Dims}
	}
	if pred.Rank() < 2 {
		return fmt.Errorf("%w: fields need at least 2 spatial axes, got %v", ErrShapeMismatch, pred.Dims)
	}
	return nil
}

// Compute returns every metric for one (prediction, target) pair.
func Compute(pred, target *datasets.Field, opts Options) (Values, error) {
	if err := CheckShapes(pred, target); err != nil {
		return Values{}, err
	}
	opts = opts.withDefaults()

	var v Values
	v.MSE, v.MaxError = squaredAndMax(pred.Data, target.Data)

	var err error
	if !opts.SkipRelL2 {
		if v.RelL2, err = relativeNorm(pred.Data, target.Data, opts.Policy); err != nil {
			return Values{}, fmt.Errorf("rel_l2: %w", err)
		}
	}
	if v.L2Loss, err = LpLoss(pred, target, opts); err != nil {
		return Values{}, fmt.Errorf("l2_loss: %w", err)
	}
	if v.H1Loss, err = H1(pred, target, opts); err != nil {
		return Values{}, fmt.Errorf("h1_loss: %w", err)
	}
	return v, nil
}

func squaredAndMax(pred, target []float32) (mse, maxErr float64) {
	if len(pred) == 0 {
		return 0, 0
	}
	var sum float64
	for i := range pred {
		d := float64(pred[i]) - float64(target[i])
		sum += d * d
		if a := math.Abs(d); a > maxErr {
			maxErr = a
		}
	}
	return sum / float64(len(pred)), maxErr
}

// relativeNorm is ‖pred − target‖₂ / ‖target‖₂ over the given elements. It
// backs both rel_l2 and every slice of l2_loss.
func relativeNorm(pred, target []float32, policy NormPolicy) (float64, error) {
	var diff, norm float64
	for i := range pred {
		d := float64(pred[i]) - float64(target[i])
		diff += d * d
		norm += float64(target[i]) * float64(target[i])
	}
	return ratio(math.Sqrt(diff), math.Sqrt(norm), policy)
}

func ratio(num, den float64, policy NormPolicy) (float64, error) {
	if den == 0 && policy == NormError {
		return 0, ErrDegenerateNorm
	}
	return num / den, nil
}

// slices splits a field into its [H, W] spatial slices.
func slices(f *datasets.Field) (count, h, w int) {
	r := f.Rank()
	h, w = f.Dims[r-2], f.Dims[r-1]
	if h*w == 0 {
		return 0, h, w
	}
	return f.Size() / (h * w), h, w
}

// LpLoss is the relative L2 functional loss summed over spatial slices.
func LpLoss(pred, target *datasets.Field, opts Options) (float64, error) {
	if err := CheckShapes(pred, target); err != nil {
		return 0, err
	}
	n, h, w := slices(target)
	plane := h * w
	var total float64
	for s := 0; s < n; s++ {
		r, err := relativeNorm(pred.Data[s*plane:(s+1)*plane], target.Data[s*plane:(s+1)*plane], opts.Policy)
		if err != nil {
			return 0, fmt.Errorf("slice %d: %w", s, err)
		}
		total += r
	}
	return total, nil
}

// H1 is the relative H1 Sobolev loss summed over spatial slices. Gradients
// use periodic central differences with spacing DomainLength/n.
func H1(pred, target *datasets.Field, opts Options) (float64, error) {
	if err := CheckShapes(pred, target); err != nil {
		return 0, err
	}
	opts = opts.withDefaults()
	n, h, w := slices(target)
	plane := h * w
	hy := opts.DomainLength / float64(h)
	hx := opts.DomainLength / float64(w)

	diff := make([]float64, plane)
	tv := make([]float64, plane)
	var total float64
	for s := 0; s < n; s++ {
		p := pred.Data[s*plane : (s+1)*plane]
		t := target.Data[s*plane : (s+1)*plane]
		for k := range p {
			diff[k] = float64(p[k]) - float64(t[k])
			tv[k] = float64(t[k])
		}
		num := sobolevSquared(diff, h, w, hy, hx)
		den := sobolevSquared(tv, h, w, hy, hx)
		r, err := ratio(math.Sqrt(num), math.Sqrt(den), opts.Policy)
		if err != nil {
			return 0, fmt.Errorf("slice %d: %w", s, err)
		}
		total += r
	}
	return total, nil
}

// sobolevSquared returns ‖u‖² + ‖∂y u‖² + ‖∂x u‖² for one periodic h×w plane.
func sobolevSquared(u []float64, h, w int, hy, hx float64) float64 {
	var sum float64
	for i := 0; i < h; i++ {
		up, down := (i+h-1)%h, (i+1)%h
		for j := 0; j < w; j++ {
			left, right := (j+w-1)%w, (j+1)%w
			v := u[i*w+j]
			dy := (u[down*w+j] - u[up*w+j]) / (2 * hy)
			dx := (u[i*w+right] - u[i*w+left]) / (2 * hx)
			sum += v*v + dy*dy + dx*dx
		}
	}
	return sum
}
