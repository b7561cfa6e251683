// Package rollout evaluates a predictor autoregressively: the last frame it
// predicts for one window becomes the initial condition of the next window,
// and the fresh frames of every window are stitched into one sequence aligned
// with the source's sample order.
package rollout

import (
	"fmt"
	"io"

	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/Noofbiz/acousticEval/evaluate"
	"github.com/Noofbiz/acousticEval/metrics"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Options configures a rollout.
type Options struct {
	// Device the predictor is placed on before the first window. Empty
	// selects evaluate.DefaultDevice.
	Device string

	// ComputeMetrics averages per-frame metrics over the stitched sequence.
	ComputeMetrics bool

	// Metrics configures the metric engine.
	Metrics metrics.Options

	// Name labels the predictor in errors and in the report.
	Name string

	// Report, if set together with ComputeMetrics, receives the summary.
	Report io.Writer
}

// State is the value carried from one window to the next.
type State struct {
	// InitCond is the [H, W] frame written into channel 0 of the next input.
	InitCond *datasets.Field
}

// Segment holds the fresh D-1 frames one window contributes to the stitched
// sequence.
type Segment struct {
	True []*datasets.Field
	Pred []*datasets.Field
}

// Result is a finished rollout. True and Pred have exactly one [H, W] frame
// per source sample; Pred[k] is the prediction for the target of sample k.
type Result struct {
	True []*datasets.Field
	Pred []*datasets.Field

	// Metrics is nil unless Options.ComputeMetrics was set. RelL2 is not
	// computed on this path and stays zero.
	Metrics *metrics.Values

	// Windows is the number of predictor calls.
	Windows int
}

// Len is the length of the stitched sequence.
func (r *Result) Len() int { return len(r.True) }

// InitialState seeds a rollout from the first input frame of sample 0.
func InitialState(src datasets.Source) (State, error) {
	first, err := src.Sample(0)
	if err != nil {
		return State{}, fmt.Errorf("read sample 0: %w", err)
	}
	init, err := first.X.Frame(0)
	if err != nil {
		return State{}, fmt.Errorf("initial condition: %w", err)
	}
	return State{InitCond: init}, nil
}

// Step runs one window. The sample is not modified: its input is cloned
// before channel 0 is replaced with the carried initial condition. The
// returned segment and state never share memory with each other, with the
// sample or with the predictor output.
func Step(p evaluate.Predictor, s datasets.Sample, state State) (Segment, State, error) {
	if state.InitCond == nil {
		return Segment{}, State{}, fmt.Errorf("missing initial condition")
	}
	x := s.X.Clone()
	if err := x.SetFrame(0, state.InitCond); err != nil {
		return Segment{}, State{}, fmt.Errorf("seed input: %w", err)
	}

	pred, err := evaluate.PredictSample(p, x)
	if err != nil {
		return Segment{}, State{}, err
	}
	if err := metrics.CheckShapes(pred, s.Y); err != nil {
		return Segment{}, State{}, err
	}

	d := s.Y.Len()
	last, err := pred.Frame(d - 1)
	if err != nil {
		return Segment{}, State{}, err
	}
	trueFrames, err := s.Y.Frames(0, d-1)
	if err != nil {
		return Segment{}, State{}, err
	}
	predFrames, err := pred.Frames(0, d-1)
	if err != nil {
		return Segment{}, State{}, err
	}
	return Segment{True: trueFrames, Pred: predFrames}, State{InitCond: last}, nil
}

// Run walks src in strides of D-1 samples, one predictor call per window,
// and returns the stitched sequence truncated to the source length. Any
// failure aborts the run without a partial result.
func Run(p evaluate.Predictor, src datasets.Source, opts Options) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("nil predictor")
	}
	if err := datasets.Validate(src); err != nil {
		return nil, err
	}
	if err := evaluate.Place(p, opts.Device); err != nil {
		return nil, &evaluate.PredictorError{Name: opts.Name, Index: -1, Err: err}
	}

	state, err := InitialState(src)
	if err != nil {
		return nil, err
	}

	n, d := src.Len(), src.Depth()
	stride := d - 1
	res := &Result{
		True: make([]*datasets.Field, 0, n+stride),
		Pred: make([]*datasets.Field, 0, n+stride),
	}
	for i := 0; i < n; i += stride {
		s, err := src.Sample(i)
		if err != nil {
			return nil, fmt.Errorf("read sample %d: %w", i, err)
		}
		seg, next, err := Step(p, s, state)
		if err != nil {
			return nil, &evaluate.PredictorError{Name: opts.Name, Index: i, Err: err}
		}
		res.True = append(res.True, seg.True...)
		res.Pred = append(res.Pred, seg.Pred...)
		state = next
		res.Windows++
	}

	// the last window may overshoot; drop its tail
	res.True = res.True[:n:n]
	res.Pred = res.Pred[:n:n]
	klog.V(1).Infof("Sampled %s frames in %s windows", humanize.Comma(int64(n)), humanize.Comma(int64(res.Windows)))

	if opts.ComputeMetrics {
		v, err := FrameMetrics(res.True, res.Pred, opts.Metrics)
		if err != nil {
			return nil, err
		}
		res.Metrics = &v
		if opts.Report != nil {
			if err := WriteReport(opts.Report, opts.Name, v); err != nil {
				return nil, fmt.Errorf("write report: %w", err)
			}
		}
	}
	return res, nil
}

// FrameMetrics evaluates each aligned (true, pred) frame pair on its own and
// averages mse, l2_loss, h1_loss and max_error over the sequence length.
func FrameMetrics(trueSeq, predSeq []*datasets.Field, opts metrics.Options) (metrics.Values, error) {
	if len(trueSeq) != len(predSeq) {
		return metrics.Values{}, fmt.Errorf("%w: %d true frames, %d predicted", metrics.ErrShapeMismatch, len(trueSeq), len(predSeq))
	}
	opts.SkipRelL2 = true
	var rec metrics.Record
	for k := range trueSeq {
		v, err := metrics.Compute(predSeq[k], trueSeq[k], opts)
		if err != nil {
			return metrics.Values{}, fmt.Errorf("frame %d: %w", k, err)
		}
		rec.Add(v)
	}
	return rec.Mean(len(trueSeq)), nil
}
