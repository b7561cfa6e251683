// Package evaluate runs one-shot, per-sample evaluation of several named
// predictors over a sample source.
package evaluate

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/Noofbiz/acousticEval/metrics"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Options configures an evaluation.
type Options struct {
	// Device every Placer predictor is moved to before the first call.
	// Empty selects DefaultDevice.
	Device string

	// Workers > 1 evaluates predictors concurrently, one goroutine per
	// predictor. Each predictor still visits the samples in source order.
	Workers int

	// Metrics configures the metric engine.
	Metrics metrics.Options

	// Report, if set, receives the human-readable summary.
	Report io.Writer
}

// sortedNames returns the predictor names in a deterministic order.
func sortedNames(predictors map[string]Predictor) []string {
	names := make([]string, 0, len(predictors))
	for name := range predictors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate computes the averaged metrics of every predictor over every
// sample of src. Any failure aborts the whole evaluation.
func Evaluate(predictors map[string]Predictor, src datasets.Source, opts Options) (map[string]metrics.Values, error) {
	if len(predictors) == 0 {
		return nil, fmt.Errorf("no predictors to evaluate")
	}
	if err := datasets.Validate(src); err != nil {
		return nil, err
	}
	names := sortedNames(predictors)
	for _, name := range names {
		if predictors[name] == nil {
			return nil, &PredictorError{Name: name, Index: -1, Err: fmt.Errorf("nil predictor")}
		}
		if err := Place(predictors[name], opts.Device); err != nil {
			return nil, &PredictorError{Name: name, Index: -1, Err: err}
		}
	}

	n := src.Len()
	klog.V(1).Infof("Evaluating %d models on %s samples", len(names), humanize.Comma(int64(n)))

	var records map[string]*metrics.Record
	var err error
	if opts.Workers > 1 && len(names) > 1 {
		records, err = evaluateParallel(predictors, names, src, opts)
	} else {
		records, err = evaluateSequential(predictors, names, src, opts)
	}
	if err != nil {
		return nil, err
	}

	results := make(map[string]metrics.Values, len(names))
	for _, name := range names {
		results[name] = records[name].Mean(n)
	}
	if opts.Report != nil {
		if err := WriteReport(opts.Report, results); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
	}
	return results, nil
}

// evaluateSample runs one predictor on one sample and returns its metrics.
func evaluateSample(p Predictor, s datasets.Sample, opts metrics.Options) (metrics.Values, error) {
	pred, err := PredictSample(p, s.X)
	if err != nil {
		return metrics.Values{}, err
	}
	return metrics.Compute(pred, s.Y, opts)
}

func evaluateSequential(predictors map[string]Predictor, names []string, src datasets.Source, opts Options) (map[string]*metrics.Record, error) {
	records := make(map[string]*metrics.Record, len(names))
	for _, name := range names {
		records[name] = &metrics.Record{}
	}

	n := src.Len()
	step := max(n/10, 1)
	for i := 0; i < n; i++ {
		s, err := src.Sample(i)
		if err != nil {
			return nil, fmt.Errorf("read sample %d: %w", i, err)
		}
		for _, name := range names {
			v, err := evaluateSample(predictors[name], s, opts.Metrics)
			if err != nil {
				return nil, &PredictorError{Name: name, Index: i, Err: err}
			}
			records[name].Add(v)
		}
		if (i+1)%step == 0 || i+1 == n {
			klog.V(2).Infof("[Evaluate] progress: %s/%s", humanize.Comma(int64(i+1)), humanize.Comma(int64(n)))
		}
	}
	return records, nil
}

// evaluateParallel gives every predictor its own goroutine. The source is
// only read, so concurrent Sample calls must be safe for it. Once one
// predictor fails the others stop at their next sample.
func evaluateParallel(predictors map[string]Predictor, names []string, src datasets.Source, opts Options) (map[string]*metrics.Record, error) {
	records := make([]*metrics.Record, len(names))
	errs := make([]error, len(names))
	var failed atomic.Bool

	// limit the number of predictors running at once
	sem := make(chan struct{}, opts.Workers)
	var wg sync.WaitGroup
	wg.Add(len(names))
	for k, name := range names {
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			rec := &metrics.Record{}
			p := predictors[name]
			for i := 0; i < src.Len(); i++ {
				if failed.Load() {
					return
				}
				s, err := src.Sample(i)
				if err != nil {
					errs[k] = fmt.Errorf("read sample %d: %w", i, err)
					failed.Store(true)
					return
				}
				v, err := evaluateSample(p, s, opts.Metrics)
				if err != nil {
					errs[k] = &PredictorError{Name: name, Index: i, Err: err}
					failed.Store(true)
					return
				}
				rec.Add(v)
			}
			records[k] = rec
		}()
	}
	wg.Wait()

	// report the first failure in name order
	out := make(map[string]*metrics.Record, len(names))
	for k, name := range names {
		if errs[k] != nil {
			return nil, errs[k]
		}
		out[name] = records[k]
	}
	return out, nil
}

// Infer runs p on a single sample for presentation. A nil index selects the
// middle sample. It returns the squeezed prediction and the target.
func Infer(p Predictor, src datasets.Source, index *int, device string) (pred, target *datasets.Field, err error) {
	if err := datasets.Validate(src); err != nil {
		return nil, nil, err
	}
	idx := src.Len() / 2
	if index != nil {
		idx = *index
	}
	if err := Place(p, device); err != nil {
		return nil, nil, err
	}
	s, err := src.Sample(idx)
	if err != nil {
		return nil, nil, err
	}
	pred, err = PredictSample(p, s.X)
	if err != nil {
		return nil, nil, fmt.Errorf("sample %d: %w", idx, err)
	}
	if err := metrics.CheckShapes(pred, s.Y); err != nil {
		return nil, nil, fmt.Errorf("sample %d: %w", idx, err)
	}
	return pred, s.Y, nil
}
