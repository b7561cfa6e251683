package evaluate

import (
	"fmt"

	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// DefaultDevice is used when no device is configured.
const DefaultDevice = "cpu"

// Predictor maps one batched input [1, C, H, W] to one batched output
// [1, D, H, W]. Implementations must not keep state between calls that
// affects their outputs.
type Predictor interface {
	Predict(x *datasets.Field) (*datasets.Field, error)
}

// PredictorFunc adapts a plain function to the Predictor interface.
type PredictorFunc func(x *datasets.Field) (*datasets.Field, error)

// Predict calls f(x).
func (f PredictorFunc) Predict(x *datasets.Field) (*datasets.Field, error) { return f(x) }

// Placer is implemented by predictors that must be moved to a compute device
// before their first call.
type Placer interface {
	Place(device string) error
}

// TensorPredictor adapts a gomlx forward function to the Predictor interface.
type TensorPredictor func(x *tensors.Tensor) (*tensors.Tensor, error)

// Predict converts x to a tensor, runs the forward function and converts the
// result back.
func (f TensorPredictor) Predict(x *datasets.Field) (*datasets.Field, error) {
	out, err := f(x.ToTensor())
	if err != nil {
		return nil, err
	}
	return datasets.FieldFromTensor(out)
}

// Place moves p to device when it implements Placer. An empty device selects
// DefaultDevice.
func Place(p Predictor, device string) error {
	if device == "" {
		device = DefaultDevice
	}
	placer, ok := p.(Placer)
	if !ok {
		return nil
	}
	if err := placer.Place(device); err != nil {
		return fmt.Errorf("place on %s: %w", device, err)
	}
	return nil
}

// PredictorError reports a failure while evaluating one predictor on one
// sample.
type PredictorError struct {
	Name  string
	Index int
	Err   error
}

func (e *PredictorError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("predictor %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("predictor %q, sample %d: %v", e.Name, e.Index, e.Err)
}

func (e *PredictorError) Unwrap() error { return e.Err }

// PredictSample runs p on a single unbatched input and squeezes the batch
// axis from the output.
func PredictSample(p Predictor, x *datasets.Field) (*datasets.Field, error) {
	out, err := p.Predict(x.Unsqueeze())
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("predictor returned no output")
	}
	return out.Squeeze(), nil
}
