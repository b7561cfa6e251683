package evaluate

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/Noofbiz/acousticEval/metrics"
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// echoSource builds n samples whose input equals their target, so an
// identity predictor reproduces the ground truth exactly.
func echoSource(t *testing.T, n, depth, h, w int, seed int64) *datasets.MemorySource {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	samples := make([]datasets.Sample, n)
	for i := range samples {
		y := datasets.NewField(depth, h, w)
		for k := range y.Data {
			y.Data[k] = rng.Float32() + 0.5
		}
		samples[i] = datasets.Sample{X: y.Clone(), Y: y}
	}
	src, err := datasets.NewMemorySource(depth, samples)
	if err != nil {
		t.Fatalf("NewMemorySource error: %v", err)
	}
	return src
}

func identity() Predictor {
	return PredictorFunc(func(x *datasets.Field) (*datasets.Field, error) {
		return x.Clone(), nil
	})
}

func offset(c float32) Predictor {
	return PredictorFunc(func(x *datasets.Field) (*datasets.Field, error) {
		out := x.Clone()
		for i := range out.Data {
			out.Data[i] += c
		}
		return out, nil
	})
}

func TestEvaluateIdentityAndOffset(t *testing.T) {
	src := echoSource(t, 6, 3, 4, 4, 1)
	const c = 0.25
	results, err := Evaluate(map[string]Predictor{
		"identity": identity(),
		"offset":   offset(c),
	}, src, Options{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	id := results["identity"]
	if id.MSE != 0 || id.L2Loss != 0 || id.H1Loss != 0 || id.RelL2 != 0 || id.MaxError != 0 {
		t.Fatalf("expected zero metrics for identity, got %+v", id)
	}
	off := results["offset"]
	if !approxEqual(off.MSE, c*c, 1e-6) {
		t.Fatalf("expected offset mse %v, got %v", c*c, off.MSE)
	}
	if !approxEqual(off.MaxError, c, 1e-6) {
		t.Fatalf("expected offset max error %v, got %v", c, off.MaxError)
	}
	if off.L2Loss <= 0 || off.RelL2 <= 0 {
		t.Fatalf("expected positive relative errors, got %+v", off)
	}
}

func TestEvaluateVisitsEverySampleInOrder(t *testing.T) {
	src := echoSource(t, 5, 2, 2, 2, 2)
	var seen []float32
	recorder := PredictorFunc(func(x *datasets.Field) (*datasets.Field, error) {
		seen = append(seen, x.Data[0])
		return x.Clone(), nil
	})
	if _, err := Evaluate(map[string]Predictor{"rec": recorder}, src, Options{}); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(seen) != src.Len() {
		t.Fatalf("expected %d calls, got %d", src.Len(), len(seen))
	}
	for i := range seen {
		s, _ := src.Sample(i)
		if seen[i] != s.X.Data[0] {
			t.Fatalf("call %d saw sample out of order", i)
		}
	}
}

func TestEvaluateParallelMatchesSequential(t *testing.T) {
	src := echoSource(t, 8, 3, 5, 5, 3)
	preds := map[string]Predictor{
		"a": offset(0.1),
		"b": offset(-0.3),
		"c": identity(),
	}
	seq, err := Evaluate(preds, src, Options{})
	if err != nil {
		t.Fatalf("sequential Evaluate error: %v", err)
	}
	par, err := Evaluate(preds, src, Options{Workers: 3})
	if err != nil {
		t.Fatalf("parallel Evaluate error: %v", err)
	}
	for name, v := range seq {
		p := par[name]
		for _, m := range metrics.Names() {
			a, _ := v.Get(m)
			b, _ := p.Get(m)
			if !approxEqual(a, b, 1e-9) {
				t.Fatalf("%s/%s: sequential %v parallel %v", name, m, a, b)
			}
		}
	}
}

func TestEvaluateFailureCarriesContext(t *testing.T) {
	src := echoSource(t, 4, 2, 3, 3, 4)
	boom := errors.New("device fault")
	calls := 0
	failing := PredictorFunc(func(x *datasets.Field) (*datasets.Field, error) {
		calls++
		if calls == 3 {
			return nil, boom
		}
		return x.Clone(), nil
	})
	for _, workers := range []int{0, 2} {
		calls = 0
		_, err := Evaluate(map[string]Predictor{"bad": failing, "good": identity()}, src, Options{Workers: workers})
		if !errors.Is(err, boom) {
			t.Fatalf("workers=%d: expected wrapped device fault, got %v", workers, err)
		}
		var pe *PredictorError
		if !errors.As(err, &pe) || pe.Name != "bad" || pe.Index != 2 {
			t.Fatalf("workers=%d: expected PredictorError for bad at 2, got %v", workers, err)
		}
	}
}

func TestEvaluateParallelStopsAfterFailure(t *testing.T) {
	src := echoSource(t, 50, 2, 2, 2, 7)
	failedOnce := make(chan struct{})
	failing := PredictorFunc(func(x *datasets.Field) (*datasets.Field, error) {
		close(failedOnce)
		return nil, errors.New("boom")
	})
	var calls atomic.Int32
	slow := PredictorFunc(func(x *datasets.Field) (*datasets.Field, error) {
		if calls.Add(1) == 1 {
			<-failedOnce
		}
		time.Sleep(5 * time.Millisecond)
		return x.Clone(), nil
	})
	_, err := Evaluate(map[string]Predictor{"bad": failing, "slow": slow}, src, Options{Workers: 2})
	var pe *PredictorError
	if !errors.As(err, &pe) || pe.Name != "bad" || pe.Index != 0 {
		t.Fatalf("expected PredictorError for bad at 0, got %v", err)
	}
	if got := int(calls.Load()); got >= src.Len() {
		t.Fatalf("slow predictor ran all %d samples after the failure", got)
	}
}

func TestEvaluateShapeMismatch(t *testing.T) {
	src := echoSource(t, 2, 3, 3, 3, 5)
	truncating := PredictorFunc(func(x *datasets.Field) (*datasets.Field, error) {
		return datasets.NewField(1, 2, 3, 3), nil
	})
	_, err := Evaluate(map[string]Predictor{"short": truncating}, src, Options{})
	if !errors.Is(err, metrics.ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

type placedPredictor struct {
	device string
	calls  int
}

func (p *placedPredictor) Place(device string) error {
	p.device = device
	return nil
}

func (p *placedPredictor) Predict(x *datasets.Field) (*datasets.Field, error) {
	if p.device == "" {
		return nil, errors.New("called before placement")
	}
	p.calls++
	return x.Clone(), nil
}

func TestEvaluatePlacesPredictors(t *testing.T) {
	src := echoSource(t, 3, 2, 2, 2, 6)
	p := &placedPredictor{}
	if _, err := Evaluate(map[string]Predictor{"m": p}, src, Options{}); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if p.device != DefaultDevice || p.calls != 3 {
		t.Fatalf("unexpected placement: device=%q calls=%d", p.device, p.calls)
	}
	q := &placedPredictor{}
	if _, err := Evaluate(map[string]Predictor{"m": q}, src, Options{Device: "cuda:0"}); err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if q.device != "cuda:0" {
		t.Fatalf("expected configured device, got %q", q.device)
	}
}

func TestEvaluateRejectsEmptyInput(t *testing.T) {
	src := echoSource(t, 1, 2, 2, 2, 7)
	if _, err := Evaluate(nil, src, Options{}); err == nil {
		t.Fatalf("expected error without predictors")
	}
	if _, err := Evaluate(map[string]Predictor{"m": identity()}, nil, Options{}); !errors.Is(err, datasets.ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
}

func TestReportFormat(t *testing.T) {
	src := echoSource(t, 2, 2, 3, 3, 8)
	var buf bytes.Buffer
	_, err := Evaluate(map[string]Predictor{"zeta": offset(0.5), "alpha": identity()}, src, Options{Report: &buf})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	out := buf.String()
	ia := strings.Index(out, "Average results for model 'alpha':")
	iz := strings.Index(out, "Average results for model 'zeta':")
	if ia < 0 || iz < 0 || ia > iz {
		t.Fatalf("expected sorted model blocks, got:\n%s", out)
	}
	if !strings.Contains(out, "  MSE:         0.250000\n") {
		t.Fatalf("expected 6-decimal mse line for zeta, got:\n%s", out)
	}
	for _, label := range []string{"L2 Loss:", "H1 Loss:", "Relative L2:", "Max Error:"} {
		if strings.Count(out, label) != 2 {
			t.Fatalf("expected %q in both blocks, got:\n%s", label, out)
		}
	}
}

func TestTensorPredictorAdapter(t *testing.T) {
	src := echoSource(t, 3, 2, 2, 3, 9)
	var sawDims []int
	p := TensorPredictor(func(x *tensors.Tensor) (*tensors.Tensor, error) {
		sawDims = x.Shape().Dimensions
		return x, nil
	})
	results, err := Evaluate(map[string]Predictor{"tensor": p}, src, Options{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if len(sawDims) != 4 || sawDims[0] != 1 {
		t.Fatalf("expected a batched 4D input tensor, got %v", sawDims)
	}
	if results["tensor"].MSE != 0 {
		t.Fatalf("expected zero mse for identity tensor predictor, got %v", results["tensor"].MSE)
	}
}

func TestInferDefaultsToMiddleSample(t *testing.T) {
	src := echoSource(t, 5, 2, 2, 2, 10)
	pred, target, err := Infer(identity(), src, nil, "")
	if err != nil {
		t.Fatalf("Infer error: %v", err)
	}
	mid, _ := src.Sample(2)
	if target != mid.Y || !pred.SameShape(mid.Y) || pred.Data[0] != mid.Y.Data[0] {
		t.Fatalf("expected middle sample, got target %v", target.Data)
	}
	idx := 9
	if _, _, err := Infer(identity(), src, &idx, ""); err == nil {
		t.Fatalf("expected out of range error")
	}
}
