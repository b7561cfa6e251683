package baseline

import (
	"math"
	"testing"

	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/Noofbiz/acousticEval/evaluate"
	"github.com/Noofbiz/acousticEval/rollout"
)

func input(c, h, w int) *datasets.Field {
	x := datasets.NewField(1, c, h, w)
	for i := range x.Data {
		x.Data[i] = float32(i%7) - 3
	}
	return x
}

func TestNewModelDefaults(t *testing.T) {
	m, err := NewModel(Config{Depth: 3})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if m.Config.Kind != Persistence || m.Config.Decay != 0.95 {
		t.Fatalf("unexpected defaults %+v", m.Config)
	}
	if _, err := NewModel(Config{Depth: 1}); err == nil {
		t.Fatalf("expected error for depth 1")
	}
	if _, err := NewModel(Config{Kind: "mlp", Depth: 3}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestPredictShapesAndGains(t *testing.T) {
	const c, h, w, d = 4, 3, 5, 3
	x := input(c, h, w)
	plane := h * w
	for _, tc := range []struct {
		kind  string
		gains []float32
	}{
		{Persistence, []float32{1, 1, 1}},
		{Zero, []float32{0, 0, 0}},
		{Damped, []float32{1, 0.5, 0.25}},
	} {
		m, err := NewModel(Config{Kind: tc.kind, Depth: d, Decay: 0.5})
		if err != nil {
			t.Fatalf("%s: NewModel error: %v", tc.kind, err)
		}
		out, err := m.Predict(x)
		if err != nil {
			t.Fatalf("%s: Predict error: %v", tc.kind, err)
		}
		if len(out.Dims) != 4 || out.Dims[0] != 1 || out.Dims[1] != d || out.Dims[2] != h || out.Dims[3] != w {
			t.Fatalf("%s: unexpected output dims %v", tc.kind, out.Dims)
		}
		for k, g := range tc.gains {
			for i := 0; i < plane; i++ {
				want := g * x.Data[i]
				if got := out.Data[k*plane+i]; math.Abs(float64(got-want)) > 1e-6 {
					t.Fatalf("%s: frame %d cell %d: expected %v, got %v", tc.kind, k, i, want, got)
				}
			}
		}
	}

	m, _ := NewModel(Config{Depth: d})
	if _, err := m.Predict(datasets.NewField(c, h, w)); err == nil {
		t.Fatalf("expected error for unbatched input")
	}
}

func TestParseModels(t *testing.T) {
	models, err := ParseModels("persistence, zero,damped:0.8", 4)
	if err != nil {
		t.Fatalf("ParseModels error: %v", err)
	}
	names := Names(models)
	if len(names) != 3 || names[0] != "damped:0.8" || names[2] != "zero" {
		t.Fatalf("unexpected names %v", names)
	}
	if d := models["damped:0.8"].(*Model).Config.Decay; d != 0.8 {
		t.Fatalf("expected decay 0.8, got %v", d)
	}
	for _, bad := range []string{"", "zero:1", "damped:x", "lstm"} {
		if _, err := ParseModels(bad, 4); err == nil {
			t.Fatalf("ParseModels(%q): expected error", bad)
		}
	}
}

// staticSource is a wave frozen in time: every frame equals the first.
func staticSource(t *testing.T, n, d int) *datasets.MemorySource {
	t.Helper()
	frame := datasets.NewField(4, 4)
	for i := range frame.Data {
		frame.Data[i] = float32(i) + 1
	}
	samples := make([]datasets.Sample, n)
	for i := range samples {
		frames := make([]*datasets.Field, d)
		for k := range frames {
			frames[k] = frame
		}
		y, _ := datasets.Stack(frames)
		x, _ := datasets.Stack([]*datasets.Field{frame, frame})
		samples[i] = datasets.Sample{X: x, Y: y}
	}
	src, err := datasets.NewMemorySource(d, samples)
	if err != nil {
		t.Fatalf("NewMemorySource error: %v", err)
	}
	return src
}

func TestPersistenceIsExactOnStaticField(t *testing.T) {
	src := staticSource(t, 7, 3)
	models, err := ParseModels("persistence,zero", 3)
	if err != nil {
		t.Fatalf("ParseModels error: %v", err)
	}
	results, err := evaluate.Evaluate(models, src, evaluate.Options{})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if results["persistence"].MSE != 0 || results["persistence"].L2Loss != 0 {
		t.Fatalf("expected exact persistence, got %+v", results["persistence"])
	}
	// a zero prediction has relative error 1 in every frame
	if math.Abs(results["zero"].L2Loss-3) > 1e-9 || math.Abs(results["zero"].RelL2-1) > 1e-9 {
		t.Fatalf("unexpected zero-model metrics %+v", results["zero"])
	}

	res, err := rollout.Run(models["persistence"], src, rollout.Options{ComputeMetrics: true})
	if err != nil {
		t.Fatalf("rollout error: %v", err)
	}
	if res.Metrics.MSE != 0 || res.Metrics.MaxError != 0 {
		t.Fatalf("expected exact persistence rollout, got %+v", *res.Metrics)
	}
	if m := models["persistence"].(*Model); m.Device() != evaluate.DefaultDevice {
		t.Fatalf("expected model placed on %s, got %q", evaluate.DefaultDevice, m.Device())
	}
}
