// Package baseline provides non-learned reference surrogates. They are cheap
// to run and give a floor any learned model should beat.
package baseline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/Noofbiz/acousticEval/datasets"
	"github.com/Noofbiz/acousticEval/evaluate"
)

// Kinds of baseline models.
const (
	// Persistence repeats the initial condition over every output frame.
	Persistence = "persistence"
	// Zero predicts a silent field.
	Zero = "zero"
	// Damped scales the initial condition by Decay^k at output frame k.
	Damped = "damped"
)

// Config holds the settings of a baseline model.
type Config struct {
	// Kind is one of Persistence, Zero or Damped. Default: Persistence.
	Kind string

	// Depth is the number of output frames D. It must match the source.
	Depth int

	// Decay per frame for Damped models. Default: 0.95.
	Decay float64
}

// Model is a baseline predictor. It implements evaluate.Predictor and
// evaluate.Placer.
type Model struct {
	// Config used to build the model, with defaults filled in.
	Config Config

	device string
}

// NewModel creates a Model, filling in defaults for zero fields.
func NewModel(cfg Config) (*Model, error) {
	if cfg.Kind == "" {
		cfg.Kind = Persistence
	}
	if cfg.Decay == 0 {
		cfg.Decay = 0.95
	}
	switch cfg.Kind {
	case Persistence, Zero, Damped:
	default:
		return nil, fmt.Errorf("unknown baseline kind %q", cfg.Kind)
	}
	if cfg.Depth < 2 {
		return nil, fmt.Errorf("baseline depth must be at least 2, got %d", cfg.Depth)
	}
	if cfg.Decay < 0 || math.IsNaN(cfg.Decay) {
		return nil, fmt.Errorf("invalid decay %v", cfg.Decay)
	}
	return &Model{Config: cfg}, nil
}

// Place records the device. Baselines run on the host regardless.
func (m *Model) Place(device string) error {
	m.device = device
	return nil
}

// Device returns the device the model was placed on.
func (m *Model) Device() string { return m.device }

// gain is the factor applied to the initial condition at output frame k.
func (m *Model) gain(k int) float32 {
	switch m.Config.Kind {
	case Zero:
		return 0
	case Damped:
		return float32(math.Pow(m.Config.Decay, float64(k)))
	}
	return 1
}

// Predict maps a batched input [1, C, H, W] to [1, D, H, W].
func (m *Model) Predict(x *datasets.Field) (*datasets.Field, error) {
	if x.Rank() != 4 || x.Dims[0] != 1 || x.Dims[1] < 1 {
		return nil, fmt.Errorf("expected input [1, C, H, W], got %v", x.Dims)
	}
	h, w := x.Dims[2], x.Dims[3]
	plane := h * w
	init := x.Data[:plane]

	out := datasets.NewField(1, m.Config.Depth, h, w)
	for k := 0; k < m.Config.Depth; k++ {
		g := m.gain(k)
		dst := out.Data[k*plane : (k+1)*plane]
		for i, v := range init {
			dst[i] = g * v
		}
	}
	return out, nil
}

// ParseModels builds baselines from a comma-separated list such as
// "persistence,zero,damped:0.9". Each entry is keyed by its text.
func ParseModels(list string, depth int) (map[string]evaluate.Predictor, error) {
	models := make(map[string]evaluate.Predictor)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kind, arg, _ := strings.Cut(entry, ":")
		cfg := Config{Kind: strings.ToLower(kind), Depth: depth}
		if arg != "" {
			if cfg.Kind != Damped {
				return nil, fmt.Errorf("model %q: only %s takes a parameter", entry, Damped)
			}
			decay, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return nil, fmt.Errorf("model %q: parse decay: %w", entry, err)
			}
			cfg.Decay = decay
		}
		m, err := NewModel(cfg)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", entry, err)
		}
		models[entry] = m
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("no models in %q", list)
	}
	return models, nil
}

// Names returns the sorted keys of models.
func Names(models map[string]evaluate.Predictor) []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
