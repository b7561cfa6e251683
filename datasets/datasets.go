// Package datasets provides the sample sources consumed by the evaluators.
//
// A source is an ordered, indexable collection of N samples that share a
// temporal depth D. Each sample carries:
//   - X: model input [C, H, W]; channel 0 is the pressure initial condition
//     and the remaining channels are auxiliary inputs (velocity, alpha).
//   - Y: ground truth pressure [D, H, W].
//   - V: optional velocity [2, H, W].
//   - A: optional alpha (material) field [H, W].
//
// Samples are immutable once produced: consumers that need to modify an input
// (the rollout seam) must Clone it first.
package datasets

import (
	"errors"
	"fmt"
)

// ErrInvalidSource is returned when a source breaks the N >= 1, D >= 2
// invariants.
var ErrInvalidSource = errors.New("invalid sample source")

// Sample is one labeled example.
type Sample struct {
	X *Field
	Y *Field
	V *Field
	A *Field
}

// Source is the minimal interface the evaluators require from a dataset.
type Source interface {
	Len() int
	Depth() int
	Sample(i int) (Sample, error)
}

// Validate checks the source invariants.
func Validate(src Source) error {
	if src == nil {
		return fmt.Errorf("%w: source is nil", ErrInvalidSource)
	}
	if src.Len() < 1 {
		return fmt.Errorf("%w: source has no samples", ErrInvalidSource)
	}
	if src.Depth() < 2 {
		return fmt.Errorf("%w: depth %d < 2", ErrInvalidSource, src.Depth())
	}
	return nil
}

// MemorySource is a Source backed by a slice of samples.
type MemorySource struct {
	samples []Sample
	depth   int
}

// NewMemorySource builds an in-memory source. Every sample must have a
// ground truth of depth frames and a non-empty input.
func NewMemorySource(depth int, samples []Sample) (*MemorySource, error) {
	for i, s := range samples {
		if s.X == nil || s.X.Rank() < 3 {
			return nil, fmt.Errorf("sample %d: input must be [C, H, W]", i)
		}
		if s.Y == nil || s.Y.Rank() != 3 || s.Y.Dims[0] != depth {
			return nil, fmt.Errorf("sample %d: target must be [%d, H, W]", i, depth)
		}
	}
	m := &MemorySource{samples: samples, depth: depth}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Len returns the number of samples.
func (m *MemorySource) Len() int { return len(m.samples) }

// Depth returns the temporal depth D.
func (m *MemorySource) Depth() int { return m.depth }

// Sample returns sample i.
func (m *MemorySource) Sample(i int) (Sample, error) {
	if i < 0 || i >= len(m.samples) {
		return Sample{}, fmt.Errorf("index %d out of range [0, %d)", i, len(m.samples))
	}
	return m.samples[i], nil
}
