package datasets

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

func seqField(dims ...int) *Field {
	f := NewField(dims...)
	for i := range f.Data {
		f.Data[i] = float32(i)
	}
	return f
}

func TestFieldFrameIsValueCopy(t *testing.T) {
	f := seqField(3, 2, 2)
	fr, err := f.Frame(1)
	if err != nil {
		t.Fatalf("Frame error: %v", err)
	}
	if len(fr.Dims) != 2 || fr.Dims[0] != 2 || fr.Dims[1] != 2 {
		t.Fatalf("unexpected frame dims %v", fr.Dims)
	}
	if fr.Data[0] != 4 || fr.Data[3] != 7 {
		t.Fatalf("unexpected frame data %v", fr.Data)
	}
	fr.Data[0] = -1
	if f.Data[4] != 4 {
		t.Fatalf("mutating a frame changed the source field")
	}
	if _, err := f.Frame(3); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestFieldSetFrame(t *testing.T) {
	f := NewField(2, 2, 2)
	src := seqField(2, 2)
	if err := f.SetFrame(1, src); err != nil {
		t.Fatalf("SetFrame error: %v", err)
	}
	if f.Data[4] != 0 || f.Data[7] != 3 {
		t.Fatalf("unexpected data after SetFrame: %v", f.Data)
	}
	src.Data[0] = 99
	if f.Data[4] == 99 {
		t.Fatalf("SetFrame aliased its source")
	}
	if err := f.SetFrame(0, NewField(3, 2)); err == nil {
		t.Fatalf("expected dims error")
	}
}

func TestStackAndFrames(t *testing.T) {
	f := seqField(4, 1, 3)
	frames, err := f.Frames(1, 3)
	if err != nil {
		t.Fatalf("Frames error: %v", err)
	}
	stacked, err := Stack(frames)
	if err != nil {
		t.Fatalf("Stack error: %v", err)
	}
	if stacked.Dims[0] != 2 || stacked.Size() != 6 {
		t.Fatalf("unexpected stacked dims %v", stacked.Dims)
	}
	if stacked.Data[0] != 3 || stacked.Data[5] != 8 {
		t.Fatalf("unexpected stacked data %v", stacked.Data)
	}
	if _, err := Stack([]*Field{NewField(1, 2), NewField(2, 1)}); err == nil {
		t.Fatalf("expected error stacking mismatched frames")
	}
}

func TestSqueezeUnsqueeze(t *testing.T) {
	f := seqField(2, 3, 3)
	b := f.Unsqueeze()
	if b.Rank() != 4 || b.Dims[0] != 1 {
		t.Fatalf("unexpected unsqueezed dims %v", b.Dims)
	}
	s := b.Squeeze()
	if !s.SameShape(f) {
		t.Fatalf("squeeze did not restore dims: %v", s.Dims)
	}
	if same := f.Squeeze(); same != f {
		t.Fatalf("squeeze without batch axis should return the field itself")
	}
}

func TestFieldTensorRoundTrip(t *testing.T) {
	f := seqField(1, 2, 3, 4)
	back, err := FieldFromTensor(f.ToTensor())
	if err != nil {
		t.Fatalf("FieldFromTensor error: %v", err)
	}
	if !back.SameShape(f) {
		t.Fatalf("dims changed: %v vs %v", back.Dims, f.Dims)
	}
	for i := range f.Data {
		if back.Data[i] != f.Data[i] {
			t.Fatalf("data mismatch at %d: %v vs %v", i, back.Data[i], f.Data[i])
		}
	}
}

func TestFieldFromTensorRejectsOtherDTypes(t *testing.T) {
	in := tensors.FromFlatDataAndDimensions([]float64{1, 2, 3, 4}, 2, 2)
	if _, err := FieldFromTensor(in); err == nil {
		t.Fatalf("expected error for float64 tensor")
	}
	if _, err := FieldFromTensor(nil); err == nil {
		t.Fatalf("expected error for nil tensor")
	}
}

func TestFieldFromTensorCopies(t *testing.T) {
	in := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	f, err := FieldFromTensor(in)
	if err != nil {
		t.Fatalf("FieldFromTensor error: %v", err)
	}
	f.Data[0] = 100
	again, err := FieldFromTensor(in)
	if err != nil {
		t.Fatalf("FieldFromTensor error: %v", err)
	}
	if again.Data[0] != 1 || len(again.Dims) != 3 || again.Dims[2] != 3 {
		t.Fatalf("tensor contents changed through the field: %v %v", again.Dims, again.Data)
	}
}

func TestFieldFromDataLengthCheck(t *testing.T) {
	if _, err := FieldFromData(make([]float32, 5), 2, 3); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}
