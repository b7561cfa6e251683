package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
)

// Field is a dense, row-major float32 tensor. The last two axes are always
// the spatial (H, W) grid; leading axes are channels, time steps or a batch.
type Field struct {
	Dims []int
	Data []float32
}

// NewField allocates a zero-filled field with the given dimensions.
func NewField(dims ...int) *Field {
	return &Field{
		Dims: append([]int(nil), dims...),
		Data: make([]float32, sizeOf(dims)),
	}
}

// FieldFromData wraps data (not copied) with the given dimensions.
func FieldFromData(data []float32, dims ...int) (*Field, error) {
	if n := sizeOf(dims); n != len(data) {
		return nil, fmt.Errorf("data length %d does not match dims %v (size %d)", len(data), dims, n)
	}
	return &Field{Dims: append([]int(nil), dims...), Data: data}, nil
}

func sizeOf(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// Size is the total number of elements.
func (f *Field) Size() int { return len(f.Data) }

// Rank is the number of axes.
func (f *Field) Rank() int { return len(f.Dims) }

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	return &Field{
		Dims: append([]int(nil), f.Dims...),
		Data: append([]float32(nil), f.Data...),
	}
}

// SameShape reports whether f and o have identical dimensions.
func (f *Field) SameShape(o *Field) bool {
	if f == nil || o == nil || len(f.Dims) != len(o.Dims) {
		return false
	}
	for i := range f.Dims {
		if f.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// frameSize is the number of elements in one slice along the leading axis.
func (f *Field) frameSize() int {
	if len(f.Dims) == 0 {
		return 1
	}
	return sizeOf(f.Dims[1:])
}

// Len is the length of the leading axis.
func (f *Field) Len() int {
	if len(f.Dims) == 0 {
		return 0
	}
	return f.Dims[0]
}

// Frame returns a value copy of slice k along the leading axis.
func (f *Field) Frame(k int) (*Field, error) {
	if k < 0 || k >= f.Len() {
		return nil, fmt.Errorf("frame %d out of range [0, %d)", k, f.Len())
	}
	fs := f.frameSize()
	out := NewField(f.Dims[1:]...)
	copy(out.Data, f.Data[k*fs:(k+1)*fs])
	return out, nil
}

// SetFrame overwrites slice k along the leading axis with a copy of src.
func (f *Field) SetFrame(k int, src *Field) error {
	if k < 0 || k >= f.Len() {
		return fmt.Errorf("frame %d out of range [0, %d)", k, f.Len())
	}
	fs := f.frameSize()
	if src.Size() != fs || len(src.Dims) != len(f.Dims)-1 {
		return fmt.Errorf("frame dims %v do not fit field dims %v", src.Dims, f.Dims)
	}
	for i, d := range src.Dims {
		if d != f.Dims[i+1] {
			return fmt.Errorf("frame dims %v do not fit field dims %v", src.Dims, f.Dims)
		}
	}
	copy(f.Data[k*fs:(k+1)*fs], src.Data)
	return nil
}

// Frames returns value copies of slices [lo, hi) along the leading axis.
func (f *Field) Frames(lo, hi int) ([]*Field, error) {
	if lo < 0 || hi > f.Len() || lo > hi {
		return nil, fmt.Errorf("frames [%d, %d) out of range [0, %d]", lo, hi, f.Len())
	}
	out := make([]*Field, 0, hi-lo)
	for k := lo; k < hi; k++ {
		fr, err := f.Frame(k)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, nil
}

// Stack concatenates equally shaped fields along a new leading axis.
func Stack(frames []*Field) (*Field, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("cannot stack zero frames")
	}
	first := frames[0]
	dims := append([]int{len(frames)}, first.Dims...)
	out := NewField(dims...)
	fs := first.Size()
	for i, fr := range frames {
		if !fr.SameShape(first) {
			return nil, fmt.Errorf("frame %d has dims %v, expected %v", i, fr.Dims, first.Dims)
		}
		copy(out.Data[i*fs:], fr.Data)
	}
	return out, nil
}

// Unsqueeze returns a copy with a leading batch axis of size 1.
func (f *Field) Unsqueeze() *Field {
	out := f.Clone()
	out.Dims = append([]int{1}, out.Dims...)
	return out
}

// Squeeze drops a leading batch axis of size 1. The result shares Data with
// f; fields without a batch axis are returned unchanged.
func (f *Field) Squeeze() *Field {
	if len(f.Dims) == 0 || f.Dims[0] != 1 {
		return f
	}
	return &Field{Dims: append([]int(nil), f.Dims[1:]...), Data: f.Data}
}

// ToTensor converts the field to a gomlx tensor with the same dimensions.
func (f *Field) ToTensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(append([]float32(nil), f.Data...), f.Dims...)
}

// FieldFromTensor copies a float32 gomlx tensor into a Field.
func FieldFromTensor(t *tensors.Tensor) (*Field, error) {
	if t == nil {
		return nil, fmt.Errorf("nil tensor")
	}
	if t.DType() != dtypes.Float32 {
		return nil, fmt.Errorf("unsupported tensor dtype %s, expected float32", t.DType())
	}
	dims := append([]int(nil), t.Shape().Dimensions...)
	return FieldFromData(tensors.CopyFlatData[float32](t), dims...)
}
