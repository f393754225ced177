// tensor.go - Dichter float64-Tensor fuer die Crossbar-Simulation
// Dieses Modul definiert den Tensor-Typ, Shape-Helfer sowie die elementweisen
// Operationen, die Quantisierung und Bit-Slicing benoetigen.
package ml

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// ErrShape is returned when tensor shapes do not line up for an operation.
var ErrShape = errors.New("shape mismatch")

// Tensor is a dense row-major float64 array.
type Tensor struct {
	shape []int
	data  []float64
}

// New allocates a zero tensor of the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{shape: slices.Clone(shape), data: make([]float64, mul(shape...))}
}

// FromFloats wraps data without copying. It panics if the length does not
// match the shape, like the constructors of gonum/mat.
func FromFloats(data []float64, shape ...int) *Tensor {
	if len(data) != mul(shape...) {
		panic(fmt.Sprintf("ml: %d values do not fit shape %v", len(data), shape))
	}
	return &Tensor{shape: slices.Clone(shape), data: data}
}

// Shape returns a copy of the tensor dimensions.
func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

// Dim returns the size of dimension n.
func (t *Tensor) Dim(n int) int { return t.shape[n] }

// NumDims returns the rank.
func (t *Tensor) NumDims() int { return len(t.shape) }

// Len returns the element count.
func (t *Tensor) Len() int { return len(t.data) }

// Floats exposes the backing slice.
func (t *Tensor) Floats() []float64 { return t.data }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{shape: slices.Clone(t.shape), data: slices.Clone(t.data)}
}

// SameShape reports whether both tensors have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool { return slices.Equal(t.shape, o.shape) }

// MaxAbs returns max(|t|), 0 for an empty tensor.
func (t *Tensor) MaxAbs() float64 {
	if len(t.data) == 0 {
		return 0
	}
	return floats.Norm(t.data, math.Inf(1))
}

// Map applies fn elementwise into a new tensor.
func (t *Tensor) Map(fn func(float64) float64) *Tensor {
	out := New(t.shape...)
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// Add accumulates o into t in place.
func (t *Tensor) Add(o *Tensor) error {
	if !t.SameShape(o) {
		return fmt.Errorf("add %v and %v: %w", t.shape, o.shape, ErrShape)
	}
	floats.Add(t.data, o.data)
	return nil
}

// Sub returns t-o.
func (t *Tensor) Sub(o *Tensor) (*Tensor, error) {
	if !t.SameShape(o) {
		return nil, fmt.Errorf("sub %v and %v: %w", t.shape, o.shape, ErrShape)
	}
	out := New(t.shape...)
	floats.SubTo(out.data, t.data, o.data)
	return out, nil
}

// MaxAbsDiff returns max(|t-o|).
func (t *Tensor) MaxAbsDiff(o *Tensor) (float64, error) {
	if !t.SameShape(o) {
		return 0, fmt.Errorf("diff %v and %v: %w", t.shape, o.shape, ErrShape)
	}
	if len(t.data) == 0 {
		return 0, nil
	}
	return floats.Distance(t.data, o.data, math.Inf(1)), nil
}

// Sign returns -1, 0 or 1 per element.
func (t *Tensor) Sign() *Tensor {
	return t.Map(func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		}
		return 0
	})
}

// =============================================================================
// Split und Concat entlang Dimension 1
// =============================================================================

// outerInner returns the products of the dimensions before and after dim.
func (t *Tensor) outerInner(dim int) (outer, inner int) {
	return mul(t.shape[:dim]...), mul(t.shape[dim+1:]...)
}

// Split cuts t along dim into consecutive chunks of the given sizes.
func (t *Tensor) Split(dim int, sizes []int) ([]*Tensor, error) {
	if dim < 0 || dim >= len(t.shape) {
		return nil, fmt.Errorf("split dim %d of %v: %w", dim, t.shape, ErrShape)
	}
	total := 0
	for _, s := range sizes {
		total += s
	}
	if total != t.shape[dim] {
		return nil, fmt.Errorf("split %v into %v along %d: %w", t.shape, sizes, dim, ErrShape)
	}

	outer, inner := t.outerInner(dim)
	parts := make([]*Tensor, len(sizes))
	offset := 0
	for n, size := range sizes {
		shape := slices.Clone(t.shape)
		shape[dim] = size
		part := New(shape...)
		for o := 0; o < outer; o++ {
			src := t.data[(o*t.shape[dim]+offset)*inner : (o*t.shape[dim]+offset+size)*inner]
			copy(part.data[o*size*inner:(o+1)*size*inner], src)
		}
		parts[n] = part
		offset += size
	}
	return parts, nil
}

// Concat joins tensors along dim. All other dimensions must agree.
func Concat(dim int, ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat of nothing: %w", ErrShape)
	}
	shape := ts[0].Shape()
	if dim < 0 || dim >= len(shape) {
		return nil, fmt.Errorf("concat dim %d of %v: %w", dim, shape, ErrShape)
	}
	shape[dim] = 0
	for _, t := range ts {
		s := t.Shape()
		if len(s) != len(shape) {
			return nil, fmt.Errorf("concat %v with %v: %w", ts[0].shape, s, ErrShape)
		}
		shape[dim] += s[dim]
		s[dim] = shape[dim]
		if !slices.Equal(s, shape) {
			return nil, fmt.Errorf("concat %v with %v: %w", ts[0].shape, t.shape, ErrShape)
		}
	}

	out := New(shape...)
	outer, inner := out.outerInner(dim)
	offset := 0
	for _, t := range ts {
		size := t.shape[dim]
		for o := 0; o < outer; o++ {
			dst := out.data[(o*shape[dim]+offset)*inner : (o*shape[dim]+offset+size)*inner]
			copy(dst, t.data[o*size*inner:(o+1)*size*inner])
		}
		offset += size
	}
	return out, nil
}
