package ml

import (
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i)
	}
	return data
}

func TestSplitConcat(t *testing.T) {
	x := FromFloats(seq(2*5*3), 2, 5, 3)

	parts, err := x.Split(1, []int{2, 2, 1})
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, []int{2, 2, 3}, parts[0].Shape())
	assert.Equal(t, []int{2, 1, 3}, parts[2].Shape())
	// zweite Zeile der ersten Batch-Position beginnt bei 2·3
	assert.Equal(t, []float64{6, 7, 8, 9, 10, 11, 21, 22, 23, 24, 25, 26}, parts[1].Floats())

	back, err := Concat(1, parts...)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), back.Shape())
	assert.Equal(t, x.Floats(), back.Floats())
}

func TestSplitConcatErrors(t *testing.T) {
	x := New(2, 4)

	_, err := x.Split(1, []int{3, 2})
	assert.ErrorIs(t, err, ErrShape)
	_, err = x.Split(2, []int{4})
	assert.ErrorIs(t, err, ErrShape)

	_, err = Concat(1, New(2, 3), New(3, 3))
	assert.ErrorIs(t, err, ErrShape)
	_, err = Concat(1, New(2, 3), New(2))
	assert.ErrorIs(t, err, ErrShape)
	_, err = Concat(0)
	assert.ErrorIs(t, err, ErrShape)
}

func TestElementwise(t *testing.T) {
	a := FromFloats([]float64{-3, 0, 2}, 3)
	b := FromFloats([]float64{1, 1, 1}, 3)

	assert.Equal(t, 3.0, a.MaxAbs())
	assert.Equal(t, []float64{-1, 0, 1}, a.Sign().Floats())

	d, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{-4, -1, 1}, d.Floats())

	diff, err := a.MaxAbsDiff(b)
	require.NoError(t, err)
	assert.Equal(t, 4.0, diff)

	c := a.Clone()
	require.NoError(t, c.Add(b))
	assert.Equal(t, []float64{-2, 1, 3}, c.Floats())
	assert.Equal(t, []float64{-3, 0, 2}, a.Floats(), "Clone teilt keinen Speicher")

	assert.ErrorIs(t, a.Add(New(2)), ErrShape)
	assert.Zero(t, New(0).MaxAbs())
}

func TestFromFloatsPanics(t *testing.T) {
	assert.Panics(t, func() { FromFloats([]float64{1, 2, 3}, 2, 2) })
}

func TestDense(t *testing.T) {
	x := FromFloats(seq(6), 2, 3)
	d := x.Dense()
	assert.Equal(t, tensor.Shape{2, 3}, d.Shape())

	back, err := FromDense(d)
	require.NoError(t, err)
	assert.Equal(t, x.Floats(), back.Floats())
	assert.Equal(t, x.Shape(), back.Shape())

	f32 := tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{1.5, -2}))
	back, err = FromDense(f32)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, -2}, back.Floats())

	_, err = FromDense(tensor.New(tensor.WithShape(2), tensor.WithBacking([]int{1, 2})))
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	tests := []struct {
		name string
		t    *Tensor
		opts []DumpOptions
		want string
	}{
		{"Matrix", FromFloats([]float64{1, 2, 3, 4}, 2, 2), []DumpOptions{DumpWithPrecision(1)}, "[[ 1.0,  2.0],\n [ 3.0,  4.0]]"},
		{"negativ", FromFloats([]float64{-1.5, 2}, 2), []DumpOptions{DumpWithPrecision(2)}, "[-1.50,  2.00]"},
		{"gekuerzt", FromFloats(seq(10), 10), []DumpOptions{DumpWithPrecision(0), DumpWithThreshold(4), DumpWithEdgeItems(2)}, "[ 0,  1, ...,  8,  9]"},
		{"leer", New(), nil, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dump(tt.t, tt.opts...); got != tt.want {
				t.Errorf("Dump() = %q, erwartet %q", got, tt.want)
			}
		})
	}
}
