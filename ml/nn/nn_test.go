package nn

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnsim/xbarsim/ml"
)

func random(rng *rand.Rand, shape ...int) *ml.Tensor {
	t := ml.New(shape...)
	for i := range t.Floats() {
		t.Floats()[i] = rng.NormFloat64()
	}
	return t
}

// direkte Schleifen als Referenz

func linearLoops(x, w *ml.Tensor) []float64 {
	batch, in, out := x.Dim(0), x.Dim(1), w.Dim(0)
	y := make([]float64, batch*out)
	for b := range batch {
		for o := range out {
			var sum float64
			for i := range in {
				sum += x.Floats()[b*in+i] * w.Floats()[o*in+i]
			}
			y[b*out+o] = sum
		}
	}
	return y
}

func convLoops(x, w *ml.Tensor) []float64 {
	batch, c, h, wd := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	out, k := w.Dim(0), w.Dim(2)
	oh, ow := h-k+1, wd-k+1
	y := make([]float64, batch*out*oh*ow)
	for n := range batch {
		for o := range out {
			for py := range oh {
				for px := range ow {
					var sum float64
					for ch := range c {
						for ky := range k {
							for kx := range k {
								xv := x.Floats()[((n*c+ch)*h+py+ky)*wd+px+kx]
								wv := w.Floats()[((o*c+ch)*k+ky)*k+kx]
								sum += xv * wv
							}
						}
					}
					y[((n*out+o)*oh+py)*ow+px] = sum
				}
			}
		}
	}
	return y
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestLinear(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x, w := random(rng, 3, 7), random(rng, 4, 7)

	y, err := Linear(x, w)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, y.Shape())
	if diff := cmp.Diff(linearLoops(x, w), y.Floats(), approx); diff != "" {
		t.Errorf("Linear (-want +got):\n%s", diff)
	}

	_, err = Linear(x, random(rng, 4, 6))
	assert.ErrorIs(t, err, ml.ErrShape)
}

func TestConv2D(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tests := []struct {
		name  string
		x, w  []int
		shape []int
	}{
		{"3x3", []int{2, 3, 6, 5}, []int{4, 3, 3, 3}, []int{2, 4, 4, 3}},
		{"1x1", []int{1, 2, 3, 3}, []int{5, 2, 1, 1}, []int{1, 5, 3, 3}},
		{"Kernel gleich Eingabe", []int{1, 1, 4, 4}, []int{2, 1, 4, 4}, []int{1, 2, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, w := random(rng, tt.x...), random(rng, tt.w...)
			y, err := Conv2D(x, w)
			require.NoError(t, err)
			assert.Equal(t, tt.shape, y.Shape())
			if diff := cmp.Diff(convLoops(x, w), y.Floats(), approx); diff != "" {
				t.Errorf("Conv2D (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConv2DErrors(t *testing.T) {
	_, err := Conv2D(ml.New(1, 2, 4, 4), ml.New(1, 3, 3, 3))
	assert.ErrorIs(t, err, ml.ErrShape)

	_, err = Conv2D(ml.New(1, 2, 2, 2), ml.New(1, 2, 3, 3))
	assert.ErrorIs(t, err, ml.ErrShape)

	_, err = Conv2D(ml.New(2, 4), ml.New(1, 2, 3, 3))
	assert.ErrorIs(t, err, ml.ErrShape)
}
