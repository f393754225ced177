package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mnsim/xbarsim/ml"
)

// Conv2D convolves x (batch, c, h, w) with w (out, c, k, k) using stride 1,
// no padding, no dilation and a single group.
func Conv2D(x, w *ml.Tensor) (*ml.Tensor, error) {
	if x.NumDims() != 4 || w.NumDims() != 4 || x.Dim(1) != w.Dim(1) || w.Dim(2) != w.Dim(3) {
		return nil, fmt.Errorf("conv2d %v x %v: %w", x.Shape(), w.Shape(), ml.ErrShape)
	}

	batch, channels, height, width := x.Dim(0), x.Dim(1), x.Dim(2), x.Dim(3)
	out, k := w.Dim(0), w.Dim(2)
	oh, ow := height-k+1, width-k+1
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("conv2d kernel %d larger than input %dx%d: %w", k, height, width, ml.ErrShape)
	}

	y := ml.New(batch, out, oh, ow)
	patch := channels * k * k
	rows := batch * oh * ow
	if y.Len() == 0 || patch == 0 {
		return y, nil
	}

	cols := im2col(x.Floats(), batch, channels, height, width, k)
	a := mat.NewDense(rows, patch, cols)
	b := mat.NewDense(out, patch, w.Floats())

	// Ergebnis liegt als (batch*oh*ow, out) vor und wird nach NCHW umsortiert
	prod := make([]float64, rows*out)
	mat.NewDense(rows, out, prod).Mul(a, b.T())

	dst := y.Floats()
	plane := oh * ow
	for n := 0; n < batch; n++ {
		for p := 0; p < plane; p++ {
			row := prod[(n*plane+p)*out : (n*plane+p+1)*out]
			for o, v := range row {
				dst[(n*out+o)*plane+p] = v
			}
		}
	}
	return y, nil
}

// im2col lays out every k×k receptive field as one row ordered (c, ky, kx),
// matching the memory order of the (out, c, k, k) weight.
func im2col(src []float64, batch, channels, height, width, k int) []float64 {
	oh, ow := height-k+1, width-k+1
	patch := channels * k * k
	cols := make([]float64, batch*oh*ow*patch)

	i := 0
	for n := 0; n < batch; n++ {
		for y := 0; y < oh; y++ {
			for x := 0; x < ow; x++ {
				for c := 0; c < channels; c++ {
					base := ((n*channels + c) * height) * width
					for ky := 0; ky < k; ky++ {
						off := base + (y+ky)*width + x
						copy(cols[i:i+k], src[off:off+k])
						i += k
					}
				}
			}
		}
	}
	return cols
}
