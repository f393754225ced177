// Package nn - Matrixprodukte der Crossbar-Partitionen
// Dieses Modul enthaelt Linear und Conv2D ohne Bias. Beide bilden auf ein
// gonum-Matrixprodukt ab, Conv2D ueber eine im2col-Umordnung.
package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mnsim/xbarsim/ml"
)

// Linear computes x·wᵀ for x (batch, in) and w (out, in).
func Linear(x, w *ml.Tensor) (*ml.Tensor, error) {
	if x.NumDims() != 2 || w.NumDims() != 2 || x.Dim(1) != w.Dim(1) {
		return nil, fmt.Errorf("linear %v x %v: %w", x.Shape(), w.Shape(), ml.ErrShape)
	}

	batch, out := x.Dim(0), w.Dim(0)
	y := ml.New(batch, out)
	if y.Len() == 0 || x.Dim(1) == 0 {
		return y, nil
	}

	a := mat.NewDense(batch, x.Dim(1), x.Floats())
	b := mat.NewDense(out, w.Dim(1), w.Floats())
	mat.NewDense(batch, out, y.Floats()).Mul(a, b.T())
	return y, nil
}
