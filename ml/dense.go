// dense.go - Konvertierung zwischen ml.Tensor und tensor.Dense
// Dieses Modul verbindet den Simulator mit Werkzeugen, die auf
// gorgonia-kompatiblen Tensoren arbeiten (Hardware-Mapping, Analyse).
package ml

import (
	"fmt"
	"slices"

	"github.com/pdevine/tensor"
)

// Dense copies t into a float64 *tensor.Dense of the same shape.
func (t *Tensor) Dense() *tensor.Dense {
	return tensor.New(tensor.WithShape(t.Shape()...), tensor.WithBacking(slices.Clone(t.data)))
}

// FromDense copies a float32 or float64 dense tensor.
func FromDense(d *tensor.Dense) (*Tensor, error) {
	shape := []int(d.Shape())
	switch data := d.Data().(type) {
	case []float64:
		return FromFloats(slices.Clone(data), shape...), nil
	case []float32:
		out := New(shape...)
		for i, v := range data {
			out.data[i] = float64(v)
		}
		return out, nil
	case float64:
		return FromFloats([]float64{data}, 1), nil
	default:
		return nil, fmt.Errorf("unsupported dense dtype %v", d.Dtype())
	}
}
