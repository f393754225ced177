// accumulate.go - Bit-serielle Crossbar-Akkumulation mit ADC-Rundung
//
// Fuer jede Partition und jedes Paar (Aktivierungs-Zyklus i, Gewichts-Zyklus j)
// wird das Teilprodukt berechnet, auf die Ausgangs-Scale normiert, an seiner
// Festkomma-Position auf Q Bit gerundet und aufsummiert. Die Rundung jedes
// Teilprodukts bildet den endlichen Wertebereich des ADC nach.
package xbar

import (
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mnsim/xbarsim/logutil"
	"github.com/mnsim/xbarsim/ml"
	"github.com/mnsim/xbarsim/ml/nn"
	"github.com/mnsim/xbarsim/quantize"
)

// Operands are the bit planes of one partition, already multiplied by their
// grid step (sign·plane·scale).
type Operands struct {
	Activation []*ml.Tensor
	Weight     []*ml.Tensor
}

// Accumulator runs the multi-cycle partial products of a layer.
type Accumulator struct {
	hw        HardwareConfig
	quant     QuantizeConfig
	layerType LayerType
	parallel  int
}

// NewAccumulator returns an accumulator for one layer. parallel bounds the
// number of partitions computed concurrently; values below 1 mean 1.
func NewAccumulator(hw HardwareConfig, quant QuantizeConfig, layerType LayerType, parallel int) *Accumulator {
	return &Accumulator{
		hw:        hw,
		quant:     quant,
		layerType: layerType,
		parallel:  max(parallel, 1),
	}
}

// Product is the raw bias-free matrix product of the layer type.
func Product(layerType LayerType, x, w *ml.Tensor) (*ml.Tensor, error) {
	switch layerType {
	case Conv:
		return nn.Conv2D(x, w)
	case FC:
		return nn.Linear(x, w)
	default:
		return nil, fmt.Errorf("not support %s: %w", layerType, ErrConfiguration)
	}
}

// TransferPoint returns the binary point shift of partial product (i, j).
// One bit of the ADC range is reserved for the sign.
func (a *Accumulator) TransferPoint(i, j, activationCycles, weightCycles int) int {
	return a.quant.PointShift +
		(activationCycles-1-i)*a.hw.InputBit +
		(weightCycles-1-j)*a.hw.WeightBit +
		(a.hw.QuantizeBit - 1)
}

// Accumulate sums the ADC-rounded partial products of all partitions and
// requantizes the result to outBit bits with scale. Partition sums are
// reduced in partition order, independent of the worker count.
func (a *Accumulator) Accumulate(parts []Operands, scale float64, outBit int) (*ml.Tensor, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("accumulate without partitions: %w", ErrConfiguration)
	}

	sums := make([]*ml.Tensor, len(parts))
	var g errgroup.Group
	g.SetLimit(a.parallel)
	for p, ops := range parts {
		g.Go(func() error {
			sum, err := a.partition(ops, scale)
			if err != nil {
				return fmt.Errorf("partition %d: %w", p, err)
			}
			logutil.Trace("partition accumulated", "partition", p,
				"activation_cycles", len(ops.Activation), "weight_cycles", len(ops.Weight), "sum", sum)
			sums[p] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := sums[0]
	for _, s := range sums[1:] {
		if err := out.Add(s); err != nil {
			return nil, err
		}
	}

	if scale == 0 {
		slog.Debug("zero output scale, crossbar output degenerates to zero")
		return ml.New(out.Shape()...), nil
	}

	thres := quantize.Threshold(outBit)
	return out.Map(func(v float64) float64 {
		return quantize.Clamp(math.RoundToEven(v*thres), thres) * scale / thres
	}), nil
}

// partition evaluates every (i, j) pair of one partition in nested order.
func (a *Accumulator) partition(ops Operands, scale float64) (*ml.Tensor, error) {
	ca, cw := len(ops.Activation), len(ops.Weight)
	if ca == 0 || cw == 0 {
		return nil, fmt.Errorf("%d activation and %d weight planes: %w", ca, cw, ErrConfiguration)
	}

	limit := math.Exp2(float64(a.hw.QuantizeBit-1)) - 1

	var sum *ml.Tensor
	for i := range ca {
		for j := range cw {
			prod, err := Product(a.layerType, ops.Activation[i], ops.Weight[j])
			if err != nil {
				return nil, err
			}

			if scale != 0 {
				factor := math.Exp2(float64(a.TransferPoint(i, j, ca, cw)))
				prod = prod.Map(func(v float64) float64 {
					return quantize.Clamp(math.RoundToEven(v/scale*factor), limit) / factor
				})
			}

			if sum == nil {
				sum = prod
			} else if err := sum.Add(prod); err != nil {
				return nil, err
			}
		}
	}
	return sum, nil
}
