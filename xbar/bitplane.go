// bitplane.go - Export und Import der Gewichts-Bit-Ebenen
//
// Dieses Modul enthaelt:
// - PlaneKey/Planes: (Partition, Zyklus, Vorzeichen) indizierte Ebenen
// - ExportPlanes: Zellwerte, wie sie in die Crossbar programmiert werden
// - ImportPlanes: Rueckweg zu den Gewichts-Operanden des Akkumulators
// - ForwardWithPlanes: bit-serieller Forward mit extern gelieferten Ebenen
package xbar

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pdevine/tensor"

	"github.com/mnsim/xbarsim/ml"
)

// Sign selects the positive or negative cell array of a weight cycle.
type Sign int

const (
	Positive Sign = iota
	Negative
)

func (s Sign) String() string {
	if s == Negative {
		return "negative"
	}
	return "positive"
}

// PlaneKey addresses one exported plane.
type PlaneKey struct {
	Partition int
	Cycle     int
	Sign      Sign
}

// Name returns the file-style name split{p}_weight{c}_{sign}.
func (k PlaneKey) Name() string {
	return fmt.Sprintf("split%d_weight%d_%s", k.Partition, k.Cycle, k.Sign)
}

// ParsePlaneName is the inverse of PlaneKey.Name.
func ParsePlaneName(name string) (PlaneKey, error) {
	var k PlaneKey
	var sign string
	if _, err := fmt.Sscanf(name, "split%d_weight%d_%s", &k.Partition, &k.Cycle, &sign); err != nil {
		return PlaneKey{}, fmt.Errorf("plane name %q: %w", name, ErrPlaneMismatch)
	}
	switch sign {
	case "positive":
		k.Sign = Positive
	case "negative":
		k.Sign = Negative
	default:
		return PlaneKey{}, fmt.Errorf("plane name %q: %w", name, ErrPlaneMismatch)
	}
	return k, nil
}

// Planes holds non-negative cell values per key.
type Planes map[PlaneKey]*ml.Tensor

// Keys returns the keys ordered by partition, cycle, sign.
func (p Planes) Keys() []PlaneKey {
	keys := make([]PlaneKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b PlaneKey) int {
		return cmp.Or(
			cmp.Compare(a.Partition, b.Partition),
			cmp.Compare(a.Cycle, b.Cycle),
			cmp.Compare(a.Sign, b.Sign),
		)
	})
	return keys
}

// Dense converts every plane to a *tensor.Dense.
func (p Planes) Dense() map[PlaneKey]*tensor.Dense {
	out := make(map[PlaneKey]*tensor.Dense, len(p))
	for k, t := range p {
		out[k] = t.Dense()
	}
	return out
}

// PlanesFromDense is the inverse of Planes.Dense.
func PlanesFromDense(d map[PlaneKey]*tensor.Dense) (Planes, error) {
	out := make(Planes, len(d))
	for k, v := range d {
		t, err := ml.FromDense(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k.Name(), err)
		}
		out[k] = t
	}
	return out, nil
}

func (l *Layer) checkPlaneMethod() error {
	if l.hw.FixMethod != FixTrain && l.hw.FixMethod != SingleFixTest {
		return fmt.Errorf("bit planes under %s: %w", l.hw.FixMethod, ErrModeInvariant)
	}
	return nil
}

// ExportPlanes returns the digit of every weight cycle split into a positive
// and a negative plane. Exactly one of the two is non-zero per element.
func (l *Layer) ExportPlanes() (Planes, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkPlaneMethod(); err != nil {
		return nil, err
	}
	decomposed, err := l.weightSlices()
	if err != nil {
		return nil, err
	}

	planes := make(Planes)
	for p, s := range decomposed {
		for c := range s.Cycles() {
			digit := s.Digit(c)
			pos, neg := ml.New(digit.Shape()...), ml.New(digit.Shape()...)
			pd, nd := pos.Floats(), neg.Floats()
			for i, v := range digit.Floats() {
				switch {
				case v > 0:
					pd[i] = v
				case v < 0:
					nd[i] = -v
				}
			}
			planes[PlaneKey{p, c, Positive}] = pos
			planes[PlaneKey{p, c, Negative}] = neg
		}
	}
	return planes, nil
}

// ImportPlanes recombines planes into the per-partition weight operands
// (pos-neg)·base·scale. Fed with ExportPlanes output it reproduces the
// operands of Forward bit for bit.
func (l *Layer) ImportPlanes(planes Planes) ([][]*ml.Tensor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.importPlanes(planes)
}

func (l *Layer) importPlanes(planes Planes) ([][]*ml.Tensor, error) {
	rec := l.scales.Weight
	if !rec.Valid() {
		return nil, fmt.Errorf("weight record empty: %w", ErrNotCalibrated)
	}
	cycles, err := CycleCount(rec.Bit, l.hw.WeightBit)
	if err != nil {
		return nil, fmt.Errorf("weight: %w", err)
	}

	step := float64(int(1) << l.hw.WeightBit)
	weights := make([][]*ml.Tensor, len(l.partitions))
	for p, part := range l.partitions {
		weights[p] = make([]*ml.Tensor, cycles)
		base := 1.0
		for c := range cycles {
			pos, neg := planes[PlaneKey{p, c, Positive}], planes[PlaneKey{p, c, Negative}]
			if pos == nil || neg == nil {
				return nil, fmt.Errorf("partition %d cycle %d missing: %w", p, c, ErrPlaneMismatch)
			}
			if !pos.SameShape(part.Weight) || !neg.SameShape(part.Weight) {
				return nil, fmt.Errorf("partition %d cycle %d shape %v/%v, want %v: %w",
					p, c, pos.Shape(), neg.Shape(), part.Weight.Shape(), ErrPlaneMismatch)
			}

			digit, err := pos.Sub(neg)
			if err != nil {
				return nil, err
			}
			weights[p][c] = digit.Map(func(v float64) float64 { return v * base * rec.Scale })
			base *= step
		}
	}
	return weights, nil
}

// ForwardWithPlanes runs the bit-serial forward with externally supplied
// weight planes instead of the layer weights.
func (l *Layer) ForwardWithPlanes(x *ml.Tensor, planes Planes) (*ml.Tensor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hw.FixMethod != SingleFixTest {
		return nil, fmt.Errorf("forward with planes under %s: %w", l.hw.FixMethod, ErrModeInvariant)
	}
	if l.training {
		return nil, fmt.Errorf("forward with planes while training: %w", ErrModeInvariant)
	}
	if err := l.checkInput(x); err != nil {
		return nil, err
	}

	weights, err := l.importPlanes(planes)
	if err != nil {
		return nil, err
	}
	return l.bitSerialForward(x, weights)
}
