// bitslice.go - Zerlegung quantisierter Werte in Bit-Ebenen
//
// Ein Wert mit b Bit (inkl. Vorzeichen) wird in (b-1)/cycleBit Zyklen zu je
// cycleBit Bit zerlegt. Zyklus 0 ist die niederwertigste Ebene. Jede Ebene
// enthaelt den vorzeichenlosen Betrag an ihrer Stellenwertigkeit
// (|v| mod base·step) - (|v| mod base) mit base = step^c, step = 2^cycleBit.
package xbar

import (
	"fmt"
	"math"

	"github.com/mnsim/xbarsim/ml"
)

// CycleCount returns (bit-1)/cycleBit and fails if the division is not exact.
func CycleCount(bit, cycleBit int) (int, error) {
	if cycleBit <= 0 || bit < 2 {
		return 0, fmt.Errorf("cycle width %d for %d bits: %w", cycleBit, bit, ErrConfiguration)
	}
	if (bit-1)%cycleBit != 0 {
		return 0, fmt.Errorf("(%d-1) bits not divisible by cycle width %d: %w", bit, cycleBit, ErrConfiguration)
	}
	return (bit - 1) / cycleBit, nil
}

// Slices is the sign/magnitude decomposition of an integer tensor.
type Slices struct {
	Sign      *ml.Tensor
	Magnitude []*ml.Tensor
	// Step is 2^cycleBit.
	Step float64
}

// Decompose splits the signed integer tensor digits into cycles magnitude
// planes of cycleBit bits each.
func Decompose(digits *ml.Tensor, cycles, cycleBit int) *Slices {
	s := &Slices{
		Sign:      digits.Sign(),
		Magnitude: make([]*ml.Tensor, cycles),
		Step:      math.Exp2(float64(cycleBit)),
	}

	abs := digits.Map(math.Abs)
	base := 1.0
	for c := range cycles {
		next := base * s.Step
		s.Magnitude[c] = abs.Map(func(v float64) float64 {
			return math.Mod(v, next) - math.Mod(v, base)
		})
		base = next
	}
	return s
}

// Cycles returns the number of planes.
func (s *Slices) Cycles() int { return len(s.Magnitude) }

// Base returns the positional weight step^c of cycle c.
func (s *Slices) Base(c int) float64 {
	return math.Pow(s.Step, float64(c))
}

// Signed returns sign·plane_c·scale, the operand fed to the crossbar.
func (s *Slices) Signed(c int, scale float64) *ml.Tensor {
	out := ml.New(s.Sign.Shape()...)
	sign, mag, dst := s.Sign.Floats(), s.Magnitude[c].Floats(), out.Floats()
	for i := range dst {
		dst[i] = signed(sign[i], mag[i]) * scale
	}
	return out
}

// Digit returns sign·plane_c/base, the value stored in the cells of cycle c.
func (s *Slices) Digit(c int) *ml.Tensor {
	base := s.Base(c)
	out := ml.New(s.Sign.Shape()...)
	sign, mag, dst := s.Sign.Floats(), s.Magnitude[c].Floats(), out.Floats()
	for i := range dst {
		dst[i] = signed(sign[i], mag[i]) / base
	}
	return out
}

// Reconstruct sums sign·plane·scale over all cycles.
func (s *Slices) Reconstruct(scale float64) *ml.Tensor {
	out := ml.New(s.Sign.Shape()...)
	for c := range s.Magnitude {
		// Shapes sind identisch, Add kann nicht fehlschlagen
		_ = out.Add(s.Signed(c, scale))
	}
	return out
}

// signed avoids producing -0 for empty magnitudes.
func signed(sign, mag float64) float64 {
	if mag == 0 {
		return 0
	}
	return sign * mag
}
