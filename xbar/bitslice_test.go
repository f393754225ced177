package xbar

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnsim/xbarsim/ml"
	"github.com/mnsim/xbarsim/quantize"
)

// allDigits returns every grid value of a bit width.
func allDigits(bit int) *ml.Tensor {
	thres := int(quantize.Threshold(bit))
	data := make([]float64, 0, 2*thres+1)
	for v := -thres; v <= thres; v++ {
		data = append(data, float64(v))
	}
	return ml.FromFloats(data, len(data))
}

func TestDecomposeRoundTrip(t *testing.T) {
	configs := []struct{ bit, cycleBit int }{
		{9, 4}, {9, 2}, {9, 1}, {5, 2}, {7, 3}, {3, 2}, {13, 4},
	}
	for _, c := range configs {
		cycles, err := CycleCount(c.bit, c.cycleBit)
		require.NoError(t, err)

		digits := allDigits(c.bit)
		s := Decompose(digits, cycles, c.cycleBit)
		require.Equal(t, cycles, s.Cycles())

		assert.Equal(t, digits.Floats(), s.Reconstruct(1).Floats(), "bit=%d cycle=%d", c.bit, c.cycleBit)

		scaled := s.Reconstruct(0.125)
		for i, v := range digits.Floats() {
			assert.Equal(t, v*0.125, scaled.Floats()[i])
		}
	}
}

func TestDecomposePlanes(t *testing.T) {
	s := Decompose(ml.FromFloats([]float64{-13, 6, 0}, 3), 2, 2)

	assert.Equal(t, 4.0, s.Step)
	assert.Equal(t, []float64{-1, 1, 0}, s.Sign.Floats())
	// 13 = 3·4 + 1, 6 = 1·4 + 2
	assert.Equal(t, []float64{1, 2, 0}, s.Magnitude[0].Floats())
	assert.Equal(t, []float64{12, 4, 0}, s.Magnitude[1].Floats())
	assert.Equal(t, []float64{-3, 1, 0}, s.Digit(1).Floats())
	assert.Equal(t, []float64{-6, 2, 0}, s.Signed(1, 0.5).Floats())

	for c := range s.Cycles() {
		base := s.Base(c)
		for _, v := range s.Magnitude[c].Floats() {
			if v < 0 || v > (s.Step-1)*base || math.Mod(v, base) != 0 {
				t.Errorf("Zyklus %d: Betrag %v ausserhalb der Stelle", c, v)
			}
		}
	}
}

func TestDecomposeNoNegativeZero(t *testing.T) {
	s := Decompose(ml.FromFloats([]float64{-4}, 1), 2, 2)
	v := s.Signed(0, 1).Floats()[0]
	assert.False(t, math.Signbit(v), "negative Null im Operanden")
}

func TestCycleCountErrors(t *testing.T) {
	for _, c := range []struct{ bit, cycleBit int }{{8, 4}, {9, 3}, {4, 0}, {1, 1}} {
		if _, err := CycleCount(c.bit, c.cycleBit); !errors.Is(err, ErrConfiguration) {
			t.Errorf("CycleCount(%d, %d) = %v, erwartet ErrConfiguration", c.bit, c.cycleBit, err)
		}
	}
}
