// quantize.go - Symmetrische Festkomma-Quantisierung fuer Gewichte und Aktivierungen
//
// Dieses Modul enthaelt:
// - Quantize: Fake-Quantisierung auf das Raster q·scale/thres
// - RunningScale: EMA-Schaetzer des Aktivierungsmaximums
// - State: expliziter Zustand des letzten Aufrufs (Bit-Breite und Scale)
// - Digits: ganzzahliges Raster fuer den bit-seriellen Pfad
package quantize

import (
	"errors"
	"fmt"
	"math"

	"github.com/mnsim/xbarsim/ml"
)

// ErrConfiguration marks unsupported modes and bit widths. It is always fatal.
var ErrConfiguration = errors.New("configuration error")

// Mittelungsfaktor des laufenden Aktivierungsmaximums.
const emaRatio = 0.707

// Mode selects how the quantization scale is obtained.
type Mode int

const (
	// ModeWeight recomputes scale = max|t| on every call.
	ModeWeight Mode = iota
	// ModeActivation takes the scale from a RunningScale.
	ModeActivation
)

func (m Mode) String() string {
	switch m {
	case ModeWeight:
		return "weight"
	case ModeActivation:
		return "activation"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Record is one row of a layer's bit/scale ledger. Scale is the grid step
// max/threshold, not the maximum itself.
type Record struct {
	Bit   int
	Scale float64
}

// Valid reports whether the record was ever filled by a quantize call.
func (r Record) Valid() bool { return r.Bit > 1 }

// RunningScale is the per-layer moving estimate of max|activation|.
type RunningScale struct {
	Value float64
}

// Update folds a new observed maximum into the estimate.
func (r *RunningScale) Update(max float64) {
	r.Value = emaRatio*r.Value + (1-emaRatio)*max
}

// Threshold returns the largest grid magnitude 2^(bit-1)-1.
func Threshold(bit int) float64 {
	return math.Exp2(float64(bit-1)) - 1
}

// Quantize fake-quantizes t to bit bits. In activation mode running must be
// non-nil; it is updated only when training is set. The returned record
// carries (bit, scale/threshold).
func Quantize(t *ml.Tensor, bit int, mode Mode, running *RunningScale, training bool) (*ml.Tensor, Record, error) {
	if bit < 2 {
		return nil, Record{}, fmt.Errorf("quantize to %d bits: %w", bit, ErrConfiguration)
	}

	var scale float64
	switch mode {
	case ModeWeight:
		scale = t.MaxAbs()
	case ModeActivation:
		if running == nil {
			return nil, Record{}, fmt.Errorf("activation quantize without running scale: %w", ErrConfiguration)
		}
		if training {
			running.Update(t.MaxAbs())
		}
		scale = running.Value
	default:
		return nil, Record{}, fmt.Errorf("not support %s: %w", mode, ErrConfiguration)
	}

	thres := Threshold(bit)
	rec := Record{Bit: bit, Scale: scale / thres}
	if scale == 0 {
		// entartete Quantisierung: alles auf Null
		return ml.New(t.Shape()...), rec, nil
	}

	out := t.Map(func(v float64) float64 {
		return Clamp(math.RoundToEven(v/scale*thres), thres) * scale / thres
	})
	return out, rec, nil
}

// Digits maps t onto the integer grid clamp(round(t/step)) used when the
// values are decomposed into bit planes. A zero step yields zeros.
func Digits(t *ml.Tensor, step float64, bit int) *ml.Tensor {
	if step == 0 {
		return ml.New(t.Shape()...)
	}
	thres := Threshold(bit)
	return t.Map(func(v float64) float64 {
		return Clamp(math.RoundToEven(v/step), thres)
	})
}

// Clamp limits v to [0-thres, thres-0].
func Clamp(v, thres float64) float64 {
	return math.Min(math.Max(v, 0-thres), thres-0)
}
