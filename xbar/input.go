package xbar

import (
	"fmt"
	"sync"

	"github.com/mnsim/xbarsim/ml"
	"github.com/mnsim/xbarsim/quantize"
)

// InputQuantizer is the activation-only stage in front of the first crossbar
// layer. It fills State.Activation so the first layer has an input record.
type InputQuantizer struct {
	mu sync.Mutex

	bit      int
	method   FixMethod
	running  quantize.RunningScale
	training bool
}

// NewInputQuantizer returns a stage quantizing to bit bits.
func NewInputQuantizer(bit int, method FixMethod) (*InputQuantizer, error) {
	if bit < 2 {
		return nil, fmt.Errorf("input quantizer with %d bits: %w", bit, ErrConfiguration)
	}
	if _, ok := fixMethodNames[method]; !ok {
		return nil, fmt.Errorf("not support %s: %w", method, ErrConfiguration)
	}
	return &InputQuantizer{bit: bit, method: method}, nil
}

// SetTraining switches the running scale update on or off.
func (q *InputQuantizer) SetTraining(training bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.training = training
}

// SetFixMethod follows the method of the layers behind the stage.
func (q *InputQuantizer) SetFixMethod(m FixMethod) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.method = m
}

// RunningScale returns the running input maximum.
func (q *InputQuantizer) RunningScale() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running.Value
}

// Forward passes x through unchanged under Tradition, otherwise quantizes it
// as an activation and records the result in state.
func (q *InputQuantizer) Forward(state *quantize.State, x *ml.Tensor) (*ml.Tensor, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.method == Tradition {
		return x, nil
	}
	if state == nil {
		return nil, fmt.Errorf("input quantizer without quantize state: %w", ErrModeInvariant)
	}
	return state.Quantize(x, q.bit, quantize.ModeActivation, &q.running, q.training)
}
