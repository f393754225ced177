// state.go - Expliziter Zustand des letzten Quantisierungsaufrufs
// Ersetzt globale "last scale / last bit" Variablen. Ein State wird von
// Schicht zu Schicht durchgereicht; die Reihenfolge der Aufrufe bleibt
// Teil des Vertrags: der Slot wird direkt nach dem Aufruf gelesen.
package quantize

import "github.com/mnsim/xbarsim/ml"

// State holds the record of the most recent weight and activation quantize
// call of a forward chain.
type State struct {
	Weight     Record
	Activation Record
}

// Quantize runs Quantize and stores the resulting record in the slot
// selected by mode.
func (s *State) Quantize(t *ml.Tensor, bit int, mode Mode, running *RunningScale, training bool) (*ml.Tensor, error) {
	out, rec, err := Quantize(t, bit, mode, running, training)
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeWeight:
		s.Weight = rec
	case ModeActivation:
		s.Activation = rec
	}
	return out, nil
}
