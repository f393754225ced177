// scale.go - bit_scale Ledger und persistierbarer Schichtzustand
package xbar

import (
	"fmt"

	"github.com/mnsim/xbarsim/quantize"
)

// ScaleRecord is the per-layer ledger of bit widths and grid steps for the
// input activation, the weight and the output activation.
type ScaleRecord struct {
	Input  quantize.Record
	Weight quantize.Record
	Output quantize.Record
}

// Table returns the ledger as rows {input, weight, output} × {bit, scale}.
func (r ScaleRecord) Table() [3][2]float64 {
	var t [3][2]float64
	for i, rec := range []quantize.Record{r.Input, r.Weight, r.Output} {
		t[i] = [2]float64{float64(rec.Bit), rec.Scale}
	}
	return t
}

// ScaleRecordFromTable is the inverse of Table.
func ScaleRecordFromTable(t [3][2]float64) ScaleRecord {
	row := func(i int) quantize.Record {
		return quantize.Record{Bit: int(t[i][0]), Scale: t[i][1]}
	}
	return ScaleRecord{Input: row(0), Weight: row(1), Output: row(2)}
}

// LayerState is the learned-but-not-trained state that a checkpoint stores
// next to the weights.
type LayerState struct {
	LastValue    float64       `json:"last_value"`
	BitScaleList [3][2]float64 `json:"bit_scale_list"`
}

// Scales returns the current ledger.
func (l *Layer) Scales() ScaleRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scales
}

// RunningScale returns the running activation maximum.
func (l *Layer) RunningScale() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running.Value
}

// State snapshots the ledger and the running scale.
func (l *Layer) State() LayerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return LayerState{LastValue: l.running.Value, BitScaleList: l.scales.Table()}
}

// LoadState restores a snapshot taken by State.
func (l *Layer) LoadState(s LayerState) error {
	if s.LastValue < 0 {
		return fmt.Errorf("negative running scale %v: %w", s.LastValue, ErrConfiguration)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running.Value = s.LastValue
	l.scales = ScaleRecordFromTable(s.BitScaleList)
	return nil
}
