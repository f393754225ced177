// layer.go - Quantisierte Crossbar-Schicht (conv oder fc, ohne Bias)
//
// Dieses Modul enthaelt:
// - NewLayer: Validierung, Partitionierung und Gewichtsallokation
// - Forward: Dispatch auf TRADITION, FIX_TRAIN und SINGLE_FIX_TEST
// - StructureForward: Kalibrierungslauf, der LayerInfo erzeugt
// - Zugriff auf Gewichte, Ledger und laufende Aktivierungs-Scale
package xbar

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/mnsim/xbarsim/envconfig"
	"github.com/mnsim/xbarsim/logutil"
	"github.com/mnsim/xbarsim/ml"
	"github.com/mnsim/xbarsim/quantize"
)

// Layer is a conv or fc layer mapped onto crossbar partitions. Forward calls
// on one Layer are serialized.
type Layer struct {
	mu sync.Mutex

	hw    HardwareConfig
	cfg   LayerConfig
	quant QuantizeConfig

	partitions []*Partition
	widths     []int
	splitInput int

	running  quantize.RunningScale
	scales   ScaleRecord
	training bool

	acc  *Accumulator
	info *LayerInfo

	parallel int
}

// LayerOption configures a Layer at construction.
type LayerOption func(*Layer)

// WithParallelism bounds how many partitions are computed concurrently.
func WithParallelism(n int) LayerOption {
	return func(l *Layer) {
		l.parallel = n
	}
}

// NewLayer validates the configuration and plans the partitions. Weights
// start at zero; use Reset or SetWeight.
func NewLayer(hw HardwareConfig, cfg LayerConfig, quant QuantizeConfig, opts ...LayerOption) (*Layer, error) {
	if err := hw.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := quant.Validate(hw); err != nil {
		return nil, err
	}

	widths, err := Plan(cfg, hw.XbarSize)
	if err != nil {
		return nil, err
	}
	split, err := Capacity(cfg, hw.XbarSize)
	if err != nil {
		return nil, err
	}

	l := &Layer{
		hw:         hw,
		cfg:        cfg,
		quant:      quant,
		widths:     widths,
		splitInput: split,
		parallel:   int(envconfig.NumParallel()),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.partitions = make([]*Partition, len(widths))
	for i, w := range widths {
		l.partitions[i] = &Partition{Index: i, Width: w, Weight: ml.New(l.weightShape(w)...)}
	}
	l.acc = NewAccumulator(hw, quant, cfg.Type, l.parallel)

	slog.Debug("crossbar layer", "type", cfg.Type, "fix_method", hw.FixMethod,
		"partitions", widths, "split_input", split, "parallel", l.parallel)
	return l, nil
}

func (l *Layer) weightShape(width int) []int {
	if l.cfg.Type == Conv {
		return []int{l.cfg.OutChannels, width, l.cfg.KernelSize, l.cfg.KernelSize}
	}
	return []int{l.cfg.OutFeatures, width}
}

// Config returns the three configurations the layer was built from.
func (l *Layer) Config() (HardwareConfig, LayerConfig, QuantizeConfig) {
	return l.hw, l.cfg, l.quant
}

// Partitions returns the partition widths in input order.
func (l *Layer) Partitions() []int { return slices.Clone(l.widths) }

// SplitInput is the width of a full partition.
func (l *Layer) SplitInput() int { return l.splitInput }

// SetTraining switches between training and inference.
func (l *Layer) SetTraining(training bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.training = training
}

// Training reports the training flag.
func (l *Layer) Training() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.training
}

// SetFixMethod changes the evaluation method, e.g. from FixTrain after
// calibration to SingleFixTest.
func (l *Layer) SetFixMethod(m FixMethod) error {
	if _, ok := fixMethodNames[m]; !ok {
		return fmt.Errorf("not support %s: %w", m, ErrConfiguration)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hw.FixMethod = m
	return nil
}

// =============================================================================
// Gewichte
// =============================================================================

// Reset draws every partition weight uniformly from ±1/sqrt(fan_in).
func (l *Layer) Reset(rng *rand.Rand) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.partitions {
		fanIn := p.Weight.Len() / p.Weight.Dim(0)
		bound := 1 / math.Sqrt(float64(fanIn))
		data := p.Weight.Floats()
		for i := range data {
			data[i] = (rng.Float64()*2 - 1) * bound
		}
	}
}

// SetWeight splits a full (out, in[, k, k]) weight into the partitions.
func (l *Layer) SetWeight(w *ml.Tensor) error {
	want := l.weightShape(l.cfg.InDim())
	if !slices.Equal(w.Shape(), want) {
		return fmt.Errorf("weight %v, want %v: %w", w.Shape(), want, ml.ErrShape)
	}
	parts, err := w.Split(1, l.widths)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, p := range parts {
		l.partitions[i].Weight = p
	}
	return nil
}

// Weight concatenates the partition weights along the input dimension.
func (l *Layer) Weight() *ml.Tensor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.weight()
}

func (l *Layer) weight() *ml.Tensor {
	ws := make([]*ml.Tensor, len(l.partitions))
	for i, p := range l.partitions {
		ws[i] = p.Weight
	}
	w, err := ml.Concat(1, ws...)
	if err != nil {
		// Partitionen werden nur ueber SetWeight mit geprueften Shapes gesetzt
		panic(err)
	}
	return w
}

// =============================================================================
// Forward
// =============================================================================

// Forward evaluates the layer with its current fix method. state carries the
// record of the preceding activation quantization and is updated by FixTrain;
// the other methods accept a nil state.
func (l *Layer) Forward(state *quantize.State, x *ml.Tensor) (*ml.Tensor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkInput(x); err != nil {
		return nil, err
	}

	logutil.Trace("crossbar forward", "fix_method", l.hw.FixMethod, "training", l.training, "shape", x.Shape())
	switch l.hw.FixMethod {
	case Tradition:
		return l.traditionForward(x)
	case FixTrain:
		return l.fixTrainForward(state, x)
	case SingleFixTest:
		if l.training {
			return nil, fmt.Errorf("%s forward while training: %w", SingleFixTest, ErrModeInvariant)
		}
		weights, err := l.weightPlanes()
		if err != nil {
			return nil, err
		}
		return l.bitSerialForward(x, weights)
	default:
		return nil, fmt.Errorf("not support %s: %w", l.hw.FixMethod, ErrConfiguration)
	}
}

func (l *Layer) checkInput(x *ml.Tensor) error {
	dims := 2
	if l.cfg.Type == Conv {
		dims = 4
	}
	if x.NumDims() != dims || x.Dim(1) != l.cfg.InDim() || x.Dim(0) == 0 {
		return fmt.Errorf("%s input %v with %d inputs: %w", l.cfg.Type, x.Shape(), l.cfg.InDim(), ml.ErrShape)
	}
	return nil
}

// traditionForward sums the full-precision partition products.
func (l *Layer) traditionForward(x *ml.Tensor) (*ml.Tensor, error) {
	inputs, err := x.Split(1, l.widths)
	if err != nil {
		return nil, err
	}

	var out *ml.Tensor
	for i, p := range l.partitions {
		y, err := Product(l.cfg.Type, inputs[i], p.Weight)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = y
		} else if err := out.Add(y); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fixTrainForward quantizes the concatenated weight and the output once.
func (l *Layer) fixTrainForward(state *quantize.State, x *ml.Tensor) (*ml.Tensor, error) {
	if state == nil {
		return nil, fmt.Errorf("%s forward without quantize state: %w", FixTrain, ErrModeInvariant)
	}

	l.scales.Input = state.Activation

	weight, err := state.Quantize(l.weight(), l.quant.WeightBit, quantize.ModeWeight, nil, false)
	if err != nil {
		return nil, err
	}
	l.scales.Weight = state.Weight

	out, err := Product(l.cfg.Type, x, weight)
	if err != nil {
		return nil, err
	}

	out, err = state.Quantize(out, l.quant.ActivationBit, quantize.ModeActivation, &l.running, l.training)
	if err != nil {
		return nil, err
	}
	l.scales.Output = state.Activation
	return out, nil
}

// bitSerialForward decomposes the input activation and accumulates it against
// the given per-partition weight planes.
func (l *Layer) bitSerialForward(x *ml.Tensor, weights [][]*ml.Tensor) (*ml.Tensor, error) {
	in, out := l.scales.Input, l.scales.Output
	if !in.Valid() || !out.Valid() {
		return nil, fmt.Errorf("input or output activation record empty: %w", ErrNotCalibrated)
	}
	cycles, err := CycleCount(in.Bit, l.hw.InputBit)
	if err != nil {
		return nil, fmt.Errorf("input activation: %w", err)
	}

	inputs, err := x.Split(1, l.widths)
	if err != nil {
		return nil, err
	}

	parts := make([]Operands, len(l.partitions))
	for p := range l.partitions {
		digits := quantize.Digits(inputs[p], in.Scale, in.Bit)
		s := Decompose(digits, cycles, l.hw.InputBit)

		parts[p].Activation = make([]*ml.Tensor, cycles)
		for i := range cycles {
			parts[p].Activation[i] = s.Signed(i, in.Scale)
		}
		parts[p].Weight = weights[p]
	}

	// Requantized at the output record's width, not at the width of the
	// first ledger row. The two differ once the input stage runs at another
	// activation width than this layer.
	return l.acc.Accumulate(parts, l.running.Value, out.Bit)
}

// weightSlices decomposes every partition weight on the recorded weight grid.
func (l *Layer) weightSlices() ([]*Slices, error) {
	rec := l.scales.Weight
	if !rec.Valid() {
		return nil, fmt.Errorf("weight record empty: %w", ErrNotCalibrated)
	}
	cycles, err := CycleCount(rec.Bit, l.hw.WeightBit)
	if err != nil {
		return nil, fmt.Errorf("weight: %w", err)
	}

	out := make([]*Slices, len(l.partitions))
	for i, p := range l.partitions {
		out[i] = Decompose(quantize.Digits(p.Weight, rec.Scale, rec.Bit), cycles, l.hw.WeightBit)
	}
	return out, nil
}

// weightPlanes returns sign·plane·scale for every partition and weight cycle.
func (l *Layer) weightPlanes() ([][]*ml.Tensor, error) {
	decomposed, err := l.weightSlices()
	if err != nil {
		return nil, err
	}
	weights := make([][]*ml.Tensor, len(decomposed))
	for p, s := range decomposed {
		weights[p] = make([]*ml.Tensor, s.Cycles())
		for j := range weights[p] {
			weights[p][j] = s.Signed(j, l.scales.Weight.Scale)
		}
	}
	return weights, nil
}

// StructureForward runs a full-precision pass and records the input and
// output shapes in the layer info.
func (l *Layer) StructureForward(x *ml.Tensor) (*ml.Tensor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkInput(x); err != nil {
		return nil, err
	}
	out, err := l.traditionForward(x)
	if err != nil {
		return nil, err
	}

	l.info = l.newInfo(x.Shape(), out.Shape())
	return out, nil
}

// Info returns the snapshot of the last StructureForward, nil before.
func (l *Layer) Info() *LayerInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.info
}
