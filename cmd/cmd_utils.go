// cmd_utils.go - Gemeinsame Hilfsfunktionen
// Hauptfunktionen: layerOptionsFromFlags, newSession, calibrate, evaluate
package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mnsim/xbarsim/envconfig"
	"github.com/mnsim/xbarsim/ml"
	"github.com/mnsim/xbarsim/quantize"
	"github.com/mnsim/xbarsim/xbar"
)

// layerOptions - Konfiguration einer simulierten Schicht
type layerOptions struct {
	Hardware xbar.HardwareConfig
	Layer    xbar.LayerConfig
	Quantize xbar.QuantizeConfig
}

// runOptions - Optionen fuer Kalibrierung und Eingaben
type runOptions struct {
	Batch    int
	Size     int
	Calib    int
	Seed     uint64
	Parallel int
}

// layerOptionsFromFlags - Liest die Schicht-Flags und prueft die Konfiguration
func layerOptionsFromFlags(cmd *cobra.Command) (layerOptions, error) {
	var opts layerOptions

	typeName, err := cmd.Flags().GetString("type")
	if err != nil {
		return opts, err
	}
	layerType, err := xbar.ParseLayerType(typeName)
	if err != nil {
		return opts, err
	}

	ints := map[string]*int{}
	var in, out, kernel int
	ints["in"], ints["out"], ints["kernel"] = &in, &out, &kernel
	ints["xbar-size"] = &opts.Hardware.XbarSize
	ints["cell-bit"] = &opts.Hardware.WeightBit
	ints["input-bit"] = &opts.Hardware.InputBit
	ints["adc-bit"] = &opts.Hardware.QuantizeBit
	ints["weight-bit"] = &opts.Quantize.WeightBit
	ints["activation-bit"] = &opts.Quantize.ActivationBit
	ints["point-shift"] = &opts.Quantize.PointShift
	for name, dst := range ints {
		if *dst, err = cmd.Flags().GetInt(name); err != nil {
			return opts, err
		}
	}

	opts.Hardware.FixMethod = xbar.FixTrain
	opts.Layer.Type = layerType
	switch layerType {
	case xbar.Conv:
		opts.Layer.KernelSize, opts.Layer.InChannels, opts.Layer.OutChannels = kernel, in, out
	case xbar.FC:
		opts.Layer.InFeatures, opts.Layer.OutFeatures = in, out
	}

	if err := opts.Hardware.Validate(); err != nil {
		return opts, err
	}
	if err := opts.Layer.Validate(); err != nil {
		return opts, err
	}
	return opts, opts.Quantize.Validate(opts.Hardware)
}

// runOptionsFromFlags - Liest die Lauf-Flags, Defaults aus der Umgebung
func runOptionsFromFlags(cmd *cobra.Command) (runOptions, error) {
	opts := runOptions{Seed: envconfig.Seed(), Parallel: int(envconfig.NumParallel())}

	var err error
	if opts.Batch, err = cmd.Flags().GetInt("batch"); err != nil {
		return opts, err
	}
	if opts.Size, err = cmd.Flags().GetInt("size"); err != nil {
		return opts, err
	}
	if opts.Calib, err = cmd.Flags().GetInt("calib"); err != nil {
		return opts, err
	}
	if cmd.Flags().Changed("seed") {
		if opts.Seed, err = cmd.Flags().GetUint64("seed"); err != nil {
			return opts, err
		}
	}
	if cmd.Flags().Changed("parallel") {
		if opts.Parallel, err = cmd.Flags().GetInt("parallel"); err != nil {
			return opts, err
		}
	}

	if opts.Batch <= 0 || opts.Calib <= 0 {
		return opts, fmt.Errorf("batch and calib must be positive: %w", xbar.ErrConfiguration)
	}
	return opts, nil
}

// =============================================================================
// Session: Schicht, Eingangsstufe und Zufallsquelle
// =============================================================================

// session - Eine kalibrierbare Schicht mit vorgeschalteter Eingangsstufe
type session struct {
	layerOptions
	run runOptions

	rng   *rand.Rand
	input *xbar.InputQuantizer
	layer *xbar.Layer
}

// newSession - Baut Schicht und Eingangsstufe und zieht die Gewichte
func newSession(lo layerOptions, ro runOptions) (*session, error) {
	if lo.Layer.Type == xbar.Conv && ro.Size < lo.Layer.KernelSize {
		return nil, fmt.Errorf("input size %d smaller than kernel %d: %w", ro.Size, lo.Layer.KernelSize, xbar.ErrConfiguration)
	}

	layer, err := xbar.NewLayer(lo.Hardware, lo.Layer, lo.Quantize, xbar.WithParallelism(ro.Parallel))
	if err != nil {
		return nil, err
	}
	input, err := xbar.NewInputQuantizer(lo.Quantize.ActivationBit, lo.Hardware.FixMethod)
	if err != nil {
		return nil, err
	}

	s := &session{
		layerOptions: lo,
		run:          ro,
		rng:          rand.New(rand.NewSource(int64(ro.Seed))),
		input:        input,
		layer:        layer,
	}
	s.layer.Reset(s.rng)
	return s, nil
}

// randomInput - Erzeugt normalverteilte Eingaben passender Form
func (s *session) randomInput() *ml.Tensor {
	shape := []int{s.run.Batch, s.Layer.InDim()}
	if s.Layer.Type == xbar.Conv {
		shape = append(shape, s.run.Size, s.run.Size)
	}

	x := ml.New(shape...)
	data := x.Floats()
	for i := range data {
		data[i] = s.rng.NormFloat64()
	}
	return x
}

// showProgress - Fortschritt nur auf einem Terminal und ohne XBAR_NOPROGRESS
func showProgress() bool {
	return !envconfig.NoProgress() && term.IsTerminal(int(os.Stderr.Fd()))
}

// calibrate - Fuehrt die FIX_TRAIN Trainingslaeufe aus und schaltet auf Inferenz
func (s *session) calibrate(ctx context.Context, progress io.Writer) error {
	s.input.SetFixMethod(xbar.FixTrain)
	if err := s.layer.SetFixMethod(xbar.FixTrain); err != nil {
		return err
	}
	s.input.SetTraining(true)
	s.layer.SetTraining(true)
	defer func() {
		s.input.SetTraining(false)
		s.layer.SetTraining(false)
	}()

	for pass := range s.run.Calib {
		if err := ctx.Err(); err != nil {
			return err
		}
		var state quantize.State
		x, err := s.input.Forward(&state, s.randomInput())
		if err != nil {
			return err
		}
		if _, err := s.layer.Forward(&state, x); err != nil {
			return err
		}
		if progress != nil {
			fmt.Fprintf(progress, "\rcalibrating %d/%d", pass+1, s.run.Calib)
		}
	}
	if progress != nil {
		fmt.Fprintln(progress)
	}
	return nil
}

// evaluate - Inferenz-Lauf mit dem angegebenen Verfahren
func (s *session) evaluate(x *ml.Tensor, m xbar.FixMethod) (*ml.Tensor, error) {
	s.input.SetFixMethod(m)
	if err := s.layer.SetFixMethod(m); err != nil {
		return nil, err
	}

	var state quantize.State
	xq, err := s.input.Forward(&state, x)
	if err != nil {
		return nil, err
	}
	return s.layer.Forward(&state, xq)
}

// quantizedInput - Eingabe nach der Eingangsstufe im SINGLE_FIX_TEST Betrieb
func (s *session) quantizedInput(x *ml.Tensor) (*ml.Tensor, error) {
	s.input.SetFixMethod(xbar.SingleFixTest)
	var state quantize.State
	return s.input.Forward(&state, x)
}

// calibratedSession - Liest alle Flags, baut und kalibriert eine Session
func calibratedSession(cmd *cobra.Command) (*session, error) {
	lo, err := layerOptionsFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	ro, err := runOptionsFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	s, err := newSession(lo, ro)
	if err != nil {
		return nil, err
	}

	var progress io.Writer
	if showProgress() {
		progress = os.Stderr
	}
	if err := s.calibrate(cmd.Context(), progress); err != nil {
		return nil, err
	}
	return s, nil
}
