// config.go - Hardware-, Schicht- und Quantisierungs-Konfiguration
//
// Dieses Modul enthaelt:
// - FixMethod: geschlossene Aufzaehlung der Festkomma-Verfahren
// - LayerType: conv oder fc
// - HardwareConfig, LayerConfig, QuantizeConfig inkl. Validierung
//
// Die Konfigurationen werden von aussen geladen; hier wird nur geprueft.
package xbar

import (
	"fmt"
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
)

// suggest returns ", did you mean X?" for the candidate closest to s, or ""
// if none is within a few edits.
func suggest(s string, candidates ...string) string {
	best, score := "", math.MaxInt
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(strings.ToUpper(s), strings.ToUpper(c)); d < score {
			best, score = c, d
		}
	}
	if score > 3 || best == "" {
		return ""
	}
	return fmt.Sprintf(", did you mean %s?", best)
}

// FixMethod selects how a layer evaluates its forward pass.
type FixMethod int

const (
	// Tradition computes partitions in full precision.
	Tradition FixMethod = iota
	// FixTrain quantizes weight and output once per pass, without bit slicing.
	FixTrain
	// SingleFixTest runs the bit-serial crossbar algorithm. Inference only.
	SingleFixTest
)

var fixMethodNames = map[FixMethod]string{
	Tradition:     "TRADITION",
	FixTrain:      "FIX_TRAIN",
	SingleFixTest: "SINGLE_FIX_TEST",
}

func (m FixMethod) String() string {
	if s, ok := fixMethodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("FixMethod(%d)", int(m))
}

// ParseFixMethod accepts the configuration tags TRADITION, FIX_TRAIN and
// SINGLE_FIX_TEST (case-insensitive).
func ParseFixMethod(s string) (FixMethod, error) {
	for m, name := range fixMethodNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	names := make([]string, 0, len(fixMethodNames))
	for m := Tradition; m <= SingleFixTest; m++ {
		names = append(names, fixMethodNames[m])
	}
	return 0, fmt.Errorf("not support fix method %q%s: %w", s, suggest(s, names...), ErrConfiguration)
}

func (m FixMethod) MarshalText() ([]byte, error) {
	if _, ok := fixMethodNames[m]; !ok {
		return nil, fmt.Errorf("not support %s: %w", m, ErrConfiguration)
	}
	return []byte(m.String()), nil
}

func (m *FixMethod) UnmarshalText(b []byte) (err error) {
	*m, err = ParseFixMethod(string(b))
	return err
}

// LayerType is the kind of crossbar layer.
type LayerType int

const (
	Conv LayerType = iota
	FC
)

func (t LayerType) String() string {
	switch t {
	case Conv:
		return "conv"
	case FC:
		return "fc"
	default:
		return fmt.Sprintf("LayerType(%d)", int(t))
	}
}

// ParseLayerType accepts "conv" and "fc".
func ParseLayerType(s string) (LayerType, error) {
	switch strings.ToLower(s) {
	case "conv":
		return Conv, nil
	case "fc":
		return FC, nil
	}
	return 0, fmt.Errorf("not support layer type %q%s: %w", s, suggest(s, "conv", "fc"), ErrConfiguration)
}

func (t LayerType) MarshalText() ([]byte, error) {
	if t != Conv && t != FC {
		return nil, fmt.Errorf("not support %s: %w", t, ErrConfiguration)
	}
	return []byte(t.String()), nil
}

func (t *LayerType) UnmarshalText(b []byte) (err error) {
	*t, err = ParseLayerType(string(b))
	return err
}

// HardwareConfig describes one crossbar array and its periphery.
type HardwareConfig struct {
	// XbarSize is the column (input) capacity of one array.
	XbarSize int `json:"xbar_size"`
	// WeightBit is the number of bits one cell holds.
	WeightBit int `json:"weight_bit"`
	// InputBit is the number of activation bits applied per cycle.
	InputBit int `json:"input_bit"`
	// QuantizeBit is the ADC output width Q.
	QuantizeBit int       `json:"quantize_bit"`
	FixMethod   FixMethod `json:"fix_method"`
}

// Validate checks that all widths are positive and the method is known.
func (c HardwareConfig) Validate() error {
	for name, v := range map[string]int{
		"xbar_size":    c.XbarSize,
		"weight_bit":   c.WeightBit,
		"input_bit":    c.InputBit,
		"quantize_bit": c.QuantizeBit,
	} {
		if v <= 0 {
			return fmt.Errorf("hardware %s must be positive, got %d: %w", name, v, ErrConfiguration)
		}
	}
	if _, ok := fixMethodNames[c.FixMethod]; !ok {
		return fmt.Errorf("not support %s: %w", c.FixMethod, ErrConfiguration)
	}
	return nil
}

// LayerConfig describes a conv or fc layer without bias.
type LayerConfig struct {
	Type LayerType `json:"type"`

	KernelSize  int `json:"kernel_size,omitempty"`
	InChannels  int `json:"in_channels,omitempty"`
	OutChannels int `json:"out_channels,omitempty"`

	InFeatures  int `json:"in_features,omitempty"`
	OutFeatures int `json:"out_features,omitempty"`
}

// InDim returns in_channels for conv and in_features for fc.
func (c LayerConfig) InDim() int {
	if c.Type == Conv {
		return c.InChannels
	}
	return c.InFeatures
}

// OutDim returns out_channels for conv and out_features for fc.
func (c LayerConfig) OutDim() int {
	if c.Type == Conv {
		return c.OutChannels
	}
	return c.OutFeatures
}

// Validate checks the dimensions relevant to the layer type.
func (c LayerConfig) Validate() error {
	switch c.Type {
	case Conv:
		if c.KernelSize <= 0 || c.InChannels <= 0 || c.OutChannels <= 0 {
			return fmt.Errorf("conv layer needs positive kernel_size, in_channels, out_channels: %w", ErrConfiguration)
		}
	case FC:
		if c.InFeatures <= 0 || c.OutFeatures <= 0 {
			return fmt.Errorf("fc layer needs positive in_features, out_features: %w", ErrConfiguration)
		}
	default:
		return fmt.Errorf("not support %s: %w", c.Type, ErrConfiguration)
	}
	return nil
}

// QuantizeConfig holds the target widths of the layer; they differ from the
// per-cycle hardware widths.
type QuantizeConfig struct {
	WeightBit     int `json:"weight_bit"`
	ActivationBit int `json:"activation_bit"`
	// PointShift is the extra fractional-bit offset before ADC rounding.
	PointShift int `json:"point_shift"`
}

// Validate checks the target widths and their divisibility by the hardware
// cycle widths.
func (c QuantizeConfig) Validate(hw HardwareConfig) error {
	if c.WeightBit < 2 || c.ActivationBit < 2 {
		return fmt.Errorf("quantize widths must be at least 2 bits, got weight=%d activation=%d: %w",
			c.WeightBit, c.ActivationBit, ErrConfiguration)
	}
	if _, err := CycleCount(c.WeightBit, hw.WeightBit); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	if _, err := CycleCount(c.ActivationBit, hw.InputBit); err != nil {
		return fmt.Errorf("activation: %w", err)
	}
	return nil
}
