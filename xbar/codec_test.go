package xbar

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnsim/xbarsim/ml"
)

func TestPlaneCodecRoundTrip(t *testing.T) {
	cells := ml.FromFloats([]float64{0, 1, 2, 3, 7, 15, 0, 255}, 2, 4)

	for _, e := range []Encoding{EncodingF32, EncodingF16, EncodingBF16} {
		t.Run(e.String(), func(t *testing.T) {
			b, err := EncodePlane(cells, e)
			require.NoError(t, err)
			assert.Len(t, b, cells.Len()*e.ElementSize())

			got, err := DecodePlane(b, e, 2, 4)
			require.NoError(t, err)
			if diff := cmp.Diff(cells.Floats(), got.Floats()); diff != "" {
				t.Errorf("Zellwerte (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlaneCodecRejectsInexact(t *testing.T) {
	tests := []struct {
		name   string
		e      Encoding
		values []float64
	}{
		{"bf16 ueber 256", EncodingBF16, []float64{1, 257}},
		{"bf16 511", EncodingBF16, []float64{511}},
		{"f16 ueber 2048", EncodingF16, []float64{2049}},
		{"Bruch", EncodingF32, []float64{0.5}},
		{"negativ", EncodingF16, []float64{-3000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodePlane(ml.FromFloats(tt.values, len(tt.values)), tt.e)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}

	// 256 und 2048 liegen noch im exakten Bereich
	for e, v := range map[Encoding]float64{EncodingBF16: 256, EncodingF16: 2048} {
		b, err := EncodePlane(ml.FromFloats([]float64{v}, 1), e)
		require.NoError(t, err)
		got, err := DecodePlane(b, e, 1)
		require.NoError(t, err)
		assert.Equal(t, v, got.Floats()[0])
	}
}

func TestCheckCellBit(t *testing.T) {
	tests := []struct {
		e    Encoding
		bit  int
		fail bool
	}{
		{EncodingBF16, 8, false},
		{EncodingBF16, 9, true},
		{EncodingF16, 11, false},
		{EncodingF16, 12, true},
		{EncodingF32, 24, false},
		{EncodingF32, 25, true},
		{Encoding(9), 1, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.e, tt.bit), func(t *testing.T) {
			err := tt.e.CheckCellBit(tt.bit)
			if tt.fail {
				assert.ErrorIs(t, err, ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlaneCodecErrors(t *testing.T) {
	_, err := DecodePlane(make([]byte, 7), EncodingF32, 2)
	assert.ErrorIs(t, err, ErrPlaneMismatch)

	_, err = EncodePlane(ml.New(1), Encoding(9))
	assert.ErrorIs(t, err, ErrConfiguration)

	for in, want := range map[string]Encoding{"": EncodingF32, "F16": EncodingF16, "bf16": EncodingBF16} {
		got, err := ParseEncoding(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = ParseEncoding("int8")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseConfigTags(t *testing.T) {
	m, err := ParseFixMethod("single_fix_test")
	require.NoError(t, err)
	assert.Equal(t, SingleFixTest, m)
	assert.Equal(t, "FIX_TRAIN", FixTrain.String())

	_, err = ParseFixMethod("DOUBLE_FIX")
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = ParseFixMethod("FIX_TRIAN")
	assert.ErrorContains(t, err, "did you mean FIX_TRAIN?")
	_, err = ParseFixMethod("quantize")
	assert.NotContains(t, err.Error(), "did you mean")

	lt, err := ParseLayerType("FC")
	require.NoError(t, err)
	assert.Equal(t, FC, lt)
	_, err = ParseLayerType("pool")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigJSON(t *testing.T) {
	hw := HardwareConfig{XbarSize: 128, WeightBit: 2, InputBit: 2, QuantizeBit: 10, FixMethod: SingleFixTest}
	b, err := json.Marshal(hw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"xbar_size":128,"weight_bit":2,"input_bit":2,"quantize_bit":10,"fix_method":"SINGLE_FIX_TEST"}`, string(b))

	var back HardwareConfig
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, hw, back)

	var cfg LayerConfig
	require.NoError(t, json.Unmarshal([]byte(`{"type":"conv","kernel_size":3,"in_channels":4,"out_channels":2}`), &cfg))
	assert.Equal(t, LayerConfig{Type: Conv, KernelSize: 3, InChannels: 4, OutChannels: 2}, cfg)

	assert.Error(t, json.Unmarshal([]byte(`{"fix_method":"FIX"}`), &back))
}
