package xbar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFC(t *testing.T) {
	widths, err := Plan(LayerConfig{Type: FC, InFeatures: 20, OutFeatures: 10}, 8)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 8, 4}, widths)

	cycles, err := CycleCount(9, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, cycles)
}

func TestPlanConv(t *testing.T) {
	tests := []struct {
		name   string
		cfg    LayerConfig
		xbar   int
		expect []int
	}{
		{"3x3 exakt", LayerConfig{Type: Conv, KernelSize: 3, InChannels: 28, OutChannels: 4}, 128, []int{14, 14}},
		{"3x3 Rest", LayerConfig{Type: Conv, KernelSize: 3, InChannels: 30, OutChannels: 4}, 128, []int{14, 14, 2}},
		{"1x1", LayerConfig{Type: Conv, KernelSize: 1, InChannels: 5, OutChannels: 4}, 4, []int{4, 1}},
		{"kleiner als ein Array", LayerConfig{Type: Conv, KernelSize: 2, InChannels: 3, OutChannels: 4}, 64, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			widths, err := Plan(tt.cfg, tt.xbar)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, widths)
		})
	}
}

func TestPlanCompleteness(t *testing.T) {
	for inDim := 1; inDim <= 70; inDim++ {
		for capacity := 1; capacity <= 17; capacity++ {
			widths, err := PlanWidths(inDim, capacity)
			require.NoError(t, err)

			sum := 0
			for _, w := range widths {
				if w <= 0 || w > capacity {
					t.Fatalf("in=%d cap=%d: ungueltige Breite %d", inDim, capacity, w)
				}
				sum += w
			}
			if sum != inDim {
				t.Errorf("in=%d cap=%d: Summe %d", inDim, capacity, sum)
			}
			if want := (inDim + capacity - 1) / capacity; len(widths) != want {
				t.Errorf("in=%d cap=%d: %d Partitionen, erwartet %d", inDim, capacity, len(widths), want)
			}
		}
	}
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  LayerConfig
		xbar int
	}{
		{"Kernel groesser als Array", LayerConfig{Type: Conv, KernelSize: 5, InChannels: 3, OutChannels: 1}, 16},
		{"unbekannter Typ", LayerConfig{Type: LayerType(9), InFeatures: 3}, 16},
		{"keine Eingaenge", LayerConfig{Type: FC, InFeatures: 0, OutFeatures: 1}, 16},
		{"Array ohne Spalten", LayerConfig{Type: FC, InFeatures: 4, OutFeatures: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.cfg, tt.xbar)
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Fehler = %v, erwartet ErrConfiguration", err)
			}
		})
	}
}
