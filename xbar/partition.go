// partition.go - Aufteilung der Eingangsdimension auf Crossbar-Arrays
package xbar

import (
	"fmt"

	"github.com/mnsim/xbarsim/ml"
)

// Partition is one crossbar-sized slice of the layer input dimension
// together with its weight block, (out, width) for fc and
// (out, width, k, k) for conv.
type Partition struct {
	Index  int
	Width  int
	Weight *ml.Tensor
}

// Capacity returns how many input channels (conv) or features (fc) fit in
// one array.
func Capacity(cfg LayerConfig, xbarSize int) (int, error) {
	switch cfg.Type {
	case Conv:
		if cfg.KernelSize <= 0 {
			return 0, fmt.Errorf("kernel size %d: %w", cfg.KernelSize, ErrConfiguration)
		}
		n := xbarSize / (cfg.KernelSize * cfg.KernelSize)
		if n == 0 {
			return 0, fmt.Errorf("kernel %dx%d does not fit a crossbar of %d columns: %w",
				cfg.KernelSize, cfg.KernelSize, xbarSize, ErrConfiguration)
		}
		return n, nil
	case FC:
		if xbarSize <= 0 {
			return 0, fmt.Errorf("crossbar size %d: %w", xbarSize, ErrConfiguration)
		}
		return xbarSize, nil
	default:
		return 0, fmt.Errorf("not support %s: %w", cfg.Type, ErrConfiguration)
	}
}

// Plan returns the ordered partition widths of a layer.
func Plan(cfg LayerConfig, xbarSize int) ([]int, error) {
	capacity, err := Capacity(cfg, xbarSize)
	if err != nil {
		return nil, err
	}
	return PlanWidths(cfg.InDim(), capacity)
}

// PlanWidths splits inDim into floor(inDim/capacity) full partitions and
// one residual partition if inDim is not a multiple of capacity.
func PlanWidths(inDim, capacity int) ([]int, error) {
	if inDim <= 0 || capacity <= 0 {
		return nil, fmt.Errorf("plan %d inputs on capacity %d: %w", inDim, capacity, ErrConfiguration)
	}

	complete, residual := inDim/capacity, inDim%capacity
	widths := make([]int, 0, complete+1)
	for range complete {
		widths = append(widths, capacity)
	}
	if residual > 0 {
		widths = append(widths, residual)
	}
	return widths, nil
}
