// info.go - LayerInfo fuer nachgelagerte Leistungs-/Flaechen-Schaetzer
//
// Die Schluessel von Map() entsprechen dem Info-Dictionary, das die
// Schaetzwerkzeuge erwarten, in derselben Reihenfolge.
package xbar

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// LayerInfo is the shape and quantization snapshot of one layer.
type LayerInfo struct {
	Type LayerType

	// conv
	InputSize     []int
	OutputSize    []int
	KernelSize    int
	Stride        int
	InputChannel  int
	OutputChannel int

	// fc
	InFeature  int
	OutFeature int

	InputBit     int
	WeightBit    int
	OutputBit    int
	RowSplitNum  int
	WeightCycles int
}

func (l *Layer) newInfo(inShape, outShape []int) *LayerInfo {
	info := &LayerInfo{
		Type:        l.cfg.Type,
		InputBit:    l.scales.Input.Bit,
		WeightBit:   l.scales.Weight.Bit,
		OutputBit:   l.scales.Output.Bit,
		RowSplitNum: len(l.partitions),
	}
	if l.scales.Weight.Valid() {
		info.WeightCycles = (l.scales.Weight.Bit - 1) / l.hw.WeightBit
	}

	switch l.cfg.Type {
	case Conv:
		info.InputSize = inShape[2:]
		info.OutputSize = outShape[2:]
		info.KernelSize = l.cfg.KernelSize
		info.Stride = 1
		info.InputChannel = inShape[1]
		info.OutputChannel = outShape[1]
	case FC:
		info.InFeature = inShape[1]
		info.OutFeature = outShape[1]
	}
	return info
}

// Map returns the info as an insertion-ordered dictionary.
func (i *LayerInfo) Map() *orderedmap.OrderedMap[string, any] {
	m := orderedmap.New[string, any]()
	m.Set("type", i.Type.String())
	switch i.Type {
	case Conv:
		m.Set("Inputsize", i.InputSize)
		m.Set("Outputsize", i.OutputSize)
		m.Set("Kernelsize", i.KernelSize)
		m.Set("Stride", i.Stride)
		m.Set("Inputchannel", i.InputChannel)
		m.Set("Outputchannel", i.OutputChannel)
	case FC:
		m.Set("Infeature", i.InFeature)
		m.Set("Outfeature", i.OutFeature)
	}
	m.Set("Inputbit", i.InputBit)
	m.Set("Weightbit", i.WeightBit)
	m.Set("outputbit", i.OutputBit)
	m.Set("row_split_num", i.RowSplitNum)
	m.Set("weight_cycle", i.WeightCycles)
	return m
}
