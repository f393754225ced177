// cmd_plan.go - Plan Command
// Hauptfunktionen: PlanHandler
package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mnsim/xbarsim/xbar"
)

// PlanHandler - Zeigt Partitionen, Spaltenbelegung und Zyklen einer Schicht
func PlanHandler(cmd *cobra.Command, args []string) error {
	opts, err := layerOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	widths, err := xbar.Plan(opts.Layer, opts.Hardware.XbarSize)
	if err != nil {
		return err
	}
	weightCycles, err := xbar.CycleCount(opts.Quantize.WeightBit, opts.Hardware.WeightBit)
	if err != nil {
		return err
	}
	inputCycles, err := xbar.CycleCount(opts.Quantize.ActivationBit, opts.Hardware.InputBit)
	if err != nil {
		return err
	}

	columnsPerInput := 1
	if opts.Layer.Type == xbar.Conv {
		columnsPerInput = opts.Layer.KernelSize * opts.Layer.KernelSize
	}

	var data [][]string
	for i, w := range widths {
		columns := w * columnsPerInput
		usage := float64(columns) / float64(opts.Hardware.XbarSize) * 100
		data = append(data, []string{
			strconv.Itoa(i),
			strconv.Itoa(w),
			strconv.Itoa(columns),
			fmt.Sprintf("%.0f%%", usage),
			strconv.Itoa(2 * weightCycles),
		})
	}

	w := cmd.OutOrStdout()
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PARTITION", "INPUTS", "COLUMNS", "USAGE", "ARRAYS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(w, "\n%s layer, %d partitions, %d weight cycles, %d input cycles, %d partial products per partition\n",
		opts.Layer.Type, len(widths), weightCycles, inputCycles, weightCycles*inputCycles)
	return nil
}
