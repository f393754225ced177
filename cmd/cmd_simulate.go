// cmd_simulate.go - Simulate Command
// Hauptfunktionen: SimulateHandler, renderInfo, renderErrors
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mnsim/xbarsim/ml"
	"github.com/mnsim/xbarsim/xbar"
)

// SimulateHandler - Kalibriert eine Schicht und vergleicht die Verfahren
func SimulateHandler(cmd *cobra.Command, args []string) error {
	s, err := calibratedSession(cmd)
	if err != nil {
		return err
	}

	x := s.randomInput()
	if _, err := s.layer.StructureForward(x); err != nil {
		return err
	}

	outputs := make(map[xbar.FixMethod]*ml.Tensor)
	for _, m := range []xbar.FixMethod{xbar.Tradition, xbar.FixTrain, xbar.SingleFixTest} {
		if outputs[m], err = s.evaluate(x, m); err != nil {
			return fmt.Errorf("%s: %w", m, err)
		}
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(s.layer.Info().Map())
	}

	w := cmd.OutOrStdout()
	renderInfo(w, s.layer.Info())
	fmt.Fprintln(w)
	return renderErrors(w, outputs, s.layer.Scales().Output.Scale)
}

// renderInfo - Gibt die LayerInfo in Schluessel-Reihenfolge aus
func renderInfo(w io.Writer, info *xbar.LayerInfo) {
	var data [][]string
	for pair := info.Map().Oldest(); pair != nil; pair = pair.Next() {
		data = append(data, []string{pair.Key, fmt.Sprint(pair.Value)})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"KEY", "VALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// renderErrors - Vergleicht SINGLE_FIX_TEST mit den Referenzverfahren
func renderErrors(w io.Writer, outputs map[xbar.FixMethod]*ml.Tensor, step float64) error {
	serial := outputs[xbar.SingleFixTest]

	var data [][]string
	for _, m := range []xbar.FixMethod{xbar.Tradition, xbar.FixTrain} {
		ref := outputs[m]
		diff, err := ref.MaxAbsDiff(serial)
		if err != nil {
			return err
		}

		rel := "-"
		if peak := ref.MaxAbs(); peak > 0 {
			rel = strconv.FormatFloat(diff/peak, 'e', 3, 64)
		}
		steps := "-"
		if step > 0 {
			steps = strconv.FormatFloat(diff/step, 'f', 2, 64)
		}
		data = append(data, []string{m.String(), strconv.FormatFloat(diff, 'e', 3, 64), rel, steps})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"REFERENCE", "MAX ABS ERROR", "RELATIVE", "OUTPUT STEPS"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
	return nil
}
