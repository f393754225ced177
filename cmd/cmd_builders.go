// cmd_builders.go - Command-Builder Funktionen
// Hauptfunktionen: newSimulateCmd, newExportCmd, newPlanCmd, addLayerFlags
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mnsim/xbarsim/envconfig"
)

// addLayerFlags - Registriert die Hardware-, Schicht- und Quantisierungs-Flags
func addLayerFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "fc", "Layer type (conv or fc)")
	cmd.Flags().Int("in", 64, "Input features (fc) or input channels (conv)")
	cmd.Flags().Int("out", 16, "Output features (fc) or output channels (conv)")
	cmd.Flags().Int("kernel", 3, "Kernel size of a conv layer")

	cmd.Flags().Int("xbar-size", 128, "Columns of one crossbar array")
	cmd.Flags().Int("cell-bit", 2, "Weight bits stored per cell")
	cmd.Flags().Int("input-bit", 2, "Activation bits applied per cycle")
	cmd.Flags().Int("adc-bit", 10, "ADC output width")

	cmd.Flags().Int("weight-bit", 9, "Quantized weight width")
	cmd.Flags().Int("activation-bit", 9, "Quantized activation width")
	cmd.Flags().Int("point-shift", -2, "Extra fractional bits before ADC rounding")
}

// addRunFlags - Registriert die Flags fuer Kalibrierung und Eingaben
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("batch", 8, "Batch size of generated inputs")
	cmd.Flags().Int("size", 8, "Spatial input size of a conv layer")
	cmd.Flags().Int("calib", 20, "FIX_TRAIN calibration passes")
	cmd.Flags().Uint64("seed", 0, "Seed for weights and inputs (default $XBAR_SEED)")
	cmd.Flags().Int("parallel", 0, "Partitions computed in parallel (default $XBAR_NUM_PARALLEL)")
}

// newSimulateCmd - Erstellt den simulate Command
func newSimulateCmd() *cobra.Command {
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Calibrate a layer and compare the bit-serial crossbar output",
		Args:  cobra.NoArgs,
		RunE:  SimulateHandler,
	}

	addLayerFlags(simulateCmd)
	addRunFlags(simulateCmd)
	simulateCmd.Flags().Bool("json", false, "Print the layer info as JSON")

	return simulateCmd
}

// newExportCmd - Erstellt den export Command
func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export DIR",
		Short: "Calibrate a layer and write its weight bit planes",
		Args:  cobra.ExactArgs(1),
		RunE:  ExportHandler,
	}

	addLayerFlags(exportCmd)
	addRunFlags(exportCmd)
	exportCmd.Flags().String("encoding", envconfig.PlaneEncoding(), "Plane element format (f32, f16, bf16)")
	exportCmd.Flags().Bool("verify", false, "Read the planes back and compare the crossbar output")

	return exportCmd
}

// newPlanCmd - Erstellt den plan Command
func newPlanCmd() *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the partition plan of a layer",
		Args:  cobra.NoArgs,
		RunE:  PlanHandler,
	}

	addLayerFlags(planCmd)

	return planCmd
}
