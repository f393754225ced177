// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mnsim/xbarsim/envconfig"
	"github.com/mnsim/xbarsim/logutil"
	"github.com/mnsim/xbarsim/version"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// versionHandler - Gibt die Version aus
func versionHandler(cmd *cobra.Command, _ []string) {
	fmt.Fprintf(cmd.OutOrStdout(), "xbarsim version is %s\n", version.Version)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "xbarsim",
		Short:         "Bit-serial crossbar quantization simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	simulateCmd := newSimulateCmd()
	exportCmd := newExportCmd()
	planCmd := newPlanCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["XBAR_DEBUG"], envVars["XBAR_SEED"]}

	for _, cmd := range []*cobra.Command{
		simulateCmd,
		exportCmd,
	} {
		switch cmd {
		case exportCmd:
			appendEnvDocs(cmd, append(envs, envVars["XBAR_NUM_PARALLEL"], envVars["XBAR_PLANE_ENCODING"], envVars["XBAR_NOPROGRESS"]))
		default:
			appendEnvDocs(cmd, append(envs, envVars["XBAR_NUM_PARALLEL"], envVars["XBAR_NOPROGRESS"]))
		}
	}

	rootCmd.AddCommand(
		simulateCmd,
		exportCmd,
		planCmd,
	)

	return rootCmd
}
