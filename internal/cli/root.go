// Package cli implements the boostd command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "boostd",
	Short: "Device frequency boost and page pool daemon",
	Long: `boostd reacts to input activity and display power transitions by
boosting device minimum frequencies, maintains two-tier page pools with
a shrink protocol for memory pressure, and clamps frequencies to save
power while the screen is off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
