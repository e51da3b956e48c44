package main

import (
	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pagelens",
	Short: "Document extraction with OCR cross-validation and table merging",
	Long: `Pagelens extracts markdown from PDF documents and validates the
output before anyone has to trust it.

The pipeline includes:
  - Outline-aware PDF chunking for provider page limits
  - Primary OCR extraction with per-provider rate limiting
  - Problem detection and secondary-opinion cross-validation
  - Cross-page table merging with numeric continuity checks`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pagelens/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
