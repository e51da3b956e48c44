package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/extract"
	"github.com/pagelens/pagelens/internal/providers"
	"github.com/pagelens/pagelens/internal/split"
	"github.com/pagelens/pagelens/internal/tables"
)

var (
	validateProvider string
	validateQuery    string
)

// validateCmd runs the pipeline locally, without a server. Provider
// API keys come from the config file or environment.
var validateCmd = &cobra.Command{
	Use:   "validate <file.pdf>",
	Short: "Extract a PDF locally and print the validation report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelWarn,
		}))

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}

		renderer := split.NewRenderer(cm.Get().Split.RenderDPI)
		rc := cm.Get().ToProviderRegistryConfig()
		rc.Renderer = renderer.RenderPage
		registry := providers.NewRegistryFromConfig(rc)

		svc := extract.NewService(registry, cm, renderer.RenderPage, logger)

		on := true
		result, err := svc.Run(cmd.Context(), extract.Request{
			Document:         doc,
			Filename:         args[0],
			Provider:         validateProvider,
			Query:            validateQuery,
			EnableValidation: &on,
		})
		if err != nil {
			return err
		}

		if result.Report == nil {
			fmt.Fprintln(os.Stderr, "validation did not run: no secondary extractor configured")
			return nil
		}
		return api.Output(map[string]any{
			"status": result.Report.Status(),
			"report": result.Report,
		})
	},
}

// mergeTablesCmd merges a fragments JSON file locally.
var mergeTablesCmd = &cobra.Command{
	Use:   "merge-tables <fragments.json>",
	Short: "Merge table fragments locally and print markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		var req struct {
			Fragments []tables.Fragment `json:"fragments"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("failed to parse %s: %w", args[0], err)
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		t := cm.Get().Tables

		merger := tables.NewMerger(tables.MergerConfig{
			UseContinuity:    t.UseContinuity,
			BalanceTolerance: t.BalanceTolerance,
		})
		for _, m := range merger.Merge(req.Fragments) {
			fmt.Println(m.Markdown())
			fmt.Println()
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateProvider, "provider", "", "OCR provider name (default: first enabled)")
	validateCmd.Flags().StringVar(&validateQuery, "query", "", "Section query; enables sampled validation of clean pages")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(mergeTablesCmd)
}
