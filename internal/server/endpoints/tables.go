package endpoints

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/internal/respond"
	"github.com/pagelens/pagelens/internal/svcctx"
	"github.com/pagelens/pagelens/internal/tables"
)

// MergeTablesRequest is the body for POST /api/tables/merge.
type MergeTablesRequest struct {
	Fragments []tables.Fragment `json:"fragments"`
}

// MergedTableView is the JSON projection of one merged table.
type MergedTableView struct {
	Headers   []string `json:"headers"`
	StartPage int      `json:"start_page"`
	EndPage   int      `json:"end_page"`
	RowCount  int      `json:"row_count"`
	Markdown  string   `json:"markdown"`
}

// MergeTablesResponse lists the merged tables and a combined rendering.
type MergeTablesResponse struct {
	Tables   []MergedTableView `json:"tables"`
	Markdown string            `json:"markdown"`
}

// MergeTablesEndpoint handles POST /api/tables/merge: reassemble
// provider-reported fragments into logical cross-page tables.
type MergeTablesEndpoint struct{}

var _ api.Endpoint = (*MergeTablesEndpoint)(nil)

func (e *MergeTablesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tables/merge", e.handler
}

func (e *MergeTablesEndpoint) RequiresInit() bool { return true }

func (e *MergeTablesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req MergeTablesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Fragments) == 0 {
		writeError(w, http.StatusBadRequest, "no fragments to merge")
		return
	}

	merger := mergerFromConfig(r)
	writeJSON(w, http.StatusOK, mergeResponse(merger.Merge(req.Fragments)))
}

func (e *MergeTablesEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "merge-tables <fragments.json>",
		Short: "Merge table fragments across page boundaries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var req MergeTablesRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			client := api.NewClient(getServerURL())
			var resp MergeTablesResponse
			if err := client.Post(cmd.Context(), "/api/tables/merge", req, &resp); err != nil {
				return err
			}
			fmt.Println(resp.Markdown)
			return nil
		},
	}
}

// ExtractTablesEndpoint handles POST /api/tables/extract: upload a
// PDF, run the structured table source over it, and download the
// merged tables as markdown.
type ExtractTablesEndpoint struct{}

var _ api.Endpoint = (*ExtractTablesEndpoint)(nil)

func (e *ExtractTablesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/tables/extract", e.handler
}

func (e *ExtractTablesEndpoint) RequiresInit() bool { return true }

func (e *ExtractTablesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	doc, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	registry := svcctx.RegistryFrom(r.Context())
	cm := svcctx.ConfigManagerFrom(r.Context())
	if registry == nil || cm == nil {
		writeError(w, http.StatusServiceUnavailable, "table source not initialized")
		return
	}

	sourceName := r.FormValue("source")
	if sourceName == "" {
		sourceName = cm.Get().Tables.Source
	}
	source, err := registry.GetFragmentSource(sourceName)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("table source unavailable: %v", err))
		return
	}

	fragments, err := source.AnalyzeTables(r.Context(), doc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("table analysis failed: %v", err))
		return
	}

	merger := mergerFromConfig(r)
	merged := merger.Merge(fragments)

	payload := respond.SingleFile(mergeResponse(merged).Markdown, respond.BaseName(header.Filename), "_tables")
	if err := respond.Write(w, payload); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Error("failed to write download", "error", err, "filename", payload.Filename)
		}
	}
}

func (e *ExtractTablesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		source string
		outDir string
	)

	cmd := &cobra.Command{
		Use:   "extract-tables <file.pdf>",
		Short: "Extract and merge tables from a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			fields := map[string]string{}
			if source != "" {
				fields["source"] = source
			}

			client := api.NewClient(getServerURL())
			dl, err := client.PostFile(cmd.Context(), "/api/tables/extract", "file", filepath.Base(args[0]), doc, fields)
			if err != nil {
				return err
			}

			name := dl.Filename
			if name == "" {
				name = "tables.md"
			}
			outPath := filepath.Join(outDir, name)
			if err := os.WriteFile(outPath, dl.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", outPath, len(dl.Data))
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Table source name (default: configured source)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	return cmd
}

// mergerFromConfig builds a Merger from the live table settings.
func mergerFromConfig(r *http.Request) *tables.Merger {
	cfg := tables.MergerConfig{Logger: svcctx.LoggerFrom(r.Context())}
	if cm := svcctx.ConfigManagerFrom(r.Context()); cm != nil {
		t := cm.Get().Tables
		cfg.UseContinuity = t.UseContinuity
		cfg.BalanceTolerance = t.BalanceTolerance
	}
	return tables.NewMerger(cfg)
}

func mergeResponse(merged []*tables.MergedTable) MergeTablesResponse {
	resp := MergeTablesResponse{Tables: make([]MergedTableView, 0, len(merged))}
	var parts []string
	for _, m := range merged {
		md := m.Markdown()
		resp.Tables = append(resp.Tables, MergedTableView{
			Headers:   m.Headers,
			StartPage: m.StartPage,
			EndPage:   m.EndPage,
			RowCount:  m.RowCount(),
			Markdown:  md,
		})
		parts = append(parts, md)
	}
	resp.Markdown = strings.Join(parts, "\n\n")
	return resp
}
