package endpoints

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/internal/extract"
	"github.com/pagelens/pagelens/internal/respond"
	"github.com/pagelens/pagelens/internal/svcctx"
)

// maxUploadMemory bounds in-memory multipart parsing.
const maxUploadMemory = 500 << 20 // 500MB

// ExtractEndpoint handles POST /api/extract: upload a PDF, run the
// full pipeline, download the packaged markdown.
type ExtractEndpoint struct{}

var _ api.Endpoint = (*ExtractEndpoint)(nil)

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/extract", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", header.Filename))
		return
	}

	doc, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	req := extract.Request{
		Document: doc,
		Filename: header.Filename,
		Provider: r.FormValue("provider"),
		Query:    r.FormValue("query"),
	}
	switch r.FormValue("validation") {
	case "true":
		on := true
		req.EnableValidation = &on
	case "false":
		off := false
		req.EnableValidation = &off
	}

	svc := svcctx.ExtractFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction service not initialized")
		return
	}

	result, err := svc.Run(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	sections := make([]respond.Section, 0, len(result.Sections))
	for i, sec := range result.Sections {
		sections = append(sections, respond.Section{
			Filename: fmt.Sprintf("%02d_%s.md", i+1, sectionFilename(sec.Title)),
			Content:  sec.Markdown,
		})
	}

	payload, err := respond.Download(sections, respond.BaseName(header.Filename), providerSuffix(result.Provider))
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to package result: %v", err))
		return
	}

	if result.Report != nil {
		w.Header().Set("X-Validation-Status", string(result.Report.Status()))
		w.Header().Set("X-Validation-Run-Id", result.Report.RunID)
	}
	if err := respond.Write(w, payload); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Error("failed to write download", "error", err, "filename", payload.Filename)
		}
	}
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		provider   string
		query      string
		validation string
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Extract and validate a PDF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			fields := map[string]string{}
			if provider != "" {
				fields["provider"] = provider
			}
			if query != "" {
				fields["query"] = query
			}
			if validation != "" {
				fields["validation"] = validation
			}

			client := api.NewClient(getServerURL())
			dl, err := client.PostFile(cmd.Context(), "/api/extract", "file", filepath.Base(args[0]), doc, fields)
			if err != nil {
				return err
			}

			name := dl.Filename
			if name == "" {
				name = "extracted.md"
			}
			outPath := filepath.Join(outDir, name)
			if err := os.WriteFile(outPath, dl.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Printf("Wrote %s (%d bytes)\n", outPath, len(dl.Data))
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "OCR provider name (default: first enabled)")
	cmd.Flags().StringVar(&query, "query", "", "Section query; enables sampled validation of clean pages")
	cmd.Flags().StringVar(&validation, "validation", "", "Override validation: true or false")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	return cmd
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sectionFilename makes an outline title safe for an archive entry.
func sectionFilename(title string) string {
	name := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(title), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "section"
	}
	return name
}

// providerSuffix tags non-default workflows in the download filename.
func providerSuffix(provider string) string {
	switch provider {
	case "", "mistral", "mistral-ocr":
		return ""
	default:
		return "_" + sectionFilename(provider)
	}
}
