package endpoints

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/internal/providers"
	"github.com/pagelens/pagelens/internal/svcctx"
	"github.com/pagelens/pagelens/internal/validation"
)

// ValidateRequest is the body for POST /api/validate.
type ValidateRequest struct {
	// Document is the base64-encoded source PDF. Optional; without it
	// secondary extraction cannot run and failures are recorded
	// per page.
	Document string `json:"document,omitempty"`

	// Pages is the extracted text to validate.
	Pages []providers.PageText `json:"pages"`

	// Query enables sampled validation of clean pages when non-empty.
	Query string `json:"query,omitempty"`
}

// ValidateResponse wraps the validation report with its status.
type ValidateResponse struct {
	Status validation.Status  `json:"status"`
	Report *validation.Report `json:"report"`
}

// ValidateEndpoint handles POST /api/validate: cross-validate already
// extracted pages without re-running OCR.
type ValidateEndpoint struct{}

var _ api.Endpoint = (*ValidateEndpoint)(nil)

func (e *ValidateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/validate", e.handler
}

func (e *ValidateEndpoint) RequiresInit() bool { return true }

func (e *ValidateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Pages) == 0 {
		writeError(w, http.StatusBadRequest, "no pages to validate")
		return
	}

	var doc []byte
	if req.Document != "" {
		var err error
		doc, err = base64.StdEncoding.DecodeString(req.Document)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid base64 document: %v", err))
			return
		}
	}

	svc := svcctx.ExtractFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction service not initialized")
		return
	}

	report := svc.ValidatePages(r.Context(), doc, req.Pages, req.Query)
	writeJSON(w, http.StatusOK, ValidateResponse{
		Status: report.Status(),
		Report: report,
	})
}

func (e *ValidateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "validate <pages.json>",
		Short: "Cross-validate extracted pages",
		Long: `Validate posts a JSON file of extracted pages to the server:

  {"pages": [{"index": 0, "markdown": "..."}], "document": "<base64 PDF>"}

and prints the validation report.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			var req ValidateRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}
			if query != "" {
				req.Query = query
			}

			client := api.NewClient(getServerURL())
			var resp ValidateResponse
			if err := client.Post(cmd.Context(), "/api/validate", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "Section query; enables sampled validation of clean pages")
	return cmd
}
