package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/api"
	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/svcctx"
)

// ConfigResponse is the redacted configuration view.
type ConfigResponse struct {
	OCRProviders map[string]string    `json:"ocr_providers"` // name -> type
	Extractors   map[string]string    `json:"extractors"`    // name -> type
	TableSources map[string]string    `json:"table_sources"` // name -> type
	Validation   config.ValidationCfg `json:"validation"`
	Tables       config.TablesCfg     `json:"tables"`
	Split        config.SplitCfg      `json:"split"`
}

// ConfigEndpoint handles GET /api/config. API keys never leave the
// server; providers are reported as name to type only.
type ConfigEndpoint struct{}

var _ api.Endpoint = (*ConfigEndpoint)(nil)

func (e *ConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/config", e.handler
}

func (e *ConfigEndpoint) RequiresInit() bool { return false }

func (e *ConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cm := svcctx.ConfigManagerFrom(r.Context())
	if cm == nil {
		writeError(w, http.StatusServiceUnavailable, "configuration not initialized")
		return
	}
	cfg := cm.Get()

	resp := ConfigResponse{
		OCRProviders: map[string]string{},
		Extractors:   map[string]string{},
		TableSources: map[string]string{},
		Validation:   cfg.Validation,
		Tables:       cfg.Tables,
		Split:        cfg.Split,
	}
	for name, p := range cfg.OCRProviders {
		resp.OCRProviders[name] = p.Type
	}
	for name, p := range cfg.Extractors {
		resp.Extractors[name] = p.Type
	}
	for name, p := range cfg.TableSources {
		resp.TableSources[name] = p.Type
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the server's effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ConfigResponse
			if err := client.Get(cmd.Context(), "/api/config", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
