package config

import (
	"github.com/pagelens/pagelens/internal/problems"
)

// Config holds pagelens configuration.
type Config struct {
	OCRProviders map[string]OCRProviderCfg `mapstructure:"ocr_providers" yaml:"ocr_providers" json:"ocr_providers"`
	Extractors   map[string]ExtractorCfg   `mapstructure:"extractors" yaml:"extractors" json:"extractors"`
	TableSources map[string]TableSourceCfg `mapstructure:"table_sources" yaml:"table_sources" json:"table_sources"`
	Validation   ValidationCfg             `mapstructure:"validation" yaml:"validation" json:"validation"`
	Tables       TablesCfg                 `mapstructure:"tables" yaml:"tables" json:"tables"`
	Split        SplitCfg                  `mapstructure:"split" yaml:"split" json:"split"`
	Server       ServerCfg                 `mapstructure:"server" yaml:"server" json:"server"`
}

// OCRProviderCfg configures a primary OCR provider.
type OCRProviderCfg struct {
	Type      string  `mapstructure:"type" yaml:"type" json:"type"`                   // "mistral-ocr"
	APIKey    string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`          // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"` // Requests per second
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// ExtractorCfg configures a secondary-opinion page extractor.
type ExtractorCfg struct {
	Type      string  `mapstructure:"type" yaml:"type" json:"type"`                   // "openai"
	Model     string  `mapstructure:"model" yaml:"model" json:"model"`                // Model name
	APIKey    string  `mapstructure:"api_key" yaml:"api_key" json:"api_key"`          // API key (supports ${ENV_VAR} syntax)
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"` // Requests per second
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// TableSourceCfg configures a structured table-extraction provider.
type TableSourceCfg struct {
	Type     string `mapstructure:"type" yaml:"type" json:"type"` // "azure-di"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // API key (supports ${ENV_VAR} syntax)
	ModelID  string `mapstructure:"model_id" yaml:"model_id" json:"model_id"`
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// ValidationCfg configures the cross-validation engine.
type ValidationCfg struct {
	Enabled            bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Extractor          string   `mapstructure:"extractor" yaml:"extractor" json:"extractor"`                                  // Secondary extractor name
	SimilarityMethod   string   `mapstructure:"similarity_method" yaml:"similarity_method" json:"similarity_method"`          // "number_frequency" or "levenshtein"
	Threshold          float64  `mapstructure:"threshold" yaml:"threshold" json:"threshold"`                                  // Minimum passing similarity
	SampleRate         int      `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`                            // Validate every Nth clean page
	SkipSampleIfClean  bool     `mapstructure:"skip_sample_if_clean" yaml:"skip_sample_if_clean" json:"skip_sample_if_clean"` // Never sample clean pages
	EnabledProblems    []string `mapstructure:"enabled_problems" yaml:"enabled_problems" json:"enabled_problems"`             // Problem names, or ["all"]
	MaxConcurrency     int      `mapstructure:"max_concurrency" yaml:"max_concurrency" json:"max_concurrency"`                // Secondary-extraction fan-out
	PageTimeoutSeconds int      `mapstructure:"page_timeout_seconds" yaml:"page_timeout_seconds" json:"page_timeout_seconds"` // Per-page extraction cap
}

// TablesCfg configures cross-page table merging.
type TablesCfg struct {
	Source           string  `mapstructure:"source" yaml:"source" json:"source"` // Table-fragment source name
	UseContinuity    bool    `mapstructure:"use_continuity" yaml:"use_continuity" json:"use_continuity"`
	BalanceTolerance float64 `mapstructure:"balance_tolerance" yaml:"balance_tolerance" json:"balance_tolerance"`
}

// SplitCfg configures PDF chunking and page rendering.
type SplitCfg struct {
	MaxPagesPerChunk int `mapstructure:"max_pages_per_chunk" yaml:"max_pages_per_chunk" json:"max_pages_per_chunk"`
	RenderDPI        int `mapstructure:"render_dpi" yaml:"render_dpi" json:"render_dpi"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port int    `mapstructure:"port" yaml:"port" json:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OCRProviders: map[string]OCRProviderCfg{
			"mistral": {
				Type:      "mistral-ocr",
				APIKey:    "${MISTRAL_API_KEY}",
				RateLimit: 6.0,
				Enabled:   true,
			},
		},
		Extractors: map[string]ExtractorCfg{
			"openai": {
				Type:      "openai",
				Model:     "gpt-4o",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 2.0,
				Enabled:   true,
			},
		},
		TableSources: map[string]TableSourceCfg{
			"azure-di": {
				Type:     "azure-di",
				Endpoint: "${AZURE_DI_ENDPOINT}",
				APIKey:   "${AZURE_DI_API_KEY}",
				Enabled:  false,
			},
		},
		Validation: ValidationCfg{
			Enabled:            true,
			Extractor:          "openai",
			SimilarityMethod:   "number_frequency",
			Threshold:          0.95,
			SampleRate:         5,
			SkipSampleIfClean:  true,
			EnabledProblems:    []string{"all"},
			MaxConcurrency:     8,
			PageTimeoutSeconds: 120,
		},
		Tables: TablesCfg{
			Source:           "azure-di",
			UseContinuity:    true,
			BalanceTolerance: 0.01,
		},
		Split: SplitCfg{
			MaxPagesPerChunk: 15,
			RenderDPI:        150,
		},
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8385,
		},
	}
}

// ValidationPatterns resolves the configured problem names to patterns.
// The single entry "all" (or an empty list) enables every registered
// pattern; unknown names are dropped.
func (c *Config) ValidationPatterns() []problems.Pattern {
	names := c.Validation.EnabledProblems
	if len(names) == 0 || (len(names) == 1 && names[0] == "all") {
		return problems.All()
	}
	var out []problems.Pattern
	for _, name := range names {
		p := problems.Pattern(name)
		if problems.Valid(p) {
			out = append(out, p)
		}
	}
	return out
}

// GetExtractor returns an extractor config by name.
func (c *Config) GetExtractor(name string) (ExtractorCfg, bool) {
	cfg, ok := c.Extractors[name]
	return cfg, ok
}

// GetOCRProvider returns an OCR provider config by name.
func (c *Config) GetOCRProvider(name string) (OCRProviderCfg, bool) {
	cfg, ok := c.OCRProviders[name]
	return cfg, ok
}

// GetTableSource returns a table source config by name.
func (c *Config) GetTableSource(name string) (TableSourceCfg, bool) {
	cfg, ok := c.TableSources[name]
	return cfg, ok
}

// EnabledOCRProviders returns all enabled OCR providers.
func (c *Config) EnabledOCRProviders() map[string]OCRProviderCfg {
	result := make(map[string]OCRProviderCfg)
	for name, cfg := range c.OCRProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
