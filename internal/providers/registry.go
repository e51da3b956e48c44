package providers

import (
	"fmt"
	"log/slog"
	"sync"
)

// Registry holds references to page extractors, OCR providers, and
// table fragment sources. It supports config-driven instantiation,
// hot-reload, and thread-safe access.
type Registry struct {
	mu              sync.RWMutex
	extractors      map[string]PageExtractor
	ocrProviders    map[string]OCRProvider
	fragmentSources map[string]FragmentSource

	// Configs the current providers were built from, for reload diffing.
	extractorCfgs map[string]ExtractorConfig
	ocrCfgs       map[string]OCRProviderConfig
	fragmentCfgs  map[string]FragmentSourceConfig

	logger *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors:      make(map[string]PageExtractor),
		ocrProviders:    make(map[string]OCRProvider),
		fragmentSources: make(map[string]FragmentSource),
		extractorCfgs:   make(map[string]ExtractorConfig),
		ocrCfgs:         make(map[string]OCRProviderConfig),
		fragmentCfgs:    make(map[string]FragmentSourceConfig),
		logger:          slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterExtractor registers a page extractor by name.
func (r *Registry) RegisterExtractor(name string, ext PageExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[name] = ext
	if r.logger != nil {
		r.logger.Info("registered extractor", "name", name)
	}
}

// RegisterOCR registers an OCR provider by name.
func (r *Registry) RegisterOCR(name string, provider OCRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocrProviders[name] = provider
	if r.logger != nil {
		r.logger.Info("registered OCR provider", "name", name)
	}
}

// RegisterFragmentSource registers a table fragment source by name.
func (r *Registry) RegisterFragmentSource(name string, src FragmentSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragmentSources[name] = src
	if r.logger != nil {
		r.logger.Info("registered fragment source", "name", name)
	}
}

// GetExtractor returns a page extractor by name.
func (r *Registry) GetExtractor(name string) (PageExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("extractor not found: %s", name)
	}
	return ext, nil
}

// GetOCR returns an OCR provider by name.
func (r *Registry) GetOCR(name string) (OCRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ocrProviders[name]
	if !ok {
		return nil, fmt.Errorf("OCR provider not found: %s", name)
	}
	return provider, nil
}

// GetFragmentSource returns a fragment source by name.
func (r *Registry) GetFragmentSource(name string) (FragmentSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.fragmentSources[name]
	if !ok {
		return nil, fmt.Errorf("fragment source not found: %s", name)
	}
	return src, nil
}

// ListExtractors returns all registered extractor names.
func (r *Registry) ListExtractors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	return names
}

// ListOCR returns all registered OCR provider names.
func (r *Registry) ListOCR() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ocrProviders))
	for name := range r.ocrProviders {
		names = append(names, name)
	}
	return names
}

// ListFragmentSources returns all registered fragment source names.
func (r *Registry) ListFragmentSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fragmentSources))
	for name := range r.fragmentSources {
		names = append(names, name)
	}
	return names
}

// HasExtractor checks if a page extractor is registered.
func (r *Registry) HasExtractor(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[name]
	return ok
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	// Extractors maps extractor names to their config
	Extractors map[string]ExtractorConfig

	// OCRProviders maps provider names to their config
	OCRProviders map[string]OCRProviderConfig

	// FragmentSources maps fragment source names to their config
	FragmentSources map[string]FragmentSourceConfig

	// Renderer is shared by extractors that work from page images.
	Renderer PageRenderer
}

// ExtractorConfig matches config.ExtractorCfg with resolved API key.
type ExtractorConfig struct {
	Type      string  // "openai"
	Model     string  // Model name
	APIKey    string  // Resolved API key
	RateLimit float64 // Requests per second
	Enabled   bool
}

// OCRProviderConfig matches config.OCRProviderCfg with resolved API key.
type OCRProviderConfig struct {
	Type      string  // "mistral-ocr"
	APIKey    string  // Resolved API key
	RateLimit float64 // Requests per second
	Enabled   bool
}

// FragmentSourceConfig matches config.TableSourceCfg with resolved API key.
type FragmentSourceConfig struct {
	Type     string // "azure-di"
	Endpoint string
	APIKey   string // Resolved API key
	ModelID  string
	Enabled  bool
}

// NewRegistryFromConfig creates a registry with providers based on
// configuration. Only enabled providers with valid API keys will be
// registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration. Providers
// that are no longer configured are unregistered; providers with
// changed settings are recreated.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wantExtractor := make(map[string]bool)
	wantOCR := make(map[string]bool)
	wantFragment := make(map[string]bool)

	for name, provCfg := range cfg.Extractors {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		wantExtractor[name] = true

		if prev, ok := r.extractorCfgs[name]; ok && prev == provCfg {
			continue
		}
		ext := createExtractor(provCfg, cfg.Renderer)
		if ext == nil {
			continue
		}
		_, existed := r.extractors[name]
		r.extractors[name] = ext
		r.extractorCfgs[name] = provCfg
		r.logRegistered("extractor", name, provCfg.Type, existed)
	}

	for name, provCfg := range cfg.OCRProviders {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		wantOCR[name] = true

		if prev, ok := r.ocrCfgs[name]; ok && prev == provCfg {
			continue
		}
		provider := createOCRProvider(provCfg)
		if provider == nil {
			continue
		}
		_, existed := r.ocrProviders[name]
		r.ocrProviders[name] = provider
		r.ocrCfgs[name] = provCfg
		r.logRegistered("OCR provider", name, provCfg.Type, existed)
	}

	for name, provCfg := range cfg.FragmentSources {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		wantFragment[name] = true

		if prev, ok := r.fragmentCfgs[name]; ok && prev == provCfg {
			continue
		}
		src := createFragmentSource(provCfg)
		if src == nil {
			continue
		}
		_, existed := r.fragmentSources[name]
		r.fragmentSources[name] = src
		r.fragmentCfgs[name] = provCfg
		r.logRegistered("fragment source", name, provCfg.Type, existed)
	}

	for name := range r.extractors {
		if !wantExtractor[name] {
			delete(r.extractors, name)
			delete(r.extractorCfgs, name)
			if r.logger != nil {
				r.logger.Info("unregistered extractor", "name", name)
			}
		}
	}
	for name := range r.ocrProviders {
		if !wantOCR[name] {
			delete(r.ocrProviders, name)
			delete(r.ocrCfgs, name)
			if r.logger != nil {
				r.logger.Info("unregistered OCR provider", "name", name)
			}
		}
	}
	for name := range r.fragmentSources {
		if !wantFragment[name] {
			delete(r.fragmentSources, name)
			delete(r.fragmentCfgs, name)
			if r.logger != nil {
				r.logger.Info("unregistered fragment source", "name", name)
			}
		}
	}
}

func (r *Registry) logRegistered(kind, name, typ string, existed bool) {
	if r.logger == nil {
		return
	}
	verb := "registered"
	if existed {
		verb = "updated"
	}
	r.logger.Info(verb+" "+kind, "name", name, "type", typ)
}

// createExtractor creates a page extractor based on provider type.
func createExtractor(cfg ExtractorConfig, renderer PageRenderer) PageExtractor {
	switch cfg.Type {
	case "openai":
		if renderer == nil {
			return nil
		}
		ext, err := NewOpenAIVisionClient(OpenAIVisionConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
			Renderer:  renderer,
		})
		if err != nil {
			return nil
		}
		return ext
	default:
		return nil
	}
}

// createOCRProvider creates an OCR provider based on provider type.
func createOCRProvider(cfg OCRProviderConfig) OCRProvider {
	switch cfg.Type {
	case "mistral-ocr":
		return NewMistralOCRClient(MistralOCRConfig{
			APIKey:    cfg.APIKey,
			RateLimit: cfg.RateLimit,
		})
	default:
		return nil
	}
}

// createFragmentSource creates a fragment source based on provider type.
func createFragmentSource(cfg FragmentSourceConfig) FragmentSource {
	switch cfg.Type {
	case "azure-di":
		src, err := NewAzureDIClient(AzureDIConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
			ModelID:  cfg.ModelID,
		})
		if err != nil {
			return nil
		}
		return src
	default:
		return nil
	}
}
