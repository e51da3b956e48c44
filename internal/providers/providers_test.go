package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestMistralOCRClient_ProcessDocument(t *testing.T) {
	t.Run("successful OCR", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ocr" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Method != "POST" {
				t.Errorf("unexpected method: %s", r.Method)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
				t.Errorf("unexpected authorization: %s", auth)
			}

			var req mistralOCRRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("failed to decode request: %v", err)
			}
			if req.Document.Type != "document_url" {
				t.Errorf("unexpected document type: %s", req.Document.Type)
			}
			if !strings.HasPrefix(req.Document.DocumentURL, "data:application/pdf;base64,") {
				t.Errorf("document URL is not a base64 PDF data URL")
			}

			resp := mistralOCRResponse{
				Model: "mistral-ocr-latest",
				Pages: []mistralOCRPage{
					{Index: 0, Markdown: "# Page 1"},
					{Index: 1, Markdown: "# Page 2"},
				},
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(resp)
		}))
		defer server.Close()

		client := NewMistralOCRClient(MistralOCRConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})

		result, err := client.ProcessDocument(context.Background(), []byte("fake pdf data"))
		if err != nil {
			t.Fatalf("ProcessDocument() error = %v", err)
		}
		if len(result.Pages) != 2 {
			t.Fatalf("expected 2 pages, got %d", len(result.Pages))
		}
		if result.Pages[1].Markdown != "# Page 2" {
			t.Errorf("unexpected page text: %q", result.Pages[1].Markdown)
		}
		wantCost := 2 * MistralOCRCostPerPage
		if result.CostUSD != wantCost {
			t.Errorf("expected cost %f, got %f", wantCost, result.CostUSD)
		}
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewMistralOCRClient(MistralOCRConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		})

		_, err := client.ProcessDocument(context.Background(), []byte("pdf"))
		if err == nil {
			t.Fatal("expected error for 400 response")
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("expected 1 attempt for client error, got %d", got)
		}
	})

	t.Run("server error is retried", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				http.Error(w, "upstream error", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(mistralOCRResponse{
				Model: "mistral-ocr-latest",
				Pages: []mistralOCRPage{{Index: 0, Markdown: "recovered"}},
			})
		}))
		defer server.Close()

		client := NewMistralOCRClient(MistralOCRConfig{
			APIKey:     "test-key",
			BaseURL:    server.URL,
			MaxRetries: 3,
			RetryDelay: time.Millisecond,
		})

		result, err := client.ProcessDocument(context.Background(), []byte("pdf"))
		if err != nil {
			t.Fatalf("ProcessDocument() error = %v", err)
		}
		if got := atomic.LoadInt32(&calls); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
		if result.Pages[0].Markdown != "recovered" {
			t.Errorf("unexpected text after retry: %q", result.Pages[0].Markdown)
		}
	})
}

func TestAzureDIClient_AnalyzeTables(t *testing.T) {
	t.Run("poll until succeeded", func(t *testing.T) {
		var polls int32
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("POST /documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("Ocp-Apim-Subscription-Key"); key != "test-key" {
				t.Errorf("unexpected subscription key: %s", key)
			}
			w.Header().Set("Operation-Location", server.URL+"/op/123")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("GET /op/123", func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&polls, 1) < 2 {
				json.NewEncoder(w).Encode(map[string]any{"status": "running"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "succeeded",
				"analyzeResult": map[string]any{
					"tables": []map[string]any{
						{
							"rowCount":    2,
							"columnCount": 2,
							"cells": []map[string]any{
								{"kind": "columnHeader", "rowIndex": 0, "columnIndex": 0, "content": "Date"},
								{"kind": "columnHeader", "rowIndex": 0, "columnIndex": 1, "content": "Balance"},
								{"rowIndex": 1, "columnIndex": 0, "content": "01/02"},
								{"rowIndex": 1, "columnIndex": 1, "content": "1,500.00"},
							},
							"boundingRegions": []map[string]any{{"pageNumber": 3}},
						},
					},
				},
			})
		})

		client, err := NewAzureDIClient(AzureDIConfig{
			Endpoint:     server.URL,
			APIKey:       "test-key",
			PollInterval: time.Millisecond,
		})
		if err != nil {
			t.Fatalf("NewAzureDIClient() error = %v", err)
		}

		fragments, err := client.AnalyzeTables(context.Background(), []byte("pdf"))
		if err != nil {
			t.Fatalf("AnalyzeTables() error = %v", err)
		}
		if atomic.LoadInt32(&polls) < 2 {
			t.Errorf("expected at least 2 polls, got %d", polls)
		}
		if len(fragments) != 1 {
			t.Fatalf("expected 1 fragment, got %d", len(fragments))
		}
		frag := fragments[0]
		if frag.PageNumber != 3 {
			t.Errorf("expected page 3, got %d", frag.PageNumber)
		}
		if frag.RowCount != 2 || frag.ColCount != 2 {
			t.Errorf("unexpected shape: %dx%d", frag.RowCount, frag.ColCount)
		}
		headers := frag.Headers()
		if len(headers) != 2 || headers[0] != "Date" || headers[1] != "Balance" {
			t.Errorf("unexpected headers: %v", headers)
		}
	})

	t.Run("rejects payload failing schema validation", func(t *testing.T) {
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("POST /documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Operation-Location", server.URL+"/op/bad")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("GET /op/bad", func(w http.ResponseWriter, r *http.Request) {
			// rowCount has the wrong type.
			w.Write([]byte(`{"status":"succeeded","analyzeResult":{"tables":[{"rowCount":"two","columnCount":2,"cells":[]}]}}`))
		})

		client, err := NewAzureDIClient(AzureDIConfig{
			Endpoint:     server.URL,
			APIKey:       "test-key",
			PollInterval: time.Millisecond,
		})
		if err != nil {
			t.Fatalf("NewAzureDIClient() error = %v", err)
		}

		_, err = client.AnalyzeTables(context.Background(), []byte("pdf"))
		if err == nil {
			t.Fatal("expected schema validation error")
		}
		if !strings.Contains(err.Error(), "schema validation") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("failed analysis", func(t *testing.T) {
		mux := http.NewServeMux()
		server := httptest.NewServer(mux)
		defer server.Close()

		mux.HandleFunc("POST /documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Operation-Location", server.URL+"/op/fail")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("GET /op/fail", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"failed"}`))
		})

		client, err := NewAzureDIClient(AzureDIConfig{
			Endpoint:     server.URL,
			APIKey:       "test-key",
			PollInterval: time.Millisecond,
		})
		if err != nil {
			t.Fatalf("NewAzureDIClient() error = %v", err)
		}

		if _, err := client.AnalyzeTables(context.Background(), []byte("pdf")); err == nil {
			t.Fatal("expected error for failed analysis")
		}
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("tracks consumed tokens", func(t *testing.T) {
		limiter := NewRateLimiter(1000)
		for i := 0; i < 5; i++ {
			if err := limiter.Wait(context.Background()); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if got := limiter.TotalConsumed(); got != 5 {
			t.Errorf("expected 5 consumed, got %d", got)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		limiter := NewRateLimiter(0.001)
		limiter.Wait(context.Background()) // Drain the initial token.

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := limiter.Wait(ctx); err == nil {
			t.Error("expected error from cancelled context")
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Run("register and get", func(t *testing.T) {
		r := NewRegistry()
		ext := &MockExtractor{Fallback: "text"}
		r.RegisterExtractor("mock", ext)

		got, err := r.GetExtractor("mock")
		if err != nil {
			t.Fatalf("GetExtractor() error = %v", err)
		}
		if got != ext {
			t.Error("returned a different extractor")
		}

		if _, err := r.GetExtractor("missing"); err == nil {
			t.Error("expected error for missing extractor")
		}
	})

	t.Run("reload from config", func(t *testing.T) {
		renderer := func(ctx context.Context, doc []byte, page int) ([]byte, error) {
			return []byte("png"), nil
		}
		cfg := RegistryConfig{
			Renderer: renderer,
			Extractors: map[string]ExtractorConfig{
				"openai": {Type: "openai", APIKey: "key", Enabled: true},
			},
			OCRProviders: map[string]OCRProviderConfig{
				"mistral-ocr": {Type: "mistral-ocr", APIKey: "key", Enabled: true},
				"disabled":    {Type: "mistral-ocr", APIKey: "key", Enabled: false},
			},
			FragmentSources: map[string]FragmentSourceConfig{
				"azure-di": {Type: "azure-di", Endpoint: "https://example.com", APIKey: "key", Enabled: true},
			},
		}

		r := NewRegistryFromConfig(cfg)
		if !r.HasExtractor("openai") {
			t.Error("expected openai extractor to be registered")
		}
		if _, err := r.GetOCR("mistral-ocr"); err != nil {
			t.Errorf("GetOCR() error = %v", err)
		}
		if _, err := r.GetOCR("disabled"); err == nil {
			t.Error("disabled provider should not be registered")
		}
		if _, err := r.GetFragmentSource("azure-di"); err != nil {
			t.Errorf("GetFragmentSource() error = %v", err)
		}

		// Removing a provider from config unregisters it on reload.
		delete(cfg.OCRProviders, "mistral-ocr")
		r.Reload(cfg)
		if _, err := r.GetOCR("mistral-ocr"); err == nil {
			t.Error("expected mistral-ocr to be unregistered after reload")
		}
		if !r.HasExtractor("openai") {
			t.Error("openai extractor should survive reload")
		}
	})

	t.Run("missing API key is skipped", func(t *testing.T) {
		r := NewRegistryFromConfig(RegistryConfig{
			OCRProviders: map[string]OCRProviderConfig{
				"mistral-ocr": {Type: "mistral-ocr", Enabled: true},
			},
		})
		if len(r.ListOCR()) != 0 {
			t.Errorf("expected no providers, got %v", r.ListOCR())
		}
	})
}
