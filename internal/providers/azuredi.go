package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pagelens/pagelens/internal/tables"
)

const (
	AzureDIName       = "azure-di"
	azureDIAPIVersion = "2024-11-30"
	azureDIModelID    = "prebuilt-layout"

	azureDIPollInterval = 2 * time.Second
	azureDIPollTimeout  = 5 * time.Minute
)

// azureAnalyzeSchema pins the shape this client depends on. Provider
// payloads are validated before decoding so a contract drift fails
// loudly instead of producing silently empty tables.
const azureAnalyzeSchema = `{
	"type": "object",
	"required": ["status"],
	"properties": {
		"status": {"type": "string"},
		"analyzeResult": {
			"type": "object",
			"properties": {
				"tables": {
					"type": "array",
					"items": {
						"type": "object",
						"required": ["rowCount", "columnCount", "cells"],
						"properties": {
							"rowCount": {"type": "integer", "minimum": 0},
							"columnCount": {"type": "integer", "minimum": 0},
							"cells": {
								"type": "array",
								"items": {
									"type": "object",
									"required": ["rowIndex", "columnIndex", "content"],
									"properties": {
										"rowIndex": {"type": "integer", "minimum": 0},
										"columnIndex": {"type": "integer", "minimum": 0},
										"content": {"type": "string"},
										"kind": {"type": "string"}
									}
								}
							},
							"boundingRegions": {
								"type": "array",
								"items": {
									"type": "object",
									"properties": {
										"pageNumber": {"type": "integer", "minimum": 1}
									}
								}
							}
						}
					}
				}
			}
		}
	}
}`

var azureSchema = jsonschema.MustCompileString("azure-analyze.json", azureAnalyzeSchema)

// AzureDIConfig holds configuration for the Azure Document Intelligence
// client.
type AzureDIConfig struct {
	Endpoint   string
	APIKey     string
	ModelID    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client // Optional (tests)

	// PollInterval overrides the default poll cadence (tests).
	PollInterval time.Duration
}

// AzureDIClient implements FragmentSource against the Azure Document
// Intelligence layout model.
type AzureDIClient struct {
	endpoint     string
	apiKey       string
	modelID      string
	maxRetries   int
	retryDelay   time.Duration
	pollInterval time.Duration
	client       *http.Client
}

// NewAzureDIClient creates a new Azure DI client.
func NewAzureDIClient(cfg AzureDIConfig) (*AzureDIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure-di: endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("azure-di: API key is required")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = azureDIModelID
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = azureDIPollInterval
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &AzureDIClient{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		modelID:      cfg.ModelID,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		pollInterval: cfg.PollInterval,
		client:       client,
	}, nil
}

// Name returns the source identifier.
func (c *AzureDIClient) Name() string {
	return AzureDIName
}

type azureCell struct {
	Kind        string `json:"kind,omitempty"`
	RowIndex    int    `json:"rowIndex"`
	ColumnIndex int    `json:"columnIndex"`
	RowSpan     int    `json:"rowSpan,omitempty"`
	ColumnSpan  int    `json:"columnSpan,omitempty"`
	Content     string `json:"content"`
}

type azureBoundingRegion struct {
	PageNumber int `json:"pageNumber"`
}

type azureTable struct {
	RowCount        int                   `json:"rowCount"`
	ColumnCount     int                   `json:"columnCount"`
	Cells           []azureCell           `json:"cells"`
	BoundingRegions []azureBoundingRegion `json:"boundingRegions,omitempty"`
}

type azureAnalyzeResult struct {
	Status        string `json:"status"`
	AnalyzeResult *struct {
		Tables []azureTable `json:"tables"`
	} `json:"analyzeResult"`
}

// AnalyzeTables submits the document and polls the operation until the
// layout analysis completes, returning the reported table fragments.
func (c *AzureDIClient) AnalyzeTables(ctx context.Context, doc []byte) ([]tables.Fragment, error) {
	opURL, err := c.submit(ctx, doc)
	if err != nil {
		return nil, err
	}

	result, err := c.poll(ctx, opURL)
	if err != nil {
		return nil, err
	}

	if result.AnalyzeResult == nil {
		return nil, nil
	}

	fragments := make([]tables.Fragment, 0, len(result.AnalyzeResult.Tables))
	for _, t := range result.AnalyzeResult.Tables {
		if len(t.BoundingRegions) == 0 {
			// No page association means no way to group the table.
			continue
		}
		frag := tables.Fragment{
			RowCount:   t.RowCount,
			ColCount:   t.ColumnCount,
			PageNumber: t.BoundingRegions[0].PageNumber,
		}
		for _, cell := range t.Cells {
			frag.Cells = append(frag.Cells, tables.Cell{
				Row:      cell.RowIndex,
				Col:      cell.ColumnIndex,
				RowSpan:  max(cell.RowSpan, 1),
				ColSpan:  max(cell.ColumnSpan, 1),
				Content:  cell.Content,
				IsHeader: cell.Kind == "columnHeader",
			})
		}
		fragments = append(fragments, frag)
	}
	return fragments, nil
}

// submit starts the analyze operation and returns its polling URL.
func (c *AzureDIClient) submit(ctx context.Context, doc []byte) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/%s:analyze?api-version=%s",
		c.endpoint, c.modelID, azureDIAPIVersion)

	body, err := json.Marshal(map[string]string{
		"base64Source": base64.StdEncoding.EncodeToString(doc),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	var opURL string
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode != http.StatusAccepted {
				err := fmt.Errorf("azure-di analyze returned %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
					return retry.Unrecoverable(err)
				}
				return err
			}

			opURL = resp.Header.Get("Operation-Location")
			if opURL == "" {
				return retry.Unrecoverable(fmt.Errorf("azure-di analyze returned no Operation-Location"))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("azure-di submit failed: %w", err)
	}
	return opURL, nil
}

// poll fetches the operation result until it succeeds or times out.
func (c *AzureDIClient) poll(ctx context.Context, opURL string) (*azureAnalyzeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, azureDIPollTimeout)
	defer cancel()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("azure-di poll failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("azure-di poll returned %d: %s", resp.StatusCode, truncate(string(body), 200))
		}

		result, err := decodeAnalyzeResult(body)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case "succeeded":
			return result, nil
		case "failed":
			return nil, fmt.Errorf("azure-di analysis failed")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("azure-di poll timed out: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

// decodeAnalyzeResult validates the payload against the pinned schema
// before decoding.
func decodeAnalyzeResult(body []byte) (*azureAnalyzeResult, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("azure-di returned invalid JSON: %w", err)
	}
	if err := azureSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("azure-di payload failed schema validation: %w", err)
	}

	var result azureAnalyzeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode azure-di result: %w", err)
	}
	return &result, nil
}
