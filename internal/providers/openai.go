package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIVisionName         = "openai"
	openAIVisionDefaultModel = "gpt-4o"

	defaultExtractionSystemPrompt = "You are an expert document content extractor. " +
		"Extract all text from the provided page image and convert it to markdown. " +
		"Preserve tables using markdown table syntax. Do not summarize, do not skip content, " +
		"and do not add commentary."

	defaultExtractionUserPrompt = "Extract all text content from this page (page %d of the document) " +
		"and return it as markdown. Include every table with proper markdown syntax."
)

// OpenAIVisionConfig holds configuration for the OpenAI vision extractor.
type OpenAIVisionConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // Optional (tests)
	MaxTokens  int
	Timeout    time.Duration
	RateLimit  float64 // Requests per second
	MaxRetries int
	RetryDelay time.Duration

	// Renderer converts a page of the document into a PNG for the
	// vision model. Required.
	Renderer PageRenderer

	HTTPClient *http.Client // Optional (tests)
}

// OpenAIVisionClient implements PageExtractor using the official OpenAI
// SDK with rendered page images.
type OpenAIVisionClient struct {
	model      string
	maxTokens  int
	maxRetries int
	retryDelay time.Duration
	renderer   PageRenderer
	limiter    *RateLimiter
	client     openai.Client
}

// NewOpenAIVisionClient creates a new OpenAI vision extractor.
func NewOpenAIVisionClient(cfg OpenAIVisionConfig) (*OpenAIVisionClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai vision: API key is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("openai vision: page renderer is required")
	}
	if cfg.Model == "" {
		cfg.Model = openAIVisionDefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2.0
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIVisionClient{
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		renderer:   cfg.Renderer,
		limiter:    NewRateLimiter(cfg.RateLimit),
		client:     openai.NewClient(opts...),
	}, nil
}

// Name returns the extractor identifier.
func (c *OpenAIVisionClient) Name() string {
	return OpenAIVisionName
}

// ExtractPage renders the page and asks the vision model for its
// markdown content. Safe for concurrent use.
func (c *OpenAIVisionClient) ExtractPage(ctx context.Context, doc []byte, pageNumber int, prompts *PromptPair) (string, error) {
	image, err := c.renderer(ctx, doc, pageNumber)
	if err != nil {
		return "", fmt.Errorf("failed to render page %d: %w", pageNumber, err)
	}

	systemPrompt := defaultExtractionSystemPrompt
	userPrompt := fmt.Sprintf(defaultExtractionUserPrompt, pageNumber+1)
	if prompts != nil {
		if prompts.System != "" {
			systemPrompt = prompts.System
		}
		if prompts.User != "" {
			userPrompt = prompts.User
		}
	}

	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxTokens: openai.Int(int64(c.maxTokens)),
	}

	var content string
	err = retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.client.Chat.Completions.New(ctx, params)
			if err != nil {
				return err
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("openai returned no choices")
			}
			content = strings.TrimSpace(resp.Choices[0].Message.Content)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("openai extraction failed for page %d: %w", pageNumber, err)
	}
	return content, nil
}
