package detection

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// Supported providers
const (
	ProviderGoogleAI  = "googleai"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMistral   = "mistral"
)

// Providers lists every supported provider name
var Providers = []string{ProviderGoogleAI, ProviderOpenAI, ProviderAnthropic, ProviderOllama, ProviderMistral}

// DefaultModels is used when no model is configured
var DefaultModels = map[string]string{
	ProviderGoogleAI:  "gemini-2.5-flash",
	ProviderOpenAI:    "gpt-4o",
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderOllama:    "llava",
	ProviderMistral:   "pixtral-12b-latest",
}

// Config selects and authenticates the vision model
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// Client sends page images to a vision LLM. It implements redaction.Detector.
type Client struct {
	provider    string
	model       string
	llm         llms.Model
	maxTokens   int
	temperature float64
	configErr   error
	logger      *logrus.Entry
}

// New creates a detection client. A missing credential is not an error here:
// the client is still returned and every Detect call reports ErrMissingAPIKey.
func New(ctx context.Context, cfg Config, logger *logrus.Logger) (*Client, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGoogleAI
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[provider]
	}

	log := logger.WithFields(logrus.Fields{
		"provider": provider,
		"model":    cfg.Model,
	})

	c := &Client{
		provider:    provider,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      log,
	}

	if provider != ProviderOllama && cfg.APIKey == "" {
		if _, ok := DefaultModels[provider]; !ok {
			return nil, fmt.Errorf("unsupported detection provider: %s", cfg.Provider)
		}
		log.Warn("No API key configured, detection runs will fail until one is provided")
		c.configErr = redaction.ErrMissingAPIKey
		return c, nil
	}

	llm, err := newModel(ctx, provider, cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating vision LLM client: %w", err)
	}
	c.llm = llm

	log.Info("Detection client initialized")
	return c, nil
}

// NewWithModel wraps an existing model, mainly for tests and custom backends
func NewWithModel(provider string, llm llms.Model, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		provider: provider,
		llm:      llm,
		logger:   logger.WithField("provider", provider),
	}
}

func newModel(ctx context.Context, provider string, cfg Config) (llms.Model, error) {
	switch provider {
	case ProviderGoogleAI:
		return googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case ProviderAnthropic:
		return anthropic.New(
			anthropic.WithModel(cfg.Model),
			anthropic.WithToken(cfg.APIKey),
		)
	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	case ProviderMistral:
		return mistral.New(
			mistral.WithModel(cfg.Model),
			mistral.WithAPIKey(cfg.APIKey),
		)
	default:
		return nil, fmt.Errorf("unsupported detection provider: %s", provider)
	}
}

// Provider returns the configured provider name
func (c *Client) Provider() string {
	return c.provider
}

// Detect sends one page image and decodes the detections
func (c *Client) Detect(ctx context.Context, page redaction.PageRaster, settings redaction.Settings) ([]redaction.Detection, error) {
	if c.configErr != nil {
		return nil, c.configErr
	}
	if len(page.ImageData) == 0 {
		return nil, redaction.NewError(redaction.KindUnknown, "detect", fmt.Errorf("page %d has no image data", page.PageNumber))
	}

	log := c.logger.WithField("page", page.PageNumber)

	var imagePart llms.ContentPart
	if c.provider == ProviderOpenAI || c.provider == ProviderMistral {
		imagePart = llms.ImageURLPart("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(page.ImageData))
	} else {
		imagePart = llms.BinaryPart("image/jpeg", page.ImageData)
	}

	callOpts := []llms.CallOption{llms.WithJSONMode(), llms.WithTemperature(c.temperature)}
	if c.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(c.maxTokens))
	}

	log.Debug("Sending page to vision model")
	resp, err := c.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{imagePart, llms.TextPart(BuildPrompt(settings))},
		},
	}, callOpts...)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, malformed(fmt.Errorf("model returned no choices"))
	}

	detections, err := Decode(resp.Choices[0].Content)
	if err != nil {
		log.WithError(err).Debug("Unable to decode model response")
		return nil, err
	}
	log.WithField("detections", len(detections)).Debug("Page detections decoded")
	return detections, nil
}

var (
	rateLimitHints = []string{"429", "rate limit", "ratelimit", "too many requests", "quota", "resource exhausted", "resource_exhausted", "overloaded"}
	configHints    = []string{"401", "403", "api key", "api_key", "apikey", "unauthorized", "unauthenticated", "permission denied", "permission_denied", "invalid x-api-key", "authentication"}
)

// classify maps provider errors onto the redaction error kinds
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range rateLimitHints {
		if strings.Contains(msg, hint) {
			return redaction.NewError(redaction.KindRateLimit, "detect", err)
		}
	}
	for _, hint := range configHints {
		if strings.Contains(msg, hint) {
			return redaction.NewError(redaction.KindDetectionConfig, "detect", err)
		}
	}
	return redaction.NewError(redaction.KindUnknown, "detect", err)
}
