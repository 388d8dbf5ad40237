package agent

import (
	"context"
	"net/http"
	"strings"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
	"github.com/hugo-lorenzo-mato/rolechain/internal/logging"
)

const (
	defaultAnthropicBaseURL   = "https://api.anthropic.com/v1"
	defaultAnthropicVersion   = "2023-06-01"
	defaultAnthropicMaxTokens = 2048
	anthropicMessagesPath     = "/messages"
)

// AnthropicClient speaks the Anthropic Messages API.
type AnthropicClient struct {
	cfg        ProviderConfig
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewAnthropicClient creates an Anthropic provider.
func NewAnthropicClient(cfg ProviderConfig, logger *logging.Logger) (Provider, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicClient{
		cfg:        cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return c.cfg.Name
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete sends one Messages API request and joins the text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	maxTokens := c.cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	headers := map[string]string{"anthropic-version": defaultAnthropicVersion}
	if c.cfg.APIKey != "" {
		headers["x-api-key"] = c.cfg.APIKey
	}

	url := c.baseURL + anthropicMessagesPath
	c.logger.Debug("anthropic request", "url", url, "model", model)

	var resp anthropicResponse
	err := postJSON(ctx, c.httpClient, url, headers, anthropicRequest{
		Model:       model,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
	}, &resp)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", core.ErrExecution(core.CodeAgentFailed, "empty message").WithCause(errEmptyResponse)
	}

	c.logger.Debug("anthropic response",
		"model", model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	return b.String(), nil
}
