// Package llm wraps the text-generation capability behind a single narrow
// interface. Everything the model returns is untrusted raw text; callers own
// parsing and validation. A deterministic stub can replace the SDK client in
// tests without touching any other component.
package llm

import (
	"context"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// GenerateRequest carries one generation call. Temperature and MaxTokens are
// explicit so callers can demand stricter determinism for repair calls than
// for initial generation.
type GenerateRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Client is the untrusted generator capability.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Config holds client settings. BaseURL points the SDK at a local
// OpenAI-compatible gateway when the model is served off-box.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerSecond float64
}

type sdkClient struct {
	client  sdk.Client
	model   string
	limiter *rate.Limiter
}

// NewClient creates a rate-limited client backed by the SDK.
func NewClient(cfg Config) Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &sdkClient{
		client:  sdk.NewClient(opts...),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *sdkClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "llm: rate limit wait")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: sdk.Float(req.Temperature),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "llm: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
