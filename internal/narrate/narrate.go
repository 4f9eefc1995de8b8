package narrate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"cveroast/internal/report"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.7
	DefaultTimeout     = 2 * time.Minute

	// SystemPersona is the system turn sent ahead of every prompt.
	SystemPersona = "You are a sarcastic security assistant."
)

var errNoChoices = errors.New("narration service returned no choices")

type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	// Temperature must be positive: a zero value is omitted from the
	// request and the server default applies.
	Temperature float32
	Timeout     time.Duration
}

// Client turns prompts into narratives through an OpenAI-compatible chat
// completion endpoint.
type Client struct {
	api    *openai.Client
	opts   Options
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	return &Client{
		api:    openai.NewClientWithConfig(cfg),
		opts:   opts,
		logger: logger.Named("narrate"),
	}
}

// Narrate makes one chat completion call. It never fails: any error or an
// empty answer yields report.Fallback.
func (c *Client) Narrate(ctx context.Context, prompt string) string {
	text, err := c.complete(ctx, prompt)
	if err != nil {
		c.logger.Error("narration failed, using fallback", zap.Error(err))
		return report.Fallback
	}
	return text
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPersona},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errNoChoices
	}

	c.logger.Info("narration received",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)))
	return text, nil
}
