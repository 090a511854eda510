// Package optimizer rewrites prompt text through an OpenAI-compatible chat
// completion endpoint. The default base URL and model target Zhipu GLM,
// which speaks the OpenAI wire protocol.
//
// The call is an opaque text transform: a system prompt chosen by the
// optimization type, the user's text as the user message, and the first
// choice's content as the result.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sakif/prompt-library/internal/apperror"
)

const (
	DefaultBaseURL     = "https://open.bigmodel.cn/api/paas/v4/"
	DefaultModel       = "glm-4.5-flash"
	DefaultTemperature = 0.6
	DefaultAttempts    = 3
)

// Type selects the rewriting goal.
type Type string

const (
	Structure     Type = "structure"
	Clarity       Type = "clarity"
	Effectiveness Type = "effectiveness"
)

// Language selects the language of the system prompt.
type Language string

const (
	Chinese Language = "zh"
	English Language = "en"
)

// ParseType maps a request value to a Type; "" is Structure.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case "", Structure:
		return Structure, nil
	case Clarity, Effectiveness:
		return Type(s), nil
	}
	return "", apperror.ValidationFailed("optimizationType", "must be one of structure, clarity, effectiveness")
}

// ParseLanguage maps a request value to a Language; "" is Chinese.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case "", Chinese:
		return Chinese, nil
	case English:
		return English, nil
	}
	return "", apperror.ValidationFailed("language", "must be zh or en")
}

// Config holds the provider settings. An empty APIKey leaves the optimizer
// unconfigured; every call then fails with apperror.ErrUnavailable.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Attempts    uint
	RetryDelay  time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client // optional, tests
}

// Client calls the chat completion endpoint.
type Client struct {
	client      openai.Client
	configured  bool
	model       string
	temperature float64
	attempts    uint
	retryDelay  time.Duration
	logger      *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	// Retries are handled here with retry-go, so the SDK's own are off.
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &Client{
		client:      client,
		configured:  cfg.APIKey != "",
		model:       cfg.Model,
		temperature: cfg.Temperature,
		attempts:    cfg.Attempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
	}
}

// Configured reports whether an API key was supplied.
func (c *Client) Configured() bool {
	return c.configured
}

// Optimize returns the rewritten text. Provider failures, including an
// unconfigured client, are apperror.ErrUnavailable.
func (c *Client) Optimize(ctx context.Context, content string, typ Type, lang Language) (string, error) {
	if !c.configured {
		return "", apperror.Unavailable("AI optimization is not configured", nil)
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt(typ, lang)),
			openai.UserMessage(userMessage(content, lang)),
		},
		Temperature: openai.Float(c.temperature),
	}

	var out string
	err := retry.Do(
		func() error {
			resp, err := c.client.Chat.Completions.New(ctx, params)
			if err != nil {
				if !retryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return retry.Unrecoverable(errors.New("optimizer: response has no content"))
			}
			out = strings.TrimSpace(resp.Choices[0].Message.Content)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("optimizer call failed, retrying",
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return "", apperror.Unavailable("AI service is temporarily unavailable", fmt.Errorf("optimizer: %w", err))
	}
	return out, nil
}

// retryable is true for transport failures, 429 and 5xx. Other API errors
// (bad key, bad request) will not improve on a second attempt.
func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func userMessage(content string, lang Language) string {
	if lang == English {
		return "Optimize the following prompt:\n\n" + content
	}
	return "请优化以下提示词：\n\n" + content
}
