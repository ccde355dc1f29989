package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smallbiznis-reputation/pkg/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("textgen: api key not configured")

// Completer sends a single-turn prompt to a chat-completions endpoint and
// returns the first choice's content.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatClient struct {
	http  *resty.Client
	model string
}

// NewCompleter returns a chat-completions client for the configured
// provider, or a completer that always fails when no key is set.
func NewCompleter(cfg *config.Config) Completer {
	if cfg.AI.APIKey == "" {
		zap.L().Warn("[TextGen] AI api key not configured, fallbacks will be used")
		return unconfigured{}
	}

	timeout := cfg.AI.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.AI.BaseURL, "/")).
		SetAuthToken(cfg.AI.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &chatClient{http: client, model: cfg.AI.Model}
}

func (c *chatClient) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:       c.model,
			Messages:    []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat completion status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return content, nil
}

type unconfigured struct{}

func (unconfigured) Complete(context.Context, string, int, float64) (string, error) {
	return "", ErrNotConfigured
}
