// Package enrich fills the AI summary and impact columns of stored
// records using an OpenAI-compatible chat completion endpoint.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"presswatch/internal/config"

	"github.com/go-resty/resty/v2"
)

// Chat errors.
var (
	ErrMissingEndpoint = errors.New("enrich endpoint not configured")
	ErrMissingAPIKey   = errors.New("enrich API key not set")
	ErrEmptyCompletion = errors.New("chat endpoint returned no content")
)

const defaultMaxTokens = 800

// Completer answers a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatClient calls a chat completions endpoint.
type ChatClient struct {
	client   *resty.Client
	endpoint string
	model    string
}

// NewChatClient creates a client from the enrich configuration. The API key
// is read from the environment variable the configuration names.
func NewChatClient(cfg config.EnrichConfig) (*ChatClient, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.APIKeyEnv)
	}

	timeout := 60 * time.Second
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetAuthToken(key).
		SetHeader("Content-Type", "application/json")

	return &ChatClient{client: client, endpoint: cfg.Endpoint, model: cfg.Model}, nil
}

// Complete sends prompt as a single user message and returns the trimmed reply.
func (c *ChatClient) Complete(ctx context.Context, prompt string) (string, error) {
	var out chatResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:     c.model,
			Messages:  []chatMessage{{Role: "user", Content: prompt}},
			MaxTokens: defaultMaxTokens,
		}).
		SetResult(&out).
		ForceContentType("application/json").
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("chat request failed: status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	if len(out.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyCompletion
	}

	return reply, nil
}
