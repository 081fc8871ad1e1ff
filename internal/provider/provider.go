// internal/provider/provider.go
// Package provider wraps an OpenAI-compatible chat-completions endpoint.
// The upstream model is treated as an opaque oracle: messages and sampling
// parameters go in, text comes out.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// apiKeyEnv names the environment variable holding the API key. Local
// OpenAI-compatible servers usually accept any value, so an unset key is
// not an error here.
const apiKeyEnv = "MODEPROBE_API_KEY"

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything a completion call (and its cache fingerprint)
// depends on.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
}

// Completion is the text plus the raw upstream payload, kept for caching
// and offline auditing.
type Completion struct {
	Text string
	Raw  json.RawMessage
}

// Client is the blocking chat-completion call the experiment drivers use.
// Implementations must return a distinguishable error when the upstream
// response carries no usable text.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	Close() error
}

// OpenAIClient talks to any OpenAI-compatible endpoint via go-openai.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds a client against baseURL. The API key is read
// from the environment; "unused" is substituted for keyless local servers.
func NewOpenAIClient(baseURL string) *OpenAIClient {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		apiKey = "unused"
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg)}
}

// Complete sends one chat-completion request and extracts the assistant
// text. An empty choice list is surfaced as an error rather than an empty
// completion, so callers can tell a broken payload from a silent model.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Completion, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
		TopP:        float32(req.TopP),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("chat completion: response carried no choices")
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return Completion{}, fmt.Errorf("encode raw response: %w", err)
	}

	return Completion{Text: resp.Choices[0].Message.Content, Raw: raw}, nil
}

// Close releases client resources. go-openai holds no persistent
// connections beyond the default transport, so this is a no-op.
func (c *OpenAIClient) Close() error { return nil }
