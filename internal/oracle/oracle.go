package oracle

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// Role tags one message in a completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged message in a completion request.
type ChatMessage struct {
	Role    Role
	Content string
}

// Request is a single text-generation request.
type Request struct {
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
}

// Oracle is the external text-generation service. Implementations may fail
// or time out; callers are expected to absorb errors locally.
type Oracle interface {
	Complete(ctx context.Context, req Request) (string, error)
}

const defaultModel = openai.GPT4oMini

// Client is the production Oracle over the OpenAI chat completions API.
type Client struct {
	client *openai.Client
	model  string
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets a custom model
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// NewClient creates a new OpenAI-backed oracle client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		client: openai.NewClient(apiKey),
		model:  defaultModel,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends one chat completion request and returns the generated text.
// An empty completion is reported as an error so callers fall back uniformly.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		log.Printf("[Oracle] Completion failed err=%v", err)
		return "", fmt.Errorf("oracle completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Printf("[Oracle] Completion returned no content")
		return "", fmt.Errorf("oracle completion: empty response")
	}

	return resp.Choices[0].Message.Content, nil
}
