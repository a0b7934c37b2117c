// Package genai wraps the OpenAI chat completion API behind a small
// interface the conversation flow consumes, with tool calling support.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model override is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// defaultTemperature keeps replies consistent across turns.
const defaultTemperature = 0.3

// ClientInterface defines the generative operations the flow depends on.
type ClientInterface interface {
	// GenerateWithMessages produces a completion for a prepared message
	// sequence.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// GenerateWithTools produces a completion that may request tool calls.
	GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error)
}

// ToolCallResponse carries the assistant content and any tool calls the model
// requested for the current round.
type ToolCallResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID       string
	Function FunctionCall
}

// FunctionCall names the tool and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string
	Arguments json.RawMessage
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client calls the OpenAI chat completion API.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a GenAI client based on provided options, falling back to
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	slog.Debug("GenAI.NewClient: creating client", "APIKey_set", cfg.APIKey != "", "model", cfg.Model)
	if cfg.APIKey == "" {
		slog.Error("GenAI.NewClient: API key not set")
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}, nil
}

// GenerateWithMessages sends the prepared messages and returns the assistant
// reply text.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	slog.Debug("GenAI.GenerateWithMessages: sending completion request", "messageCount", len(messages), "model", c.model)
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Temperature: openai.Float(defaultTemperature),
	})
	if err != nil {
		slog.Error("GenAI.GenerateWithMessages: completion request failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI.GenerateWithMessages: completion returned no choices")
		return "", fmt.Errorf("chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content
	slog.Debug("GenAI.GenerateWithMessages: completion received", "contentLength", len(content))
	return content, nil
}

// GenerateWithTools sends the prepared messages with tool definitions and
// returns both the assistant content and any requested tool calls.
func (c *Client) GenerateWithTools(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, tools []openai.ChatCompletionToolParam) (*ToolCallResponse, error) {
	slog.Debug("GenAI.GenerateWithTools: sending completion request", "messageCount", len(messages), "toolCount", len(tools), "model", c.model)
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: openai.Float(defaultTemperature),
	})
	if err != nil {
		slog.Error("GenAI.GenerateWithTools: completion request failed", "error", err)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("GenAI.GenerateWithTools: completion returned no choices")
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	out := &ToolCallResponse{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID: tc.ID,
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			},
		})
	}
	slog.Debug("GenAI.GenerateWithTools: completion received", "contentLength", len(out.Content), "toolCalls", len(out.ToolCalls))
	return out, nil
}
