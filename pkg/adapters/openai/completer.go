// Package openai adapts OpenAI-compatible chat completion endpoints to the
// engine's completer ports, including function calling and streaming. Any
// backend that speaks the OpenAI wire protocol works through BaseURL.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

const defaultModel = "gpt-4o-mini"

// Completer implements ports.ChatCompleter and ports.StreamCompleter over
// the OpenAI chat completion API.
type Completer struct {
	client *goopenai.Client
	model  string
}

// Option configures a Completer.
type Option func(*Completer)

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(c *Completer) {
		c.model = model
	}
}

// New creates a completer. baseURL may be empty for the public API.
func New(apiKey, baseURL string, opts ...Option) *Completer {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c := &Completer{
		client: goopenai.NewClientWithConfig(cfg),
		model:  defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete performs one blocking chat completion. A tool-call response wins
// over text when the model produces both.
func (c *Completer) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.wireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		args := make(map[string]any)
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("malformed tool arguments from model: %w", err)
			}
		}
		return &ports.CompletionResponse{
			ToolCall: &domain.ToolCall{Name: call.Function.Name, Arguments: args},
		}, nil
	}

	return &ports.CompletionResponse{Text: msg.Content}, nil
}

// CompleteStream streams a text completion. Tools are not offered on the
// streaming path.
func (c *Completer) CompleteStream(ctx context.Context, req ports.CompletionRequest) (<-chan ports.CompletionChunk, error) {
	wire := c.wireRequest(req)
	wire.Tools = nil
	wire.Stream = true

	stream, err := c.client.CreateChatCompletionStream(ctx, wire)
	if err != nil {
		return nil, fmt.Errorf("openai stream failed: %w", err)
	}

	out := make(chan ports.CompletionChunk, 8)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				out <- ports.CompletionChunk{Err: fmt.Errorf("openai stream read failed: %w", err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				select {
				case out <- ports.CompletionChunk{Text: delta}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Completer) wireRequest(req ports.CompletionRequest) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	return goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    wireMessages(req.Messages),
		Tools:       wireTools(req.Tools),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

// wireMessages flattens the domain history to the OpenAI message shape.
// Tool-call and tool-result turns need matching synthetic call ids; they are
// generated pairwise in order.
func wireMessages(msgs []domain.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(msgs))
	seq := 0
	lastID := ""

	for _, m := range msgs {
		switch {
		case m.ToolCall != nil:
			seq++
			lastID = fmt.Sprintf("call_%d", seq)
			args, err := json.Marshal(m.ToolCall.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			out = append(out, goopenai.ChatCompletionMessage{
				Role: goopenai.ChatMessageRoleAssistant,
				ToolCalls: []goopenai.ToolCall{{
					ID:   lastID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      m.ToolCall.Name,
						Arguments: string(args),
					},
				}},
			})
		case m.ToolResult != nil:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				ToolCallID: lastID,
				Content:    m.WireContent(),
			})
		default:
			out = append(out, goopenai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}
	return out
}

func wireTools(tools []ports.ToolDescriptor) []goopenai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}
