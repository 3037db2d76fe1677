package runtime

import (
	"context"
	"sync"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// scriptedCompleter replays a fixed sequence of responses; the final entry
// repeats once the script is exhausted.
type scriptedCompleter struct {
	mu        sync.Mutex
	script    []ports.CompletionResponse
	streaming []string
	calls     int
	requests  []ports.CompletionRequest
}

func (c *scriptedCompleter) Complete(_ context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	i := c.calls
	c.calls++
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	resp := c.script[i]
	return &resp, nil
}

func (c *scriptedCompleter) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *scriptedCompleter) request(i int) ports.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[i]
}

// streamingCompleter adds chunked streaming on top of the script.
type streamingCompleter struct {
	scriptedCompleter
}

func (c *streamingCompleter) CompleteStream(_ context.Context, req ports.CompletionRequest) (<-chan ports.CompletionChunk, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.calls++
	chunks := c.streaming
	c.mu.Unlock()

	out := make(chan ports.CompletionChunk, len(chunks))
	for _, text := range chunks {
		out <- ports.CompletionChunk{Text: text}
	}
	close(out)
	return out, nil
}

func textResponse(text string) ports.CompletionResponse {
	return ports.CompletionResponse{Text: text}
}

func toolResponse(name string, args map[string]any) ports.CompletionResponse {
	return ports.CompletionResponse{ToolCall: &domain.ToolCall{Name: name, Arguments: args}}
}

// fakeRegistry exposes a single tool with a canned result or error.
type fakeRegistry struct {
	mu     sync.Mutex
	name   string
	result map[string]any
	err    error
	calls  int
}

func (f *fakeRegistry) IsEnabled(name string) bool { return name == f.name }

func (f *fakeRegistry) Call(_ context.Context, name string, _ map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRegistry) Tools() []ports.ToolDescriptor {
	return []ports.ToolDescriptor{{Name: f.name, Description: "test tool"}}
}

func (f *fakeRegistry) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testAgent(id string) domain.AgentConfig {
	return domain.AgentConfig{
		ID:       id,
		Name:     id,
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
}
