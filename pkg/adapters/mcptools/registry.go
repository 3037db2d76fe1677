// Package mcptools exposes an MCP server's tools as the engine's tool
// registry. One registry wraps one streamable-HTTP MCP connection; the tool
// list is fetched at connect time and can be refreshed while serving.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cjsstech/changi-dr-agent/internal/logging"
	"github.com/cjsstech/changi-dr-agent/internal/metrics"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// mcpClient is the slice of the client surface the registry uses.
type mcpClient interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Registry implements ports.ToolRegistry over an MCP connection.
type Registry struct {
	client mcpClient

	mu    sync.RWMutex
	tools map[string]ports.ToolDescriptor
	order []string

	logger  *slog.Logger
	metrics *metrics.Collector
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records tool call counts on the collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Registry) {
		r.metrics = c
	}
}

// Connect dials an MCP server over streamable HTTP, runs the protocol
// handshake, and loads the initial tool list.
func Connect(ctx context.Context, url string, opts ...Option) (*Registry, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.Capabilities = mcp.ClientCapabilities{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "changi-dr-agent",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	r := newRegistry(c, opts...)
	if err := r.Refresh(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return r, nil
}

func newRegistry(c mcpClient, opts ...Option) *Registry {
	r := &Registry{
		client: c,
		tools:  make(map[string]ports.ToolDescriptor),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh re-fetches the tool list from the server. Concurrent Calls keep
// seeing the previous list until the swap.
func (r *Registry) Refresh(ctx context.Context) error {
	result, err := r.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list MCP tools: %w", err)
	}

	tools := make(map[string]ports.ToolDescriptor, len(result.Tools))
	order := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		tools[t.Name] = ports.ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schemaToMap(t.InputSchema),
		}
		order = append(order, t.Name)
	}

	r.mu.Lock()
	r.tools = tools
	r.order = order
	r.mu.Unlock()

	r.logger.Info("refreshed MCP tool list", "tools", len(order))
	return nil
}

// IsEnabled reports whether the server advertises the named tool.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Tools lists descriptors in the order the server advertised them.
func (r *Registry) Tools() []ports.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Call executes a tool and decodes its first text content as a JSON object.
// Non-JSON text comes back under a "result" key so callers always see a map.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	result, err := r.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		r.metrics.ToolCall(name, true)
		return nil, fmt.Errorf("MCP call %q failed: %w", name, err)
	}

	text := firstText(result.Content)
	if result.IsError {
		r.metrics.ToolCall(name, true)
		if text == "" {
			text = "tool reported an error"
		}
		return nil, errors.New(text)
	}
	r.metrics.ToolCall(name, false)

	payload := make(map[string]any)
	if text == "" {
		return payload, nil
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return map[string]any{"result": text}, nil
	}
	return payload, nil
}

// Close shuts down the MCP connection.
func (r *Registry) Close() error {
	return r.client.Close()
}

func firstText(contents []mcp.Content) string {
	for _, c := range contents {
		if tc, ok := mcp.AsTextContent(c); ok {
			return tc.Text
		}
	}
	return ""
}

// schemaToMap converts the typed MCP input schema to the generic JSON-Schema
// map the completer port carries. Round-tripping through JSON keeps this
// independent of the mcp-go struct layout.
func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
