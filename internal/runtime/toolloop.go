package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/cjsstech/changi-dr-agent/internal/logging"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

const (
	// maxToolIterations bounds the call/tool/recall cycle so an agent can
	// never spin forever calling tools.
	maxToolIterations = 5

	// historyWindow is how many prior turns are forwarded to the model.
	historyWindow = 10

	// loopFallback is returned when the iteration bound is exhausted
	// without a final text answer.
	loopFallback = "I'm sorry, I'm getting stuck in a loop of operations. Please try again."

	// defaultCallTimeout caps each external call (completer or tool).
	defaultCallTimeout = 60 * time.Second

	// defaultSystemPrompt is used when an agent has no prompt document.
	defaultSystemPrompt = "You are a helpful assistant."
)

// RunResult is the outcome of one bounded agent invocation.
type RunResult struct {
	// Text is the agent's final answer (or the loop fallback).
	Text string

	// Transcript holds the turns produced during the loop: tool-call
	// requests and synthetic tool-result turns, in order.
	Transcript []domain.Message

	// Metadata carries the domain facts lifted out of successful tool
	// results. It is the only channel by which a tool's effect can
	// influence later conditional routing.
	Metadata map[string]any
}

// AgentRunner wraps one conversational agent in the bounded tool loop.
// Safe for concurrent use; each Run works on its own message list.
type AgentRunner struct {
	cfg          domain.AgentConfig
	systemPrompt string
	completer    ports.ChatCompleter
	registry     ports.ToolRegistry
	callTimeout  time.Duration
	logger       *slog.Logger
}

// RunnerOption configures an AgentRunner.
type RunnerOption func(*AgentRunner)

// WithCallTimeout overrides the per-call timeout for completer and tool calls.
func WithCallTimeout(d time.Duration) RunnerOption {
	return func(r *AgentRunner) {
		r.callTimeout = d
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *AgentRunner) {
		r.logger = logger
	}
}

// NewAgentRunner builds a runner for one agent. registry may be nil when no
// tool surface is configured; the agent then simply never sees tools.
func NewAgentRunner(cfg domain.AgentConfig, systemPrompt string, completer ports.ChatCompleter, registry ports.ToolRegistry, opts ...RunnerOption) *AgentRunner {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	r := &AgentRunner{
		cfg:          cfg,
		systemPrompt: systemPrompt,
		completer:    completer,
		registry:     registry,
		callTimeout:  defaultCallTimeout,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AgentID returns the id of the wrapped agent.
func (r *AgentRunner) AgentID() string { return r.cfg.ID }

// Run executes one bounded conversation turn: system prompt, a window of
// prior history, the user message, then up to maxToolIterations completer
// calls interleaved with tool executions. It returns an error only when the
// very conversation with the model breaks; tool failures are surfaced to the
// model as synthetic turns so it can recover.
func (r *AgentRunner) Run(ctx context.Context, userMessage string, history []domain.Message, _ map[string]any) (*RunResult, error) {
	msgs := r.baseMessages(userMessage, history)

	res := &RunResult{Metadata: make(map[string]any)}

	for i := 0; i < maxToolIterations; i++ {
		resp, err := r.complete(ctx, msgs)
		if err != nil {
			return nil, err
		}

		if resp.ToolCall == nil {
			res.Text = stripFences(resp.Text)
			return res, nil
		}

		call := *resp.ToolCall
		r.logger.Info("processing tool call", "agent", r.cfg.ID, "tool", call.Name)

		callTurn := domain.ToolCallMessage(call)
		resultTurn := r.executeTool(ctx, call, res.Metadata)

		msgs = append(msgs, callTurn, resultTurn)
		res.Transcript = append(res.Transcript, callTurn, resultTurn)
	}

	r.logger.Warn("max tool iterations reached", "agent", r.cfg.ID)
	res.Text = loopFallback
	return res, nil
}

// executeTool runs one tool call and renders its outcome as a synthetic
// conversation turn. Unknown tools, transport errors, and timeouts all
// become failure turns; the model decides whether to try again.
func (r *AgentRunner) executeTool(ctx context.Context, call domain.ToolCall, meta map[string]any) domain.Message {
	if r.registry == nil || !r.registry.IsEnabled(call.Name) {
		r.logger.Warn("unknown tool requested", "agent", r.cfg.ID, "tool", call.Name)
		return domain.ToolResultMessage(domain.ToolResult{
			Name:    call.Name,
			Content: "unknown tool",
			IsError: true,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	result, err := r.registry.Call(callCtx, call.Name, call.Arguments)
	if err != nil {
		r.logger.Warn("tool execution failed", "agent", r.cfg.ID, "tool", call.Name, "err", err)
		return domain.ToolResultMessage(domain.ToolResult{
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		})
	}

	promoteToolResult(result, meta)

	payload, err := json.Marshal(result)
	if err != nil {
		payload = []byte(`{}`)
	}
	return domain.ToolResultMessage(domain.ToolResult{
		Name:    call.Name,
		Content: string(payload),
	})
}

func (r *AgentRunner) complete(ctx context.Context, msgs []domain.Message) (*ports.CompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	return r.completer.Complete(callCtx, ports.CompletionRequest{
		Model:       r.cfg.Model,
		Messages:    msgs,
		Tools:       r.tools(),
		Temperature: r.cfg.Temperature,
		MaxTokens:   r.cfg.MaxTokens,
	})
}

func (r *AgentRunner) tools() []ports.ToolDescriptor {
	if r.registry == nil {
		return nil
	}
	return r.registry.Tools()
}

// baseMessages assembles: system prompt, the most recent historyWindow
// turns, then the user message.
func (r *AgentRunner) baseMessages(userMessage string, history []domain.Message) []domain.Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.SystemMessage(r.systemPrompt))
	msgs = append(msgs, history...)
	return append(msgs, domain.UserMessage(userMessage))
}

// promoteToolResult merges the top-level fields of a successful tool result
// into the shared execution metadata. A search result establishing, say, a
// destination becomes visible to later conditional routing this way.
func promoteToolResult(result, meta map[string]any) {
	for k, v := range result {
		meta[k] = v
	}
}

// stripFences removes a wrapping markdown code fence from the final answer.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```html")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
