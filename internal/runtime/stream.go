package runtime

import (
	"context"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// Agent stream event types.
const (
	AgentEventChunk = "chunk"
	AgentEventDone  = "done"
	AgentEventError = "error"
)

// AgentEvent is one entry in a streamed single-agent chat: text chunks as
// they arrive, then a final done event carrying the cleaned full response.
type AgentEvent struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Response string `json:"response,omitempty"`
	AgentID  string `json:"agent_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunStream streams one conversation turn. Tools are not offered on the
// streaming path; callers that need tool use go through Run. The channel is
// closed after the terminal done/error event.
func (r *AgentRunner) RunStream(ctx context.Context, userMessage string, history []domain.Message) <-chan AgentEvent {
	out := make(chan AgentEvent, 8)

	go func() {
		defer close(out)

		msgs := r.baseMessages(userMessage, history)
		req := ports.CompletionRequest{
			Model:       r.cfg.Model,
			Messages:    msgs,
			Temperature: r.cfg.Temperature,
			MaxTokens:   r.cfg.MaxTokens,
		}

		full, err := r.streamCompletion(ctx, req, out)
		if err != nil {
			r.logger.Warn("streaming chat failed", "agent", r.cfg.ID, "err", err)
			out <- AgentEvent{Type: AgentEventError, AgentID: r.cfg.ID, Error: err.Error()}
			return
		}

		out <- AgentEvent{
			Type:     AgentEventDone,
			AgentID:  r.cfg.ID,
			Response: stripFences(full),
		}
	}()

	return out
}

// streamCompletion prefers the provider's native streaming; providers that
// only support blocking completion yield the whole answer as a single chunk.
func (r *AgentRunner) streamCompletion(ctx context.Context, req ports.CompletionRequest, out chan<- AgentEvent) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	sc, ok := r.completer.(ports.StreamCompleter)
	if !ok {
		resp, err := r.completer.Complete(callCtx, req)
		if err != nil {
			return "", err
		}
		out <- AgentEvent{Type: AgentEventChunk, Content: resp.Text}
		return resp.Text, nil
	}

	chunks, err := sc.CompleteStream(callCtx, req)
	if err != nil {
		return "", err
	}

	var full string
	for chunk := range chunks {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		full += chunk.Text
		select {
		case out <- AgentEvent{Type: AgentEventChunk, Content: chunk.Text}:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return full, nil
}
