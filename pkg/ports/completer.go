package ports

import (
	"context"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// CompletionRequest is one agent round-trip: full message list plus the
// tools the model is allowed to call.
type CompletionRequest struct {
	Model       string
	Messages    []domain.Message
	Tools       []ToolDescriptor
	Temperature float32
	MaxTokens   int
}

// CompletionResponse carries exactly one of: a final text answer, or a
// structured tool-invocation request.
type CompletionResponse struct {
	Text     string
	ToolCall *domain.ToolCall
}

// ChatCompleter is a conversational agent backend. Implementations wrap an
// LLM provider's wire protocol; calls must honor ctx cancellation and carry
// their own network timeouts.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionChunk is one increment of a streamed completion. A chunk with
// Err set terminates the stream.
type CompletionChunk struct {
	Text string
	Err  error
}

// StreamCompleter is implemented by backends that can stream a text answer
// incrementally. The returned channel is closed by the producer.
type StreamCompleter interface {
	ChatCompleter
	CompleteStream(ctx context.Context, req CompletionRequest) (<-chan CompletionChunk, error)
}
