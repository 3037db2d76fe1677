package ports

import (
	"context"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// WorkflowStore persists workflow definitions. The engine only reads;
// mutation happens on the editing surface, which must invalidate the
// compiled-graph cache after every write.
type WorkflowStore interface {
	// Get returns the definition for the given id, or
	// domain.ErrWorkflowNotFound.
	Get(ctx context.Context, id string) (*domain.WorkflowDefinition, error)

	// Save creates or fully replaces a definition.
	Save(ctx context.Context, def *domain.WorkflowDefinition) error

	// Delete removes a definition, or returns domain.ErrWorkflowNotFound.
	Delete(ctx context.Context, id string) error

	// List returns all definitions.
	List(ctx context.Context) ([]domain.WorkflowDefinition, error)
}

// AgentStore persists agent configurations.
type AgentStore interface {
	// Get returns the agent for the given id, or domain.ErrAgentNotFound.
	Get(ctx context.Context, id string) (*domain.AgentConfig, error)

	Save(ctx context.Context, cfg *domain.AgentConfig) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.AgentConfig, error)
}

// PromptStore persists system prompt documents keyed by file name.
type PromptStore interface {
	// Get returns the prompt text, or domain.ErrPromptNotFound.
	Get(ctx context.Context, name string) (string, error)

	Save(ctx context.Context, name, content string) error
	List(ctx context.Context) ([]string, error)
}

// SessionStore persists per-session conversation context between turns.
type SessionStore interface {
	// Save persists the context for a given session id.
	Save(ctx context.Context, sessionID string, sc *domain.ConversationContext) error

	// Load retrieves the context for a given session id.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.ConversationContext, error)

	// Delete removes the context for a given session id.
	Delete(ctx context.Context, sessionID string) error

	// List returns the active session ids.
	List(ctx context.Context) ([]string, error)
}
