// Package memory provides mutex-guarded in-memory implementations of the
// engine's store ports. The default for tests and single-process setups;
// per-deployment persistence swaps in the file or redis adapters.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// WorkflowStore keeps workflow definitions in process memory.
type WorkflowStore struct {
	mu   sync.RWMutex
	defs map[string]domain.WorkflowDefinition
}

// NewWorkflowStore returns an empty in-memory workflow store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{defs: make(map[string]domain.WorkflowDefinition)}
}

func (s *WorkflowStore) Get(_ context.Context, id string) (*domain.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	// Copy so callers cannot mutate the stored value.
	out := def
	out.Nodes = append([]domain.Node(nil), def.Nodes...)
	out.Edges = append([]domain.Edge(nil), def.Edges...)
	return &out, nil
}

func (s *WorkflowStore) Save(_ context.Context, def *domain.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *def
	stored.Nodes = append([]domain.Node(nil), def.Nodes...)
	stored.Edges = append([]domain.Edge(nil), def.Edges...)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()
	s.defs[def.ID] = stored
	return nil
}

func (s *WorkflowStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.defs[id]; !ok {
		return domain.ErrWorkflowNotFound
	}
	delete(s.defs, id)
	return nil
}

func (s *WorkflowStore) List(_ context.Context) ([]domain.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WorkflowDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AgentStore keeps agent configurations in process memory.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]domain.AgentConfig
}

// NewAgentStore returns an empty in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{agents: make(map[string]domain.AgentConfig)}
}

func (s *AgentStore) Get(_ context.Context, id string) (*domain.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.agents[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	out := cfg
	return &out, nil
}

func (s *AgentStore) Save(_ context.Context, cfg *domain.AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *cfg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()
	s.agents[cfg.ID] = stored
	return nil
}

func (s *AgentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return domain.ErrAgentNotFound
	}
	delete(s.agents, id)
	return nil
}

func (s *AgentStore) List(_ context.Context) ([]domain.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AgentConfig, 0, len(s.agents))
	for _, cfg := range s.agents {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PromptStore keeps named system prompts in process memory.
type PromptStore struct {
	mu      sync.RWMutex
	prompts map[string]string
}

// NewPromptStore returns an empty in-memory prompt store.
func NewPromptStore() *PromptStore {
	return &PromptStore{prompts: make(map[string]string)}
}

func (s *PromptStore) Get(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[name]
	if !ok {
		return "", domain.ErrPromptNotFound
	}
	return p, nil
}

func (s *PromptStore) Save(_ context.Context, name, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[name] = content
	return nil
}

func (s *PromptStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.prompts))
	for name := range s.prompts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// SessionStore keeps per-session conversation contexts in process memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.ConversationContext
}

// NewSessionStore returns an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]domain.ConversationContext)}
}

func (s *SessionStore) Save(_ context.Context, sessionID string, sc *domain.ConversationContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = copyContext(sc)
	return nil
}

func (s *SessionStore) Load(_ context.Context, sessionID string) (*domain.ConversationContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := copyContext(&sc)
	return &out, nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *SessionStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func copyContext(sc *domain.ConversationContext) domain.ConversationContext {
	out := domain.ConversationContext{
		History:  append([]domain.Message(nil), sc.History...),
		Metadata: make(map[string]any, len(sc.Metadata)),
	}
	for k, v := range sc.Metadata {
		out.Metadata[k] = v
	}
	return out
}
