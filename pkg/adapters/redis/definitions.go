package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// WorkflowStore implements ports.WorkflowStore on a Redis hash: one field
// per workflow id, JSON-encoded definition.
type WorkflowStore struct {
	client *backend.Client
	key    string
}

// NewWorkflowStore creates a workflow store from an existing client.
func NewWorkflowStore(client *backend.Client) *WorkflowStore {
	return &WorkflowStore{client: client, key: defaultPrefix + "workflows"}
}

func (s *WorkflowStore) Get(ctx context.Context, id string) (*domain.WorkflowDefinition, error) {
	val, err := s.client.HGet(ctx, s.key, id).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to get workflow from redis: %w", err)
	}

	var def domain.WorkflowDefinition
	if err := json.Unmarshal([]byte(val), &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow: %w", err)
	}
	return &def, nil
}

func (s *WorkflowStore) Save(ctx context.Context, def *domain.WorkflowDefinition) error {
	stored := *def
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, def.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save workflow to redis: %w", err)
	}
	return nil
}

func (s *WorkflowStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.key, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete workflow from redis: %w", err)
	}
	if removed == 0 {
		return domain.ErrWorkflowNotFound
	}
	return nil
}

func (s *WorkflowStore) List(ctx context.Context) ([]domain.WorkflowDefinition, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows from redis: %w", err)
	}

	out := make([]domain.WorkflowDefinition, 0, len(fields))
	for id, val := range fields {
		var def domain.WorkflowDefinition
		if err := json.Unmarshal([]byte(val), &def); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow %q: %w", id, err)
		}
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AgentStore implements ports.AgentStore on a Redis hash.
type AgentStore struct {
	client *backend.Client
	key    string
}

// NewAgentStore creates an agent store from an existing client.
func NewAgentStore(client *backend.Client) *AgentStore {
	return &AgentStore{client: client, key: defaultPrefix + "agents"}
}

func (s *AgentStore) Get(ctx context.Context, id string) (*domain.AgentConfig, error) {
	val, err := s.client.HGet(ctx, s.key, id).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("failed to get agent from redis: %w", err)
	}

	var cfg domain.AgentConfig
	if err := json.Unmarshal([]byte(val), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	return &cfg, nil
}

func (s *AgentStore) Save(ctx context.Context, cfg *domain.AgentConfig) error {
	stored := *cfg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, cfg.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to save agent to redis: %w", err)
	}
	return nil
}

func (s *AgentStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.HDel(ctx, s.key, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete agent from redis: %w", err)
	}
	if removed == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func (s *AgentStore) List(ctx context.Context) ([]domain.AgentConfig, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list agents from redis: %w", err)
	}

	out := make([]domain.AgentConfig, 0, len(fields))
	for id, val := range fields {
		var cfg domain.AgentConfig
		if err := json.Unmarshal([]byte(val), &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agent %q: %w", id, err)
		}
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
