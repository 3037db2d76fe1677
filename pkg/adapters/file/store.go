// Package file persists definitions on the local filesystem: one JSON
// document per collection for workflows and agents, and a directory of
// plain-text prompt files. Writes are atomic (temp file plus rename) so a
// crash never leaves a half-written collection.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// WorkflowStore implements ports.WorkflowStore over a single JSON file.
type WorkflowStore struct {
	mu   sync.Mutex
	path string
}

// NewWorkflowStore creates a store at path. The file is created on first
// save; a missing file reads as an empty collection.
func NewWorkflowStore(path string) *WorkflowStore {
	return &WorkflowStore{path: path}
}

func (s *WorkflowStore) Get(_ context.Context, id string) (*domain.WorkflowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.read()
	if err != nil {
		return nil, err
	}
	def, ok := defs[id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return &def, nil
}

func (s *WorkflowStore) Save(_ context.Context, def *domain.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.read()
	if err != nil {
		return err
	}

	stored := *def
	if existing, ok := defs[def.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()

	defs[def.ID] = stored
	return s.write(defs)
}

func (s *WorkflowStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := defs[id]; !ok {
		return domain.ErrWorkflowNotFound
	}
	delete(defs, id)
	return s.write(defs)
}

func (s *WorkflowStore) List(_ context.Context) ([]domain.WorkflowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]domain.WorkflowDefinition, 0, len(defs))
	for _, def := range defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *WorkflowStore) read() (map[string]domain.WorkflowDefinition, error) {
	defs := make(map[string]domain.WorkflowDefinition)
	if err := readJSON(s.path, &defs); err != nil {
		return nil, fmt.Errorf("failed to read workflow collection: %w", err)
	}
	return defs, nil
}

func (s *WorkflowStore) write(defs map[string]domain.WorkflowDefinition) error {
	if err := writeJSON(s.path, defs); err != nil {
		return fmt.Errorf("failed to write workflow collection: %w", err)
	}
	return nil
}

// AgentStore implements ports.AgentStore over a single JSON file.
type AgentStore struct {
	mu   sync.Mutex
	path string
}

// NewAgentStore creates a store at path.
func NewAgentStore(path string) *AgentStore {
	return &AgentStore{path: path}
}

func (s *AgentStore) Get(_ context.Context, id string) (*domain.AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.read()
	if err != nil {
		return nil, err
	}
	cfg, ok := agents[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return &cfg, nil
}

func (s *AgentStore) Save(_ context.Context, cfg *domain.AgentConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.read()
	if err != nil {
		return err
	}

	stored := *cfg
	if existing, ok := agents[cfg.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()

	agents[cfg.ID] = stored
	return s.write(agents)
}

func (s *AgentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := agents[id]; !ok {
		return domain.ErrAgentNotFound
	}
	delete(agents, id)
	return s.write(agents)
}

func (s *AgentStore) List(_ context.Context) ([]domain.AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]domain.AgentConfig, 0, len(agents))
	for _, cfg := range agents {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *AgentStore) read() (map[string]domain.AgentConfig, error) {
	agents := make(map[string]domain.AgentConfig)
	if err := readJSON(s.path, &agents); err != nil {
		return nil, fmt.Errorf("failed to read agent collection: %w", err)
	}
	return agents, nil
}

func (s *AgentStore) write(agents map[string]domain.AgentConfig) error {
	if err := writeJSON(s.path, agents); err != nil {
		return fmt.Errorf("failed to write agent collection: %w", err)
	}
	return nil
}

// PromptStore implements ports.PromptStore over a directory of .md files.
// The name "greeter" maps to "<dir>/greeter.md"; names already carrying an
// extension are used as-is.
type PromptStore struct {
	dir string
}

// NewPromptStore creates a prompt store over dir.
func NewPromptStore(dir string) *PromptStore {
	return &PromptStore{dir: dir}
}

func (s *PromptStore) filename(name string) string {
	if filepath.Ext(name) == "" {
		name += ".md"
	}
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *PromptStore) Get(_ context.Context, name string) (string, error) {
	data, err := os.ReadFile(s.filename(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.ErrPromptNotFound
		}
		return "", fmt.Errorf("failed to read prompt %q: %w", name, err)
	}
	return string(data), nil
}

func (s *PromptStore) Save(_ context.Context, name, content string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create prompt directory: %w", err)
	}
	if err := os.WriteFile(s.filename(name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write prompt %q: %w", name, err)
	}
	return nil
}

func (s *PromptStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
