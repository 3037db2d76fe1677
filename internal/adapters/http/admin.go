package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"

	"github.com/cjsstech/changi-dr-agent/internal/compiler"
	"github.com/cjsstech/changi-dr-agent/internal/presentation/graph"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
)

// decodeDefinition reads a workflow definition from an editor payload.
// Editors are loose with types (numbers as strings, missing fields), so the
// payload goes through a weakly typed decode instead of strict JSON.
func decodeDefinition(r io.Reader) (*domain.WorkflowDefinition, error) {
	var raw map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, err
	}

	var def domain.WorkflowDefinition
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	return &def, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrWorkflowNotFound) ||
		errors.Is(err, domain.ErrAgentNotFound) ||
		errors.Is(err, domain.ErrPromptNotFound) ||
		errors.Is(err, domain.ErrSessionNotFound)
}

func isValidation(err error) bool {
	var verr *domain.ValidationError
	return errors.As(err, &verr)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs, err := s.workflows.List(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": defs})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := s.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleSaveWorkflow creates or updates a definition. The stored definition
// is validated first and the compiled-graph cache entry is dropped so the
// next execution sees the new shape.
func (s *Server) handleSaveWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := decodeDefinition(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow definition")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		def.ID = id
	}

	if problems := compiler.Validate(def); len(problems) > 0 {
		s.renderError(w, &domain.ValidationError{WorkflowID: def.ID, Problems: problems})
		return
	}

	if err := s.workflows.Save(r.Context(), def); err != nil {
		s.renderError(w, err)
		return
	}
	s.executor.Invalidate(def.ID)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": def.ID})
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.workflows.Delete(r.Context(), id); err != nil {
		s.renderError(w, err)
		return
	}
	s.executor.Invalidate(id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleValidateWorkflow checks a definition without saving it.
func (s *Server) handleValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := decodeDefinition(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid workflow definition")
		return
	}

	problems := compiler.Validate(def)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

// handleCompileWorkflow compiles the stored definition, priming the cache.
func (s *Server) handleCompileWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.executor.Compile(r.Context(), id); err != nil {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (s *Server) handleWorkflowGraph(w http.ResponseWriter, r *http.Request) {
	def, err := s.workflows.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(def)))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.agents.List(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.agents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleSaveAgent creates or updates an agent and drops its cached runner.
func (s *Server) handleSaveAgent(w http.ResponseWriter, r *http.Request) {
	var cfg domain.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent config")
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		cfg.ID = id
	}
	if cfg.ID == "" {
		writeError(w, http.StatusBadRequest, "agent id is required")
		return
	}

	if err := s.agents.Save(r.Context(), &cfg); err != nil {
		s.renderError(w, err)
		return
	}
	s.executor.InvalidateAgent(cfg.ID)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": cfg.ID})
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.agents.Delete(r.Context(), id); err != nil {
		s.renderError(w, err)
		return
	}
	s.executor.InvalidateAgent(id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	names, err := s.prompts.List(r.Context())
	if err != nil {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": names})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	content, err := s.prompts.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    chi.URLParam(r, "name"),
		"content": content,
	})
}

// handleSavePrompt accepts raw text; prompts are documents, not JSON.
func (s *Server) handleSavePrompt(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	content, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read prompt body")
		return
	}

	if err := s.prompts.Save(r.Context(), name, string(content)); err != nil {
		s.renderError(w, err)
		return
	}

	// Agents referencing this prompt rebuild their runners lazily; drop
	// every runner that names it.
	if agents, err := s.agents.List(r.Context()); err == nil {
		for _, cfg := range agents {
			if cfg.PromptFile == name {
				s.executor.InvalidateAgent(cfg.ID)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "name": name})
}
