// Package http exposes the engine over REST: conversational endpoints for
// workflows and single agents (blocking and SSE), the admin CRUD surface
// with cache invalidation, and the operational endpoints.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cjsstech/changi-dr-agent/internal/logging"
	"github.com/cjsstech/changi-dr-agent/internal/runtime"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
	"github.com/cjsstech/changi-dr-agent/pkg/session"
)

// sessionHeader carries the conversation id between turns. The body field
// session_id takes precedence when both are present.
const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
)

// Server routes HTTP traffic to the executor and stores.
type Server struct {
	executor  *runtime.Executor
	sessions  *session.Manager
	workflows ports.WorkflowStore
	agents    ports.AgentStore
	prompts   ports.PromptStore
	logger    *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer wires the HTTP surface over the engine's components.
func NewServer(executor *runtime.Executor, sessions *session.Manager, workflows ports.WorkflowStore, agents ports.AgentStore, prompts ports.PromptStore, opts ...Option) *Server {
	s := &Server{
		executor:  executor,
		sessions:  sessions,
		workflows: workflows,
		agents:    agents,
		prompts:   prompts,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/workflow/chat", s.handleWorkflowChat)
	r.Post("/workflow/chat/stream", s.handleWorkflowChatStream)
	r.Post("/agent/chat", s.handleAgentChat)
	r.Post("/agent/chat/stream", s.handleAgentChatStream)
	r.Post("/api/reset", s.handleReset)

	r.Route("/admin", func(r chi.Router) {
		r.Route("/workflows", func(r chi.Router) {
			r.Get("/", s.handleListWorkflows)
			r.Post("/", s.handleSaveWorkflow)
			r.Post("/validate", s.handleValidateWorkflow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkflow)
				r.Put("/", s.handleSaveWorkflow)
				r.Delete("/", s.handleDeleteWorkflow)
				r.Post("/compile", s.handleCompileWorkflow)
				r.Get("/graph", s.handleWorkflowGraph)
			})
		})
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handleListAgents)
			r.Post("/", s.handleSaveAgent)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAgent)
				r.Put("/", s.handleSaveAgent)
				r.Delete("/", s.handleDeleteAgent)
			})
		})
		r.Route("/prompts", func(r chi.Router) {
			r.Get("/", s.handleListPrompts)
			r.Get("/{name}", s.handleGetPrompt)
			r.Put("/{name}", s.handleSavePrompt)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// chatRequest is the shared request body for the conversational endpoints.
type chatRequest struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	AgentID    string `json:"agent_id,omitempty"`
	Message    string `json:"message"`
	SessionID  string `json:"session_id,omitempty"`
}

// chatResponse is the blocking chat reply.
type chatResponse struct {
	Response     string            `json:"response"`
	Success      bool              `json:"success"`
	SessionID    string            `json:"session_id"`
	WorkflowID   string            `json:"workflow_id,omitempty"`
	AgentID      string            `json:"agent_id,omitempty"`
	AgentOutputs map[string]string `json:"agent_outputs,omitempty"`
	Metadata     map[string]any    `json:"metadata,omitempty"`
	Error        string            `json:"error,omitempty"`
}

func (s *Server) handleWorkflowChat(w http.ResponseWriter, r *http.Request) {
	req, sessionID, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	if req.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	convo, err := s.sessions.LoadOrStart(r.Context(), sessionID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	result, err := s.executor.Execute(r.Context(), req.WorkflowID, req.Message, convo)
	if err != nil {
		s.renderError(w, err)
		return
	}

	if err := s.sessions.RecordTurn(r.Context(), sessionID, req.Message, result); err != nil {
		s.logger.Warn("failed to persist session turn", "session", sessionID, "err", err)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:     result.Response,
		Success:      result.Success,
		SessionID:    sessionID,
		WorkflowID:   result.WorkflowID,
		AgentOutputs: result.AgentOutputs,
		Metadata:     result.Metadata,
	})
}

func (s *Server) handleWorkflowChatStream(w http.ResponseWriter, r *http.Request) {
	req, sessionID, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	if req.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflow_id is required")
		return
	}

	convo, err := s.sessions.LoadOrStart(r.Context(), sessionID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	for ev := range s.executor.ExecuteStream(r.Context(), req.WorkflowID, req.Message, convo) {
		if ev.Type == domain.EventDone && ev.Result != nil {
			if err := s.sessions.RecordTurn(r.Context(), sessionID, req.Message, ev.Result); err != nil {
				s.logger.Warn("failed to persist session turn", "session", sessionID, "err", err)
			}
		}
		sse.send(ev)
	}
}

func (s *Server) handleAgentChat(w http.ResponseWriter, r *http.Request) {
	req, sessionID, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	convo, err := s.sessions.LoadOrStart(r.Context(), sessionID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	runner, err := s.executor.Runner(r.Context(), req.AgentID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	res, err := runner.Run(r.Context(), req.Message, convo.History, convo.Metadata)
	if err != nil {
		s.renderError(w, err)
		return
	}

	result := &domain.ExecutionResult{
		Response: res.Text,
		Success:  true,
		Messages: append(append([]domain.Message(nil), convo.History...),
			domain.AssistantMessage(req.AgentID, res.Text)),
		Metadata: res.Metadata,
	}
	if err := s.sessions.RecordTurn(r.Context(), sessionID, req.Message, result); err != nil {
		s.logger.Warn("failed to persist session turn", "session", sessionID, "err", err)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  res.Text,
		Success:   true,
		SessionID: sessionID,
		AgentID:   req.AgentID,
		Metadata:  res.Metadata,
	})
}

func (s *Server) handleAgentChatStream(w http.ResponseWriter, r *http.Request) {
	req, sessionID, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	convo, err := s.sessions.LoadOrStart(r.Context(), sessionID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	runner, err := s.executor.Runner(r.Context(), req.AgentID)
	if err != nil {
		s.renderError(w, err)
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	for ev := range runner.RunStream(r.Context(), req.Message, convo.History) {
		if ev.Type == runtime.AgentEventDone {
			result := &domain.ExecutionResult{
				Response: ev.Response,
				Success:  true,
				Messages: append(append([]domain.Message(nil), convo.History...),
					domain.AssistantMessage(req.AgentID, ev.Response)),
			}
			if err := s.sessions.RecordTurn(r.Context(), sessionID, req.Message, result); err != nil {
				s.logger.Warn("failed to persist session turn", "session", sessionID, "err", err)
			}
		}
		sse.send(ev)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	// Resetting an unknown session is a no-op, not an error.
	if err := s.sessions.Delete(r.Context(), req.SessionID); err != nil && err != domain.ErrSessionNotFound {
		s.renderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// decodeChat parses the shared chat body and resolves the session id:
// body field, then header, then cookie, then a fresh uuid.
func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (chatRequest, string, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, "", false
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return req, "", false
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get(sessionHeader)
	}
	if sessionID == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			sessionID = c.Value
		}
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return req, sessionID, true
}

// renderError maps engine errors onto HTTP status codes.
func (s *Server) renderError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case isValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
