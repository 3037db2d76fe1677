package dragent

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/cjsstech/changi-dr-agent/internal/config"
	"github.com/cjsstech/changi-dr-agent/internal/logging"
	"github.com/cjsstech/changi-dr-agent/internal/metrics"
	"github.com/cjsstech/changi-dr-agent/internal/runtime"
	fileadapter "github.com/cjsstech/changi-dr-agent/pkg/adapters/file"
	"github.com/cjsstech/changi-dr-agent/pkg/adapters/llm"
	"github.com/cjsstech/changi-dr-agent/pkg/adapters/mcptools"
	"github.com/cjsstech/changi-dr-agent/pkg/adapters/memory"
	redisadapter "github.com/cjsstech/changi-dr-agent/pkg/adapters/redis"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
	"github.com/cjsstech/changi-dr-agent/pkg/session"
)

// Version is the release version reported by the CLI.
const Version = "0.3.0"

// Service is the high-level entry point for embedding the engine. It wires
// the configured storage backend, LLM providers, tool registry, session
// manager and executor into one ready-to-use bundle.
type Service struct {
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Executor *runtime.Executor
	Sessions *session.Manager

	Workflows ports.WorkflowStore
	Agents    ports.AgentStore
	Prompts   ports.PromptStore
	Tools     *mcptools.Registry

	redis *backend.Client
}

// Option configures the Service.
type Option func(*Service)

// WithLogger overrides the logger built from the config's logging level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.Logger = logger }
}

// WithRegisterer overrides the Prometheus registerer. Passing nil yields
// unregistered metrics, which is what tests want.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.Metrics = metrics.NewCollector(reg)
	}
}

// New builds a Service from the configuration. The context bounds the
// initial MCP handshake when a tool server is configured.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{Config: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.Logger == nil {
		s.Logger = logging.New(logging.ParseLevel(cfg.Logging.Level))
	}
	if s.Metrics == nil {
		s.Metrics = metrics.NewCollector(prometheus.DefaultRegisterer)
	}

	var sessions ports.SessionStore
	var locker ports.DistributedLocker

	switch cfg.Storage.Backend {
	case "memory", "":
		s.Workflows = memory.NewWorkflowStore()
		s.Agents = memory.NewAgentStore()
		s.Prompts = memory.NewPromptStore()
		sessions = memory.NewSessionStore()

	case "file":
		dir := cfg.Storage.File.Dir
		s.Workflows = fileadapter.NewWorkflowStore(filepath.Join(dir, "workflows.json"))
		s.Agents = fileadapter.NewAgentStore(filepath.Join(dir, "agents.json"))
		s.Prompts = fileadapter.NewPromptStore(filepath.Join(dir, "prompts"))
		sessions = memory.NewSessionStore()

	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Storage.Redis.Addr, err)
		}
		s.redis = client
		s.Workflows = redisadapter.NewWorkflowStore(client)
		s.Agents = redisadapter.NewAgentStore(client)
		// Prompts stay on disk as markdown files regardless of backend.
		s.Prompts = fileadapter.NewPromptStore(filepath.Join(cfg.Storage.File.Dir, "prompts"))
		sessions = redisadapter.NewSessionStore(client, redisadapter.WithTTL(cfg.Storage.Redis.SessionTTL))
		locker = redisadapter.NewLocker(client, "")

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	if cfg.MCP.URL != "" {
		registry, err := mcptools.Connect(ctx, cfg.MCP.URL,
			mcptools.WithLogger(s.Logger),
			mcptools.WithMetrics(s.Metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to MCP server: %w", err)
		}
		s.Tools = registry
	}

	sessionOpts := []session.Option{session.WithLogger(s.Logger)}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}
	s.Sessions = session.NewManager(sessions, sessionOpts...)

	factory := llm.NewFactory(llm.Credentials{
		OpenAIKey:     cfg.Providers.OpenAI.APIKey,
		OpenAIBaseURL: cfg.Providers.OpenAI.BaseURL,
		GeminiKey:     cfg.Providers.Gemini.APIKey,
	})

	execOpts := []runtime.Option{
		runtime.WithLogger(s.Logger),
		runtime.WithMetrics(s.Metrics),
	}
	if cfg.Engine.CallTimeout > 0 {
		execOpts = append(execOpts, runtime.WithAgentCallTimeout(cfg.Engine.CallTimeout))
	}
	if cfg.Engine.MaxSteps > 0 {
		execOpts = append(execOpts, runtime.WithMaxSteps(cfg.Engine.MaxSteps))
	}
	if s.Tools != nil {
		execOpts = append(execOpts, runtime.WithToolRegistry(s.Tools))
	}
	s.Executor = runtime.NewExecutor(s.Workflows, s.Agents, s.Prompts, factory.CompleterFor, execOpts...)

	return s, nil
}

// Close releases the tool client and storage connections.
func (s *Service) Close() error {
	var firstErr error
	if s.Tools != nil {
		if err := s.Tools.Close(); err != nil {
			firstErr = err
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
