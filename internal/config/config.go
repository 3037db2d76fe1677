// Package config loads the service configuration: a YAML file layered with
// environment overrides for the secrets that never belong on disk.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    Server    `yaml:"server"`
	Storage   Storage   `yaml:"storage"`
	Providers Providers `yaml:"providers"`
	MCP       MCP       `yaml:"mcp"`
	Logging   Logging   `yaml:"logging"`
	Engine    Engine    `yaml:"engine"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `yaml:"addr"`
}

// Storage selects the persistence backend.
type Storage struct {
	// Backend is one of "memory", "file", "redis".
	Backend string `yaml:"backend"`

	File  FileStorage  `yaml:"file"`
	Redis RedisStorage `yaml:"redis"`
}

// FileStorage configures the file backend.
type FileStorage struct {
	Dir string `yaml:"dir"`
}

// RedisStorage configures the redis backend.
type RedisStorage struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Providers holds LLM provider credentials.
type Providers struct {
	OpenAI OpenAIProvider `yaml:"openai"`
	Gemini GeminiProvider `yaml:"gemini"`
}

// OpenAIProvider configures the OpenAI-compatible backend.
type OpenAIProvider struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GeminiProvider configures the Gemini backend.
type GeminiProvider struct {
	APIKey string `yaml:"api_key"`
}

// MCP configures the tool server connection. An empty URL disables tools.
type MCP struct {
	URL string `yaml:"url"`
}

// Logging configures the structured logger.
type Logging struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
}

// Engine tunes execution bounds.
type Engine struct {
	MaxSteps    int           `yaml:"max_steps"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server:  Server{Addr: ":8080"},
		Storage: Storage{Backend: "memory", File: FileStorage{Dir: "data"}},
		Logging: Logging{Level: "info"},
		Engine:  Engine{MaxSteps: 50, CallTimeout: 60 * time.Second},
	}
}

// Load reads the YAML file at path, falling back to defaults when path is
// empty or the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Defaults plus environment.
		case err != nil:
			return nil, fmt.Errorf("failed to read config %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "DRAGENT_ADDR")
	setString(&c.Storage.Backend, "DRAGENT_STORAGE")
	setString(&c.Storage.File.Dir, "DRAGENT_DATA_DIR")
	setString(&c.Storage.Redis.Addr, "REDIS_ADDR")
	setString(&c.Storage.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Providers.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.MCP.URL, "MCP_URL")
	setString(&c.Logging.Level, "DRAGENT_LOG_LEVEL")

	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Storage.Redis.DB = db
		}
	}
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q (want memory, file or redis)", c.Storage.Backend)
	}
	if c.Storage.Backend == "redis" && c.Storage.Redis.Addr == "" {
		return errors.New("redis storage selected but no redis address configured")
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
