// Package llm resolves agent configurations to concrete completer
// implementations. One factory serves the whole process; completers are
// built once per provider and shared across agents.
package llm

import (
	"fmt"
	"sync"

	"github.com/cjsstech/changi-dr-agent/pkg/adapters/gemini"
	"github.com/cjsstech/changi-dr-agent/pkg/adapters/openai"
	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

// Provider names accepted in agent configurations.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Credentials carries the provider API settings the factory hands out.
type Credentials struct {
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
}

// Factory builds and caches per-provider completers.
type Factory struct {
	creds Credentials

	mu    sync.Mutex
	cache map[string]ports.ChatCompleter
}

// NewFactory creates a factory over the given credentials.
func NewFactory(creds Credentials) *Factory {
	return &Factory{
		creds: creds,
		cache: make(map[string]ports.ChatCompleter),
	}
}

// CompleterFor resolves the completer for an agent. An empty provider
// defaults to OpenAI.
func (f *Factory) CompleterFor(cfg domain.AgentConfig) (ports.ChatCompleter, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = ProviderOpenAI
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache[provider]; ok {
		return c, nil
	}

	var c ports.ChatCompleter
	switch provider {
	case ProviderOpenAI:
		if f.creds.OpenAIKey == "" {
			return nil, fmt.Errorf("agent %q needs an OpenAI API key", cfg.ID)
		}
		c = openai.New(f.creds.OpenAIKey, f.creds.OpenAIBaseURL)
	case ProviderGemini:
		if f.creds.GeminiKey == "" {
			return nil, fmt.Errorf("agent %q needs a Gemini API key", cfg.ID)
		}
		c = gemini.New(f.creds.GeminiKey)
	default:
		return nil, fmt.Errorf("unsupported provider %q for agent %q (supported: %s, %s)",
			provider, cfg.ID, ProviderOpenAI, ProviderGemini)
	}

	f.cache[provider] = c
	return c, nil
}
