package domain

import "time"

// AgentConfig describes a conversational agent: which provider and model it
// runs on and where its system prompt lives. Authored by the admin surface,
// read-only to the engine.
type AgentConfig struct {
	ID          string `json:"id" yaml:"id" mapstructure:"id"`
	Name        string `json:"name" yaml:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`

	// Provider selects the completer implementation ("openai", "gemini").
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`

	// PromptFile names the system prompt document in the prompt store.
	// Empty means the built-in default prompt.
	PromptFile string `json:"prompt_file,omitempty" yaml:"prompt_file,omitempty" mapstructure:"prompt_file"`

	Temperature float32 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty" mapstructure:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty" mapstructure:"updated_at"`
}
