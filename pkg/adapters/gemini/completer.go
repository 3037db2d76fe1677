// Package gemini adapts the Google Generative Language API to the engine's
// completer port. Gemini's REST surface only understands role/content
// histories here, so tool turns are flattened to text via the domain's wire
// helpers and tool selection stays with OpenAI-backed agents.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
)

// Completer implements ports.ChatCompleter over generateContent.
type Completer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Option configures a Completer.
type Option func(*Completer)

// WithBaseURL overrides the API endpoint, for proxies and tests.
func WithBaseURL(url string) Option {
	return func(c *Completer) {
		c.baseURL = url
	}
}

// WithDefaultModel sets the model used when a request names none.
func WithDefaultModel(model string) Option {
	return func(c *Completer) {
		c.model = model
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Completer) {
		c.client = client
	}
}

// New creates a Gemini completer.
func New(apiKey string, opts ...Option) *Completer {
	c := &Completer{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs one blocking generateContent call.
func (c *Completer) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	wire := generateRequest{}
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			wire.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			continue
		}
		wire.Contents = append(wire.Contents, content{
			Role:  geminiRole(m.WireRole()),
			Parts: []part{{Text: m.WireContent()}},
		})
	}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		cfg := &generationConfig{MaxOutputTokens: req.MaxTokens}
		if req.Temperature != 0 {
			temp := req.Temperature
			cfg.Temperature = &temp
		}
		wire.GenerationConfig = cfg
	}

	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gemini response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("gemini API error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return nil, fmt.Errorf("gemini API returned status %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	var text string
	for _, p := range parsed.Candidates[0].Content.Parts {
		text += p.Text
	}
	return &ports.CompletionResponse{Text: text}, nil
}

// geminiRole maps wire roles to Gemini's two-role scheme.
func geminiRole(r domain.Role) string {
	if r == domain.RoleAssistant {
		return "model"
	}
	return "user"
}
