package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjsstech/changi-dr-agent/pkg/domain"
	"github.com/cjsstech/changi-dr-agent/pkg/ports"
)

func TestCompleteMapsRolesAndSystemPrompt(t *testing.T) {
	var captured generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"role": "model", "parts": []map[string]any{{"text": "hi "}, {"text": "there"}}}},
			},
		})
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	resp, err := c.Complete(context.Background(), ports.CompletionRequest{
		Model: "gemini-1.5-pro",
		Messages: []domain.Message{
			domain.SystemMessage("be brief"),
			domain.UserMessage("hello"),
			domain.AssistantMessage("a", "earlier answer"),
			domain.ToolResultMessage(domain.ToolResult{Name: "search", Content: `{"ok":true}`}),
		},
		Temperature: 0.4,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Nil(t, resp.ToolCall)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "be brief", captured.SystemInstruction.Parts[0].Text)

	require.Len(t, captured.Contents, 3)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
	// Tool results travel as user turns, flattened to text.
	assert.Equal(t, "user", captured.Contents[2].Role)
	assert.Contains(t, captured.Contents[2].Parts[0].Text, "Function 'search' result:")

	require.NotNil(t, captured.GenerationConfig)
	assert.InDelta(t, 0.4, float64(*captured.GenerationConfig.Temperature), 1e-6)
}

func TestCompleteSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded"},
		})
	}))
	defer srv.Close()

	c := New("key", WithBaseURL(srv.URL))
	_, err := c.Complete(context.Background(), ports.CompletionRequest{
		Messages: []domain.Message{domain.UserMessage("hello")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}
