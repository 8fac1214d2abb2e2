package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/todaycapital/statementlens/internal/ai"
	"github.com/todaycapital/statementlens/internal/ai/openai"
	"github.com/todaycapital/statementlens/internal/config"
	"github.com/todaycapital/statementlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisJSON = `{"businessName":"Acme","monthlyData":[],"revenueAnalysis":{},"expenseAnalysis":{},"debtObligations":{},"cashFlowHealth":{},"fundabilityAssessment":{},"redFlags":[],"insights":[],"summary":"s"}`

func completion(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
}

func files() []models.StatementFile {
	return []models.StatementFile{
		{Name: "jan.pdf", MimeType: "application/pdf", Content: []byte("%PDF")},
		{Name: "feb.jpg", MimeType: "image/jpeg", Content: []byte{0xff, 0xd8}},
	}
}

func TestOpenAI_RequestEncoding(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(completion(analysisJSON))
	}))
	defer srv.Close()

	p := openai.NewProvider(config.AIConfig{
		MaxTokens: 4000,
		OpenAI:    config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o", BaseURL: srv.URL},
	})
	assert.Equal(t, "openai", p.Name())

	result, err := p.Extract(context.Background(), files())
	require.NoError(t, err)
	assert.Equal(t, "Acme", result.BusinessName)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])

	content := got["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)

	pdf := content[0].(map[string]any)
	assert.Equal(t, "file", pdf["type"])
	file := pdf["file"].(map[string]any)
	assert.Equal(t, "jan.pdf", file["filename"])
	assert.True(t, strings.HasPrefix(file["file_data"].(string), "data:application/pdf;base64,"))

	img := content[1].(map[string]any)
	assert.Equal(t, "image_url", img["type"])
	assert.True(t, strings.HasPrefix(img["image_url"].(map[string]any)["url"].(string), "data:image/jpeg;base64,"))

	assert.Equal(t, ai.ExtractionPrompt, content[2].(map[string]any)["text"])
}

func TestVLLM_NoAuthorizationHeader(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel, _ = body["model"].(string)
		_ = json.NewEncoder(w).Encode(completion(analysisJSON))
	}))
	defer srv.Close()

	p := openai.NewVLLMProvider(config.AIConfig{
		MaxTokens: 4000,
		VLLM:      config.VLLMConfig{BaseURL: srv.URL + "/", Model: "qwen2-vl"},
	})
	assert.Equal(t, "vllm", p.Name())

	_, err := p.Extract(context.Background(), files())
	require.NoError(t, err)
	assert.Equal(t, "qwen2-vl", gotModel)
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	p := openai.NewProvider(config.AIConfig{OpenAI: config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL}})
	_, err := p.Extract(context.Background(), files())
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
	assert.ErrorIs(t, err, ai.ErrExtraction)
}

func TestOpenAI_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := openai.NewProvider(config.AIConfig{OpenAI: config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL}})
	_, err := p.Extract(context.Background(), files())
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

func TestOpenAI_MalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	p := openai.NewProvider(config.AIConfig{OpenAI: config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL}})
	_, err := p.Extract(context.Background(), files())
	assert.ErrorIs(t, err, ai.ErrInvalidResponse)
}
