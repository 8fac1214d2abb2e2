// Package openai extracts statement analyses over the OpenAI Chat Completions
// protocol. The same client serves self-hosted vLLM deployments.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/todaycapital/statementlens/internal/ai"
	"github.com/todaycapital/statementlens/internal/config"
	"github.com/todaycapital/statementlens/pkg/models"
)

// Provider implements models.Extractor using any OpenAI-compatible endpoint.
type Provider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	repairJSON bool
	httpClient *http.Client
}

func NewProvider(cfg config.AIConfig) *Provider {
	return &Provider{
		name:       "openai",
		baseURL:    cfg.OpenAI.BaseURL,
		apiKey:     cfg.OpenAI.APIKey,
		model:      cfg.OpenAI.Model,
		maxTokens:  cfg.MaxTokens,
		repairJSON: cfg.RepairJSON,
		httpClient: &http.Client{},
	}
}

// NewVLLMProvider targets a vLLM server. vLLM needs no API key.
func NewVLLMProvider(cfg config.AIConfig) *Provider {
	return &Provider{
		name:       "vllm",
		baseURL:    cfg.VLLM.BaseURL,
		model:      cfg.VLLM.Model,
		maxTokens:  cfg.MaxTokens,
		repairJSON: cfg.RepairJSON,
		httpClient: &http.Client{},
	}
}

func (p *Provider) Name() string { return p.name }

type imageURL struct {
	URL string `json:"url"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
	File     *filePart `json:"file,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	MaxTokens      int            `json:"max_tokens"`
	Messages       []message      `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *Provider) Extract(ctx context.Context, files []models.StatementFile) (models.AnalysisResult, error) {
	if err := ai.CheckFiles(files); err != nil {
		return models.AnalysisResult{}, ai.Fail(p.name, err)
	}

	body, err := json.Marshal(chatRequest{
		Model:          p.model,
		MaxTokens:      p.maxTokens,
		Messages:       []message{{Role: "user", Content: buildContent(files)}},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return models.AnalysisResult{}, ai.Fail(p.name, fmt.Errorf("%w: marshal request: %v", ai.ErrProviderUnavailable, err))
	}

	url := strings.TrimRight(p.baseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, ai.Fail(p.name, fmt.Errorf("%w: create request: %v", ai.ErrProviderUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.AnalysisResult{}, ai.TransportError(ctx, p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisResult{}, ai.TransportError(ctx, p.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, ai.Fail(p.name,
			fmt.Errorf("%w: status %d", ai.ErrProviderUnavailable, resp.StatusCode))
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return models.AnalysisResult{}, ai.Fail(p.name, fmt.Errorf("%w: decode envelope: %v", ai.ErrInvalidResponse, err))
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return models.AnalysisResult{}, ai.Fail(p.name, ai.ErrEmptyResponse)
	}

	result, err := ai.ParseAnalysis(decoded.Choices[0].Message.Content, p.repairJSON)
	if err != nil {
		return models.AnalysisResult{}, ai.Fail(p.name, err)
	}
	return result, nil
}

func buildContent(files []models.StatementFile) []contentPart {
	parts := make([]contentPart, 0, len(files)+1)
	for _, f := range files {
		uri := fmt.Sprintf("data:%s;base64,%s", f.MimeType, base64.StdEncoding.EncodeToString(f.Content))
		if ai.ClassifyMedia(f.MimeType) == ai.MediaDocument {
			parts = append(parts, contentPart{Type: "file", File: &filePart{Filename: f.Name, FileData: uri}})
			continue
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: uri}})
	}
	return append(parts, contentPart{Type: "text", Text: ai.ExtractionPrompt})
}

var _ models.Extractor = (*Provider)(nil)
