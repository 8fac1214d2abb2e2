// Package anthropic extracts statement analyses with the Anthropic Messages API.
package anthropic

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

const apiVersion = "2023-06-01"

// Provider implements models.Extractor using Anthropic.
type Provider struct {
	cfg        config.AnthropicConfig
	maxTokens  int
	repairJSON bool
	httpClient *http.Client
}

func NewProvider(cfg config.AIConfig) *Provider {
	return &Provider{
		cfg:        cfg.Anthropic,
		maxTokens:  cfg.MaxTokens,
		repairJSON: cfg.RepairJSON,
		httpClient: &http.Client{},
	}
}

func (p *Provider) Name() string { return "anthropic" }

type source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string  `json:"type"`
	Source *source `json:"source,omitempty"`
	Text   string  `json:"text,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Extract sends every file plus the extraction prompt in a single user
// message and parses the first text block of the reply.
func (p *Provider) Extract(ctx context.Context, files []models.StatementFile) (models.AnalysisResult, error) {
	if err := ai.CheckFiles(files); err != nil {
		return models.AnalysisResult{}, ai.Fail(p.Name(), err)
	}

	body, err := json.Marshal(messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: p.maxTokens,
		Messages:  []message{{Role: "user", Content: buildContent(files)}},
	})
	if err != nil {
		return models.AnalysisResult{}, ai.Fail(p.Name(), fmt.Errorf("%w: marshal request: %v", ai.ErrProviderUnavailable, err))
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.AnalysisResult{}, ai.Fail(p.Name(), fmt.Errorf("%w: create request: %v", ai.ErrProviderUnavailable, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return models.AnalysisResult{}, ai.TransportError(ctx, p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AnalysisResult{}, ai.TransportError(ctx, p.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.AnalysisResult{}, ai.Fail(p.Name(),
			fmt.Errorf("%w: status %d: %s", ai.ErrProviderUnavailable, resp.StatusCode, truncate(raw, 512)))
	}

	var decoded messagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return models.AnalysisResult{}, ai.Fail(p.Name(), fmt.Errorf("%w: decode envelope: %v", ai.ErrInvalidResponse, err))
	}

	text, ok := firstText(decoded)
	if !ok {
		return models.AnalysisResult{}, ai.Fail(p.Name(), ai.ErrEmptyResponse)
	}

	result, err := ai.ParseAnalysis(text, p.repairJSON)
	if err != nil {
		return models.AnalysisResult{}, ai.Fail(p.Name(), err)
	}
	return result, nil
}

func buildContent(files []models.StatementFile) []contentBlock {
	blocks := make([]contentBlock, 0, len(files)+1)
	for _, f := range files {
		kind := "image"
		if ai.ClassifyMedia(f.MimeType) == ai.MediaDocument {
			kind = "document"
		}
		blocks = append(blocks, contentBlock{
			Type: kind,
			Source: &source{
				Type:      "base64",
				MediaType: f.MimeType,
				Data:      base64.StdEncoding.EncodeToString(f.Content),
			},
		})
	}
	return append(blocks, contentBlock{Type: "text", Text: ai.ExtractionPrompt})
}

func firstText(r messagesResponse) (string, bool) {
	for _, c := range r.Content {
		if c.Type == "text" {
			return c.Text, true
		}
	}
	return "", false
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

var _ models.Extractor = (*Provider)(nil)
