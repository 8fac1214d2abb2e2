// Package gemini extracts statement analyses with Google Gemini through the
// GenAI SDK.
package gemini

import (
	"context"
	"fmt"

	"github.com/todaycapital/statementlens/internal/ai"
	"github.com/todaycapital/statementlens/internal/config"
	"github.com/todaycapital/statementlens/pkg/models"
	"google.golang.org/genai"
)

// Provider implements models.Extractor using Gemini.
type Provider struct {
	client     *genai.Client
	model      string
	maxTokens  int
	repairJSON bool
}

// NewProvider creates the GenAI client once; it is safe for concurrent use.
func NewProvider(ctx context.Context, cfg config.AIConfig) (*Provider, error) {
	return newProvider(ctx, cfg, genai.HTTPOptions{})
}

func newProvider(ctx context.Context, cfg config.AIConfig, httpOpts genai.HTTPOptions) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.Gemini.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Provider{
		client:     client,
		model:      cfg.Gemini.Model,
		maxTokens:  cfg.MaxTokens,
		repairJSON: cfg.RepairJSON,
	}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Extract(ctx context.Context, files []models.StatementFile) (models.AnalysisResult, error) {
	if err := ai.CheckFiles(files); err != nil {
		return models.AnalysisResult{}, ai.Fail(p.Name(), err)
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		MaxOutputTokens:  int32(p.maxTokens),
		ResponseMIMEType: "application/json",
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, buildContents(files), genCfg)
	if err != nil {
		return models.AnalysisResult{}, ai.TransportError(ctx, p.Name(), err)
	}

	text := result.Text()
	if text == "" {
		return models.AnalysisResult{}, ai.Fail(p.Name(), ai.ErrEmptyResponse)
	}

	analysis, err := ai.ParseAnalysis(text, p.repairJSON)
	if err != nil {
		return models.AnalysisResult{}, ai.Fail(p.Name(), err)
	}
	return analysis, nil
}

func buildContents(files []models.StatementFile) []*genai.Content {
	parts := make([]*genai.Part, 0, len(files)+1)
	for _, f := range files {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: f.MimeType, Data: f.Content}})
	}
	parts = append(parts, &genai.Part{Text: ai.ExtractionPrompt})
	return []*genai.Content{{Role: "user", Parts: parts}}
}

var _ models.Extractor = (*Provider)(nil)
