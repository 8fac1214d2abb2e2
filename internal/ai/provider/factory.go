// Package provider selects the statement extractor named by configuration.
package provider

import (
	"context"
	"fmt"

	"github.com/todaycapital/statementlens/internal/ai/anthropic"
	"github.com/todaycapital/statementlens/internal/ai/gemini"
	"github.com/todaycapital/statementlens/internal/ai/openai"
	"github.com/todaycapital/statementlens/internal/config"
	"github.com/todaycapital/statementlens/pkg/models"
)

// New constructs the appropriate extractor based on config.
// Called once at server startup.
func New(ctx context.Context, cfg config.AIConfig) (models.Extractor, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewProvider(cfg), nil
	case "openai":
		return openai.NewProvider(cfg), nil
	case "vllm":
		return openai.NewVLLMProvider(cfg), nil
	case "gemini":
		p, err := gemini.NewProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of anthropic, openai, vllm, gemini", cfg.Provider)
	}
}
