// Package models contains shared data models used across the statementlens codebase.
package models

import "context"

// Extractor is the core interface that all AI integrations must implement.
// Callers depend on this interface, never on a concrete provider.
type Extractor interface {
	// Extract turns one logical batch of statement files into an analysis.
	// Files outside pdf/jpeg/png/gif/webp must be rejected before this call.
	Extract(ctx context.Context, files []StatementFile) (AnalysisResult, error)

	// Name returns the provider identifier (e.g., "anthropic", "gemini").
	Name() string
}

// StatementFile is the raw content of one uploaded statement.
type StatementFile struct {
	Name     string
	MimeType string
	Content  []byte
}
