// Package blob stores uploaded statement files outside the database.
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/todaycapital/statementlens/internal/config"
)

var ErrNotFound = errors.New("blob not found")

// Store holds statement file bytes by key. Deleting a missing key is not an error.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New constructs the backend named by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.LocalDir)
	case "s3":
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
