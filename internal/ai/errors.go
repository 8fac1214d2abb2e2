package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrExtraction is matched by every *ExtractionError.
var ErrExtraction = errors.New("statement extraction failed")

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrEmptyResponse       = errors.New("ai provider returned no text")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
	ErrUnsupportedMedia    = errors.New("unsupported media type")
	ErrNoFiles             = errors.New("no files to extract")
)

// ExtractionError is returned by every Extractor on failure. Err wraps one of
// the sentinels above.
type ExtractionError struct {
	Provider string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction: %v", e.Provider, e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// Fail wraps err as an *ExtractionError for provider.
func Fail(provider string, err error) error {
	return &ExtractionError{Provider: provider, Err: err}
}

// TransportError classifies a failed outbound call. Deadline and cancellation
// become ErrInferenceTimeout, anything else ErrProviderUnavailable.
func TransportError(ctx context.Context, provider string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Fail(provider, fmt.Errorf("%w: %v", ErrInferenceTimeout, err))
	}
	return Fail(provider, fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
}
