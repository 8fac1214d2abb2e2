package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/todaycapital/statementlens/internal/analysis"
	"github.com/todaycapital/statementlens/pkg/models"
)

// Media kinds accepted by the providers.
const (
	MediaDocument    = "document"
	MediaImage       = "image"
	MediaUnsupported = "unsupported"
)

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ClassifyMedia maps a MIME type to how it is sent to a model.
func ClassifyMedia(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return MediaDocument
	case imageTypes[mt]:
		return MediaImage
	default:
		return MediaUnsupported
	}
}

// CheckFiles rejects an empty batch and any file that is neither a PDF nor a
// supported image.
func CheckFiles(files []models.StatementFile) error {
	if len(files) == 0 {
		return ErrNoFiles
	}
	for _, f := range files {
		if ClassifyMedia(f.MimeType) == MediaUnsupported {
			return fmt.Errorf("%w: %s (%s)", ErrUnsupportedMedia, f.Name, f.MimeType)
		}
	}
	return nil
}

// ParseAnalysis decodes a model's text payload. A surrounding markdown code
// fence is removed first. With repair set, text that fails strict decoding
// is passed through json-repair and then, as a last resort, Hjson. A payload
// that decodes but lacks a required section is rejected.
//
// Errors are ErrEmptyResponse or ErrInvalidResponse, unwrapped by provider.
func ParseAnalysis(text string, repair bool) (models.AnalysisResult, error) {
	payload := StripCodeFence(text)
	if payload == "" {
		return models.AnalysisResult{}, ErrEmptyResponse
	}

	result, err := decodeAnalysis(payload, repair)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	if err := CheckAnalysis(result); err != nil {
		return models.AnalysisResult{}, err
	}
	return result, nil
}

// CheckAnalysis reports a decoded analysis with a missing section as
// ErrInvalidResponse.
func CheckAnalysis(result models.AnalysisResult) error {
	if err := analysis.Validate(result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func decodeAnalysis(payload string, repair bool) (models.AnalysisResult, error) {
	var result models.AnalysisResult
	err := json.Unmarshal([]byte(payload), &result)
	if err == nil {
		return result, nil
	}
	if !repair {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if repaired, rerr := jsonrepair.RepairJSON(payload); rerr == nil {
		result = models.AnalysisResult{}
		if json.Unmarshal([]byte(repaired), &result) == nil {
			return result, nil
		}
	}

	if normalized, herr := hjsonToJSON(payload); herr == nil {
		result = models.AnalysisResult{}
		if json.Unmarshal(normalized, &result) == nil {
			return result, nil
		}
	}

	return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
}

func hjsonToJSON(s string) ([]byte, error) {
	var v any
	if err := hjson.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// StripCodeFence trims text and removes a leading ```json or ``` line and a
// trailing ``` if present.
func StripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	for _, open := range []string{"```json", "```"} {
		if len(s) >= len(open) && strings.EqualFold(s[:len(open)], open) {
			s = strings.TrimSpace(s[len(open):])
			break
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
