package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/ai"
	mw "github.com/todaycapital/statementlens/internal/api/middleware"
	"github.com/todaycapital/statementlens/internal/api/response"
	"github.com/todaycapital/statementlens/pkg/models"
)

const (
	uploadField     = "files"
	multipartMemory = 32 << 20
	maxUploadBody   = ai.MaxUploadFiles*ai.MaxFileSize + 1<<20
)

// Statements defines the statement operations the handlers depend on.
type Statements interface {
	UploadStatements(ctx context.Context, ownerID uuid.UUID, uploads []ai.Upload) ([]*models.Statement, error)
	ListStatements(ctx context.Context, ownerID uuid.UUID) ([]*models.Statement, error)
	DeleteStatement(ctx context.Context, ownerID, id uuid.UUID) error
	AnalyzeStatements(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (*ai.Outcome, error)
	QuickAnalyze(ctx context.Context, ownerID *uuid.UUID, uploads []ai.Upload) (*ai.Outcome, error)
}

// NewUploadStatementsHandler returns an http.HandlerFunc for POST /api/statements/upload.
func NewUploadStatementsHandler(svc Statements) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		uploads, ok := readUploads(w, r)
		if !ok {
			return
		}

		statements, err := svc.UploadStatements(r.Context(), userID, uploads)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, statements)
	}
}

// NewListStatementsHandler returns an http.HandlerFunc for GET /api/statements.
func NewListStatementsHandler(svc Statements) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		statements, err := svc.ListStatements(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Collection(w, statements, len(statements))
	}
}

// NewDeleteStatementHandler returns an http.HandlerFunc for DELETE /api/statements/{id}.
func NewDeleteStatementHandler(svc Statements) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := svc.DeleteStatement(r.Context(), userID, id); err != nil {
			writeError(w, r, err)
			return
		}
		response.NoContent(w)
	}
}

// NewAnalyzeStatementsHandler returns an http.HandlerFunc for POST /api/statements/analyze.
func NewAnalyzeStatementsHandler(svc Statements) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req statementIDsRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.StatementIDs) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "statementIds is required", nil)
			return
		}

		out, err := svc.AnalyzeStatements(r.Context(), userID, req.StatementIDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, out)
	}
}

// NewQuickAnalyzeHandler returns an http.HandlerFunc for
// POST /api/statements/quick-analyze. Anonymous callers get an analysis and
// nothing is stored.
func NewQuickAnalyzeHandler(svc Statements) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uploads, ok := readUploads(w, r)
		if !ok {
			return
		}

		var owner *uuid.UUID
		if id, ok := mw.GetUserID(r); ok {
			owner = &id
		}

		out, err := svc.QuickAnalyze(r.Context(), owner, uploads)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, quickAnalyzeResponse{Outcome: out, Saved: owner != nil})
	}
}

type statementIDsRequest struct {
	StatementIDs []uuid.UUID `json:"statementIds"`
}

type quickAnalyzeResponse struct {
	*ai.Outcome
	Saved bool `json:"saved"`
}

func readUploads(w http.ResponseWriter, r *http.Request) ([]ai.Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.Error(w, http.StatusRequestEntityTooLarge, "INVALID_FILE", "Upload is too large", nil)
			return nil, false
		}
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form", nil)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) > ai.MaxUploadFiles {
		writeError(w, r, ai.ErrTooManyFiles)
		return nil, false
	}

	uploads := make([]ai.Upload, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > ai.MaxFileSize {
			writeError(w, r, ai.ErrFileTooLarge)
			return nil, false
		}
		data, err := readPart(fh)
		if err != nil {
			writeError(w, r, err)
			return nil, false
		}
		uploads = append(uploads, ai.Upload{Name: fh.Filename, Data: data})
	}
	return uploads, true
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
