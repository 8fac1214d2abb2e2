package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/ai"
	"github.com/todaycapital/statementlens/internal/api/response"
	"github.com/todaycapital/statementlens/pkg/models"
)

// Reports defines the report operations the handlers depend on.
type Reports interface {
	CreateReport(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, result models.AnalysisResult) (*models.Report, error)
	ListReports(ctx context.Context, ownerID uuid.UUID) ([]models.ReportSummary, error)
	LatestReport(ctx context.Context, ownerID uuid.UUID) (*models.Report, error)
	GetReport(ctx context.Context, ownerID, id uuid.UUID) (*models.Report, error)
	AddStatements(ctx context.Context, ownerID, reportID uuid.UUID, ids []uuid.UUID) (*ai.MergeOutcome, error)
	MonthlyHistory(ctx context.Context, ownerID uuid.UUID) ([]*models.MonthlySnapshotRow, error)
}

// NewCreateReportHandler returns an http.HandlerFunc for POST /api/reports.
func NewCreateReportHandler(svc Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			StatementIDs []uuid.UUID           `json:"statementIds"`
			Analysis     *models.AnalysisResult `json:"analysis"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Analysis == nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "analysis is required", nil)
			return
		}

		report, err := svc.CreateReport(r.Context(), userID, req.StatementIDs, *req.Analysis)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Created(w, report)
	}
}

// NewListReportsHandler returns an http.HandlerFunc for GET /api/reports.
func NewListReportsHandler(svc Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		reports, err := svc.ListReports(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Collection(w, reports, len(reports))
	}
}

// NewLatestReportHandler returns an http.HandlerFunc for GET /api/reports/latest.
func NewLatestReportHandler(svc Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		report, err := svc.LatestReport(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, report)
	}
}

// NewGetReportHandler returns an http.HandlerFunc for GET /api/reports/{id}.
func NewGetReportHandler(svc Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		report, err := svc.GetReport(r.Context(), userID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, report)
	}
}

// NewAddStatementsHandler returns an http.HandlerFunc for
// POST /api/reports/{id}/add-statements.
func NewAddStatementsHandler(svc Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
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

		out, err := svc.AddStatements(r.Context(), userID, id, req.StatementIDs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, addStatementsResponse{Report: out.Report, MonthsAdded: out.MonthsAdded})
	}
}

// NewMonthlyHistoryHandler returns an http.HandlerFunc for
// GET /api/reports/history/monthly.
func NewMonthlyHistoryHandler(svc Reports) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		rows, err := svc.MonthlyHistory(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.Collection(w, rows, len(rows))
	}
}

type addStatementsResponse struct {
	Report      *models.Report `json:"report"`
	MonthsAdded int            `json:"monthsAdded"`
}
