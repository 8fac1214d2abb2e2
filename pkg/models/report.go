package models

import (
	"time"

	"github.com/google/uuid"
)

// Report is the persisted financial history of one owner. StatementIDs only
// ever grows as new statements are merged in.
type Report struct {
	ID           uuid.UUID      `db:"id"            json:"id"`
	OwnerID      uuid.UUID      `db:"owner_id"      json:"-"`
	StatementIDs []uuid.UUID    `db:"statement_ids" json:"statementIds"`
	Analysis     AnalysisResult `db:"analysis"      json:"analysis"`
	CreatedAt    time.Time      `db:"created_at"    json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at"    json:"updatedAt"`
}

// ReportSummary is the list view of a report.
type ReportSummary struct {
	ID               uuid.UUID `json:"id"`
	BusinessName     string    `json:"businessName"`
	PeriodCovered    Period    `json:"periodCovered"`
	FundabilityScore *int      `json:"fundabilityScore"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Summarize builds the list view of r.
func (r *Report) Summarize() ReportSummary {
	s := ReportSummary{
		ID:            r.ID,
		BusinessName:  r.Analysis.BusinessName,
		PeriodCovered: r.Analysis.PeriodCovered,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if fa := r.Analysis.FundabilityAssessment; fa != nil {
		score := fa.Score
		s.FundabilityScore = &score
	}
	return s
}

// MonthlySnapshotRow is the denormalized, append-only copy of one month of a
// report's analysis. There is at most one row per (owner, report, month).
type MonthlySnapshotRow struct {
	ID       uuid.UUID `db:"id"        json:"id"`
	OwnerID  uuid.UUID `db:"owner_id"  json:"-"`
	ReportID uuid.UUID `db:"report_id" json:"reportId"`
	MonthlySnapshot
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
