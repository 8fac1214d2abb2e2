package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrConcurrentUpdate means the report changed between load and save.
var ErrConcurrentUpdate = errors.New("report was modified concurrently")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.User, error)

	CreateStatements(ctx context.Context, statements []*models.Statement) error
	GetStatement(ctx context.Context, id uuid.UUID) (*models.Statement, error)
	ListStatements(ctx context.Context, ownerID uuid.UUID) ([]*models.Statement, error)
	GetStatementsByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]*models.Statement, error)
	DeleteStatement(ctx context.Context, id uuid.UUID) error

	CreateReport(ctx context.Context, report *models.Report, snapshots []models.MonthlySnapshot) error
	GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error)
	ListReports(ctx context.Context, ownerID uuid.UUID) ([]*models.Report, error)
	LatestReport(ctx context.Context, ownerID uuid.UUID) (*models.Report, error)
	SaveMergedReport(ctx context.Context, update MergedReportUpdate) (*models.Report, error)

	AppendMonthlySnapshots(ctx context.Context, ownerID, reportID uuid.UUID, snapshots []models.MonthlySnapshot) (int, error)
	ListSnapshotMonths(ctx context.Context, ownerID, reportID uuid.UUID) ([]string, error)
	ListSnapshotsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.MonthlySnapshotRow, error)

	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	GetLeadByEmail(ctx context.Context, email string) (*models.Lead, error)
	MarkLeadAnalysisCompleted(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) (*models.Lead, error)
}

// ProfileUpdate carries the user fields that may change. Nil leaves a field as is.
type ProfileUpdate struct {
	BusinessName *string
	Phone        *string
}

// MergedReportUpdate is the atomic write of one merge: the new analysis, the
// statements that fed it, and the snapshot rows for months not yet persisted.
type MergedReportUpdate struct {
	ReportID uuid.UUID
	OwnerID  uuid.UUID
	// ExpectedUpdatedAt is the UpdatedAt observed when the report was loaded.
	// The save fails with ErrConcurrentUpdate if it no longer matches.
	ExpectedUpdatedAt time.Time
	Analysis          models.AnalysisResult
	AddStatementIDs   []uuid.UUID
	Snapshots         []models.MonthlySnapshot
}

// UnionIDs appends the ids of add missing from base, keeping order.
func UnionIDs(base, add []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(base)+len(add))
	out := make([]uuid.UUID, 0, len(base)+len(add))
	for _, list := range [][]uuid.UUID{base, add} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
