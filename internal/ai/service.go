package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/todaycapital/statementlens/internal/analysis"
	"github.com/todaycapital/statementlens/internal/blob"
	"github.com/todaycapital/statementlens/internal/cache"
	"github.com/todaycapital/statementlens/internal/store"
	"github.com/todaycapital/statementlens/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	MaxUploadFiles = 10
	MaxFileSize    = 20 << 20
)

var (
	ErrForbidden           = errors.New("resource belongs to another user")
	ErrNoStatements        = errors.New("no statements found")
	ErrTooManyFiles        = fmt.Errorf("at most %d files per upload", MaxUploadFiles)
	ErrFileTooLarge        = fmt.Errorf("file exceeds %d bytes", MaxFileSize)
	ErrUnsupportedFileType = errors.New("file must be a PDF or a JPEG, PNG, GIF or WebP image")
	ErrReportBusy          = errors.New("report is being updated")
)

// Upload is one file received from a client.
type Upload struct {
	Name string
	Data []byte
}

// Outcome is the result of an extraction that is not stored as a report.
type Outcome struct {
	Analysis     models.AnalysisResult `json:"analysis"`
	StatementIDs []uuid.UUID           `json:"statementIds"`
}

// MergeOutcome is the result of AddStatements.
type MergeOutcome struct {
	Report      *models.Report
	MonthsAdded int
}

// ServiceOptions tunes a ReportService.
type ServiceOptions struct {
	// InferenceTimeout bounds one Extract call. Zero means the request context alone applies.
	InferenceTimeout time.Duration
	LockTTL          time.Duration
	CacheTTL         time.Duration
}

// ReportService runs statement uploads, extraction and report merges, one
// request at a time.
type ReportService struct {
	extractor models.Extractor
	store     store.Store
	blobs     blob.Store
	cache     cache.Cache
	locker    cache.Locker
	opts      ServiceOptions
}

// NewReportService creates a ReportService.
func NewReportService(extractor models.Extractor, st store.Store, blobs blob.Store, c cache.Cache, locker cache.Locker, opts ServiceOptions) *ReportService {
	return &ReportService{
		extractor: extractor,
		store:     st,
		blobs:     blobs,
		cache:     c,
		locker:    locker,
		opts:      opts,
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// UploadStatements stores files for owner. Every file is checked before
// anything is written.
func (s *ReportService) UploadStatements(ctx context.Context, ownerID uuid.UUID, uploads []Upload) ([]*models.Statement, error) {
	files, err := checkUploads(uploads)
	if err != nil {
		return nil, err
	}
	return s.saveStatements(ctx, ownerID, files)
}

func checkUploads(uploads []Upload) ([]models.StatementFile, error) {
	if len(uploads) == 0 {
		return nil, ErrNoFiles
	}
	if len(uploads) > MaxUploadFiles {
		return nil, ErrTooManyFiles
	}

	files := make([]models.StatementFile, 0, len(uploads))
	for _, u := range uploads {
		if len(u.Data) > MaxFileSize {
			return nil, fmt.Errorf("%s: %w", u.Name, ErrFileTooLarge)
		}
		mime := mimetype.Detect(u.Data).String()
		if ClassifyMedia(mime) == MediaUnsupported {
			return nil, fmt.Errorf("%s: %w", u.Name, ErrUnsupportedFileType)
		}
		files = append(files, models.StatementFile{Name: u.Name, MimeType: mime, Content: u.Data})
	}
	return files, nil
}

func (s *ReportService) saveStatements(ctx context.Context, ownerID uuid.UUID, files []models.StatementFile) ([]*models.Statement, error) {
	uploadedAt := now()
	statements := make([]*models.Statement, 0, len(files))
	for _, f := range files {
		id := uuid.New()
		st := &models.Statement{
			ID:         id,
			OwnerID:    ownerID,
			FileName:   f.Name,
			StorageKey: fmt.Sprintf("statements/%s/%s%s", ownerID, id, extension(f.MimeType)),
			FileType:   f.MimeType,
			FileSize:   int64(len(f.Content)),
			UploadedAt: uploadedAt,
		}
		if err := s.blobs.Put(ctx, st.StorageKey, f.MimeType, f.Content); err != nil {
			s.discardBlobs(ctx, statements)
			return nil, fmt.Errorf("storing %s: %w", f.Name, err)
		}
		statements = append(statements, st)
	}

	if err := s.store.CreateStatements(ctx, statements); err != nil {
		s.discardBlobs(ctx, statements)
		return nil, fmt.Errorf("creating statements: %w", err)
	}
	return statements, nil
}

func (s *ReportService) discardBlobs(ctx context.Context, statements []*models.Statement) {
	ctx = context.WithoutCancel(ctx)
	for _, st := range statements {
		if err := s.blobs.Delete(ctx, st.StorageKey); err != nil {
			slog.Warn("failed to discard blob", "key", st.StorageKey, "error", err)
		}
	}
}

func extension(mime string) string {
	if mt := mimetype.Lookup(mime); mt != nil {
		return mt.Extension()
	}
	return ""
}

// ListStatements returns owner's statements, newest first.
func (s *ReportService) ListStatements(ctx context.Context, ownerID uuid.UUID) ([]*models.Statement, error) {
	return s.store.ListStatements(ctx, ownerID)
}

// DeleteStatement removes the row and then the file. A file left behind by a
// failed blob delete is logged; the statement is gone either way.
func (s *ReportService) DeleteStatement(ctx context.Context, ownerID, id uuid.UUID) error {
	st, err := s.store.GetStatement(ctx, id)
	if err != nil {
		return err
	}
	if st.OwnerID != ownerID {
		return ErrForbidden
	}
	if err := s.store.DeleteStatement(ctx, id); err != nil {
		return err
	}
	s.discardBlobs(ctx, []*models.Statement{st})
	return nil
}

// AnalyzeStatements extracts an analysis from owner's statements without
// storing anything. Ids that are unknown or belong to someone else are skipped.
func (s *ReportService) AnalyzeStatements(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (*Outcome, error) {
	statements, err := s.ownedStatements(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	result, err := s.extractStatements(ctx, statements)
	if err != nil {
		return nil, err
	}
	return &Outcome{Analysis: result, StatementIDs: statementIDs(statements)}, nil
}

// QuickAnalyze extracts straight from uploaded bytes. With a non-nil owner the
// files are saved as statements once extraction has succeeded.
func (s *ReportService) QuickAnalyze(ctx context.Context, ownerID *uuid.UUID, uploads []Upload) (*Outcome, error) {
	files, err := checkUploads(uploads)
	if err != nil {
		return nil, err
	}
	result, err := s.extract(ctx, files)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Analysis: result, StatementIDs: []uuid.UUID{}}
	if ownerID == nil {
		return out, nil
	}
	statements, err := s.saveStatements(ctx, *ownerID, files)
	if err != nil {
		return nil, err
	}
	out.StatementIDs = statementIDs(statements)
	return out, nil
}

// CreateReport stores a complete analysis as a new report and snapshots
// every month it covers.
func (s *ReportService) CreateReport(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID, result models.AnalysisResult) (*models.Report, error) {
	if err := analysis.Validate(result); err != nil {
		return nil, err
	}

	owned := []uuid.UUID{}
	if len(ids) > 0 {
		statements, err := s.store.GetStatementsByIDs(ctx, ownerID, ids)
		if err != nil {
			return nil, fmt.Errorf("loading statements: %w", err)
		}
		mine := make(map[uuid.UUID]bool, len(statements))
		for _, st := range statements {
			mine[st.ID] = true
		}
		for _, id := range store.UnionIDs(nil, ids) {
			if mine[id] {
				owned = append(owned, id)
			}
		}
	}

	ts := now()
	report := &models.Report{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		StatementIDs: owned,
		Analysis:     result,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	snapshots := analysis.ProjectSnapshots(nil, result.MonthlyData)
	if err := s.store.CreateReport(ctx, report, snapshots); err != nil {
		return nil, fmt.Errorf("creating report: %w", err)
	}
	return report, nil
}

// ListReports returns summaries of owner's reports, newest first.
func (s *ReportService) ListReports(ctx context.Context, ownerID uuid.UUID) ([]models.ReportSummary, error) {
	reports, err := s.store.ListReports(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ReportSummary, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.Summarize())
	}
	return out, nil
}

// LatestReport returns owner's most recently created report.
func (s *ReportService) LatestReport(ctx context.Context, ownerID uuid.UUID) (*models.Report, error) {
	return s.store.LatestReport(ctx, ownerID)
}

// GetReport reads through the cache. A cache failure falls back to the store.
func (s *ReportService) GetReport(ctx context.Context, ownerID, id uuid.UUID) (*models.Report, error) {
	report, hit, err := s.cache.GetReport(ctx, id)
	if err != nil {
		slog.Warn("report cache read failed", "report_id", id, "error", err)
	}
	if !hit {
		report, err = s.store.GetReport(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetReport(ctx, report, s.opts.CacheTTL); err != nil {
			slog.Warn("report cache write failed", "report_id", id, "error", err)
		}
	}
	if report.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return report, nil
}

// AddStatements extracts the given statements and merges the result into an
// existing report. The report is locked for the whole read-modify-write, and
// nothing is written unless extraction and merge both succeed.
func (s *ReportService) AddStatements(ctx context.Context, ownerID, reportID uuid.UUID, ids []uuid.UUID) (*MergeOutcome, error) {
	release, err := s.locker.TryLock(ctx, cache.ReportLockKey(reportID), s.opts.LockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, ErrReportBusy
	}
	if err != nil {
		return nil, fmt.Errorf("locking report: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("failed to release report lock", "report_id", reportID, "error", err)
		}
	}()

	existing, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	statements, err := s.ownedStatements(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	next, err := s.extractStatements(ctx, statements)
	if err != nil {
		return nil, err
	}

	merged, err := analysis.Merge(existing.Analysis, next)
	if err != nil {
		return nil, err
	}

	persisted, err := s.store.ListSnapshotMonths(ctx, ownerID, reportID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshot months: %w", err)
	}
	snapshots := analysis.ProjectSnapshots(persisted, merged.MonthlyData)

	saved, err := s.store.SaveMergedReport(ctx, store.MergedReportUpdate{
		ReportID:          reportID,
		OwnerID:           ownerID,
		ExpectedUpdatedAt: existing.UpdatedAt,
		Analysis:          merged,
		AddStatementIDs:   statementIDs(statements),
		Snapshots:         snapshots,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.DeleteReport(ctx, reportID); err != nil {
		slog.Warn("report cache invalidation failed", "report_id", reportID, "error", err)
	}

	slog.Info("report merged",
		"report_id", reportID,
		"statements_added", len(statements),
		"months_added", len(snapshots),
	)
	return &MergeOutcome{Report: saved, MonthsAdded: len(snapshots)}, nil
}

// MonthlyHistory returns every snapshot row of owner, newest month first.
func (s *ReportService) MonthlyHistory(ctx context.Context, ownerID uuid.UUID) ([]*models.MonthlySnapshotRow, error) {
	return s.store.ListSnapshotsByOwner(ctx, ownerID)
}

func (s *ReportService) ownedStatements(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]*models.Statement, error) {
	if len(ids) == 0 {
		return nil, ErrNoStatements
	}
	statements, err := s.store.GetStatementsByIDs(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("loading statements: %w", err)
	}
	if len(statements) == 0 {
		return nil, ErrNoStatements
	}
	return statements, nil
}

func (s *ReportService) extractStatements(ctx context.Context, statements []*models.Statement) (models.AnalysisResult, error) {
	files := make([]models.StatementFile, len(statements))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range statements {
		g.Go(func() error {
			data, err := s.blobs.Get(gctx, st.StorageKey)
			if err != nil {
				return fmt.Errorf("reading statement %s: %w", st.ID, err)
			}
			files[i] = models.StatementFile{Name: st.FileName, MimeType: st.FileType, Content: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.AnalysisResult{}, err
	}
	return s.extract(ctx, files)
}

func (s *ReportService) extract(ctx context.Context, files []models.StatementFile) (models.AnalysisResult, error) {
	if s.opts.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.InferenceTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := s.extractor.Extract(ctx, files)
	if err != nil {
		switch {
		case ctx.Err() != nil && !errors.Is(err, ErrInferenceTimeout):
			err = Fail(s.extractor.Name(), fmt.Errorf("%w: %v", ErrInferenceTimeout, err))
		case !errors.Is(err, ErrExtraction):
			err = Fail(s.extractor.Name(), err)
		}
		slog.Warn("extraction failed",
			"provider", s.extractor.Name(),
			"files", len(files),
			"error", err,
		)
		return models.AnalysisResult{}, err
	}
	if err := CheckAnalysis(result); err != nil {
		err = Fail(s.extractor.Name(), err)
		slog.Warn("extraction incomplete", "provider", s.extractor.Name(), "error", err)
		return models.AnalysisResult{}, err
	}

	slog.Info("extraction completed",
		"provider", s.extractor.Name(),
		"files", len(files),
		"months", len(result.MonthlyData),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func statementIDs(statements []*models.Statement) []uuid.UUID {
	ids := make([]uuid.UUID, len(statements))
	for i, st := range statements {
		ids[i] = st.ID
	}
	return ids
}
