package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/todaycapital/statementlens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

const userColumns = `id, email, password_hash, business_name, phone, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.BusinessName, &u.Phone, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, business_name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		user.ID, strings.ToLower(user.Email), user.PasswordHash, user.BusinessName, user.Phone,
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, err
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users SET
		   business_name = COALESCE($2, business_name),
		   phone = COALESCE($3, phone),
		   updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns, id, update.BusinessName, update.Phone))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return u, err
}

// --- Statements ---

const statementColumns = `id, owner_id, file_name, storage_key, file_type, file_size, uploaded_at`

func scanStatements(rows pgx.Rows) ([]*models.Statement, error) {
	defer rows.Close()
	out := []*models.Statement{}
	for rows.Next() {
		var st models.Statement
		if err := rows.Scan(&st.ID, &st.OwnerID, &st.FileName, &st.StorageKey, &st.FileType,
			&st.FileSize, &st.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}

// CreateStatements inserts all rows or none.
func (s *PostgresStore) CreateStatements(ctx context.Context, statements []*models.Statement) error {
	if len(statements) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, st := range statements {
			batch.Queue(
				`INSERT INTO statements (id, owner_id, file_name, storage_key, file_type, file_size, uploaded_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				st.ID, st.OwnerID, st.FileName, st.StorageKey, st.FileType, st.FileSize, st.UploadedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("create statements: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetStatement(ctx context.Context, id uuid.UUID) (*models.Statement, error) {
	var st models.Statement
	err := s.pool.QueryRow(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE id = $1`, id,
	).Scan(&st.ID, &st.OwnerID, &st.FileName, &st.StorageKey, &st.FileType, &st.FileSize, &st.UploadedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get statement: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) ListStatements(ctx context.Context, ownerID uuid.UUID) ([]*models.Statement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+statementColumns+` FROM statements WHERE owner_id = $1 ORDER BY uploaded_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list statements: %w", err)
	}
	return scanStatements(rows)
}

// GetStatementsByIDs returns the statements among ids that belong to ownerID,
// ordered by upload time. Unknown and foreign ids are skipped.
func (s *PostgresStore) GetStatementsByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]*models.Statement, error) {
	if len(ids) == 0 {
		return []*models.Statement{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+statementColumns+` FROM statements
		 WHERE owner_id = $1 AND id = ANY($2)
		 ORDER BY uploaded_at, id`, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("get statements by ids: %w", err)
	}
	return scanStatements(rows)
}

func (s *PostgresStore) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM statements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete statement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Reports ---

const reportColumns = `id, owner_id, statement_ids, analysis, created_at, updated_at`

func scanReport(row pgx.Row) (*models.Report, error) {
	var (
		r   models.Report
		raw []byte
	)
	err := row.Scan(&r.ID, &r.OwnerID, &r.StatementIDs, &raw, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &r.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	if r.StatementIDs == nil {
		r.StatementIDs = []uuid.UUID{}
	}
	return &r, nil
}

// CreateReport inserts the report and one snapshot row per month in a single
// transaction.
func (s *PostgresStore) CreateReport(ctx context.Context, report *models.Report, snapshots []models.MonthlySnapshot) error {
	raw, err := json.Marshal(report.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if report.StatementIDs == nil {
		report.StatementIDs = []uuid.UUID{}
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO reports (id, owner_id, statement_ids, analysis, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			report.ID, report.OwnerID, report.StatementIDs, raw, report.CreatedAt, report.UpdatedAt)
		if err != nil {
			if isDuplicateKeyError(err) {
				return ErrDuplicateKey
			}
			return fmt.Errorf("create report: %w", err)
		}
		if _, err := insertSnapshots(ctx, tx, report.OwnerID, report.ID, snapshots); err != nil {
			return err
		}
		return nil
	})
}

func (s *PostgresStore) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return r, err
}

func (s *PostgresStore) ListReports(ctx context.Context, ownerID uuid.UUID) ([]*models.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) LatestReport(ctx context.Context, ownerID uuid.UUID) (*models.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE owner_id = $1 ORDER BY created_at DESC LIMIT 1`, ownerID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("latest report: %w", err)
	}
	return r, err
}

// SaveMergedReport writes a merge result atomically. The report row is locked
// and its updated_at compared with update.ExpectedUpdatedAt; on mismatch
// nothing is written and ErrConcurrentUpdate is returned.
func (s *PostgresStore) SaveMergedReport(ctx context.Context, update MergedReportUpdate) (*models.Report, error) {
	raw, err := json.Marshal(update.Analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}

	var saved *models.Report
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var (
			ownerID   uuid.UUID
			current   []uuid.UUID
			updatedAt time.Time
		)
		err := tx.QueryRow(ctx,
			`SELECT owner_id, statement_ids, updated_at FROM reports WHERE id = $1 FOR UPDATE`,
			update.ReportID).Scan(&ownerID, &current, &updatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock report: %w", err)
		}
		if ownerID != update.OwnerID {
			return ErrNotFound
		}
		if !updatedAt.Equal(update.ExpectedUpdatedAt) {
			return ErrConcurrentUpdate
		}

		ids := UnionIDs(current, update.AddStatementIDs)
		saved, err = scanReport(tx.QueryRow(ctx,
			`UPDATE reports SET analysis = $2, statement_ids = $3, updated_at = NOW()
			 WHERE id = $1
			 RETURNING `+reportColumns, update.ReportID, raw, ids))
		if err != nil {
			return fmt.Errorf("update report: %w", err)
		}

		_, err = insertSnapshots(ctx, tx, update.OwnerID, update.ReportID, update.Snapshots)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// --- Monthly snapshots ---

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// insertSnapshots appends rows, silently skipping months that already have a
// row for (owner, report). Returns the number of rows inserted.
func insertSnapshots(ctx context.Context, db execer, ownerID, reportID uuid.UUID, snapshots []models.MonthlySnapshot) (int, error) {
	inserted := 0
	for _, m := range snapshots {
		tag, err := db.Exec(ctx,
			`INSERT INTO monthly_snapshots (id, owner_id, report_id, month, month_name, beginning_balance,
			   ending_balance, total_deposits, total_withdrawals, negative_days, average_daily_balance, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			 ON CONFLICT (owner_id, report_id, month) DO NOTHING`,
			uuid.New(), ownerID, reportID, m.Month, m.MonthName, m.BeginningBalance, m.EndingBalance,
			m.TotalDeposits, m.TotalWithdrawals, m.NegativeDays, m.AverageDailyBalance)
		if err != nil {
			return inserted, fmt.Errorf("insert snapshot %s: %w", m.Month, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) AppendMonthlySnapshots(ctx context.Context, ownerID, reportID uuid.UUID, snapshots []models.MonthlySnapshot) (int, error) {
	return insertSnapshots(ctx, s.pool, ownerID, reportID, snapshots)
}

func (s *PostgresStore) ListSnapshotMonths(ctx context.Context, ownerID, reportID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT month FROM monthly_snapshots WHERE owner_id = $1 AND report_id = $2 ORDER BY month`,
		ownerID, reportID)
	if err != nil {
		return nil, fmt.Errorf("list snapshot months: %w", err)
	}
	months, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan snapshot month: %w", err)
	}
	return months, nil
}

func (s *PostgresStore) ListSnapshotsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.MonthlySnapshotRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, report_id, month, month_name, beginning_balance, ending_balance,
		   total_deposits, total_withdrawals, negative_days, average_daily_balance, created_at
		 FROM monthly_snapshots WHERE owner_id = $1 ORDER BY month DESC, created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := []*models.MonthlySnapshotRow{}
	for rows.Next() {
		var r models.MonthlySnapshotRow
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.ReportID, &r.Month, &r.MonthName, &r.BeginningBalance,
			&r.EndingBalance, &r.TotalDeposits, &r.TotalWithdrawals, &r.NegativeDays,
			&r.AverageDailyBalance, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// --- Leads ---

const leadColumns = `id, email, business_name, phone, source, status, analysis_completed, created_at, updated_at`

func scanLead(row pgx.Row) (*models.Lead, error) {
	var l models.Lead
	err := row.Scan(&l.ID, &l.Email, &l.BusinessName, &l.Phone, &l.Source, &l.Status,
		&l.AnalysisCompleted, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (id, email, business_name, phone, source, status, analysis_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		lead.ID, strings.ToLower(lead.Email), lead.BusinessName, lead.Phone, lead.Source, lead.Status,
		lead.AnalysisCompleted, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, err
}

func (s *PostgresStore) GetLeadByEmail(ctx context.Context, email string) (*models.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE email = $1`, strings.ToLower(email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get lead by email: %w", err)
	}
	return l, err
}

func (s *PostgresStore) MarkLeadAnalysisCompleted(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`UPDATE leads SET analysis_completed = TRUE, updated_at = NOW() WHERE id = $1 RETURNING `+leadColumns, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("mark lead analysis completed: %w", err)
	}
	return l, err
}

func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status string) (*models.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx,
		`UPDATE leads SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+leadColumns, id, status))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("update lead status: %w", err)
	}
	return l, err
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
