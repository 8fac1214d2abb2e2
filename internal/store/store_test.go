package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/todaycapital/statementlens/internal/store"
	"github.com/todaycapital/statementlens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("statementlens_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newUser(t *testing.T, s store.Store) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func newStatement(ownerID uuid.UUID, name string, uploadedAt time.Time) *models.Statement {
	id := uuid.New()
	return &models.Statement{
		ID:         id,
		OwnerID:    ownerID,
		FileName:   name,
		StorageKey: "statements/" + ownerID.String() + "/" + id.String() + ".pdf",
		FileType:   "application/pdf",
		FileSize:   1024,
		UploadedAt: uploadedAt.UTC().Truncate(time.Microsecond),
	}
}

func sampleAnalysis(months ...string) models.AnalysisResult {
	data := make([]models.MonthlySnapshot, 0, len(months))
	for _, m := range months {
		data = append(data, models.MonthlySnapshot{Month: m, MonthName: m, TotalDeposits: 1000, NegativeDays: 2})
	}
	return models.AnalysisResult{
		BusinessName:          "Acme",
		MonthlyData:           data,
		RevenueAnalysis:       &models.RevenueAnalysis{EstimatedMonthlyRevenue: 1000},
		ExpenseAnalysis:       &models.ExpenseAnalysis{Categories: map[string]float64{"rent": 100}},
		DebtObligations:       &models.DebtObligations{},
		CashFlowHealth:        &models.CashFlowHealth{Score: 70},
		FundabilityAssessment: &models.FundabilityAssessment{Score: 65},
		RedFlags:              []models.RedFlag{},
		Insights:              []models.Insight{},
		Summary:               "summary",
	}
}

func newReport(t *testing.T, s store.Store, ownerID uuid.UUID, months ...string) *models.Report {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := sampleAnalysis(months...)
	r := &models.Report{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		StatementIDs: []uuid.UUID{uuid.New()},
		Analysis:     a,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.CreateReport(context.Background(), r, a.MonthlyData))
	return r
}

// --- User Tests ---

func TestUser_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	u := newUser(t, s)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Nil(t, got.BusinessName)

	got, err = s.GetUserByEmail(ctx, strings.ToUpper(u.Email))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestUser_DuplicateEmail(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	u := newUser(t, s)
	dup := *u
	dup.ID = uuid.New()

	err := s.CreateUser(context.Background(), &dup)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUser_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetUser(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUser_UpdateProfile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)

	name := "Acme Bakery"
	got, err := s.UpdateUserProfile(ctx, u.ID, store.ProfileUpdate{BusinessName: &name})
	require.NoError(t, err)
	require.NotNil(t, got.BusinessName)
	assert.Equal(t, name, *got.BusinessName)
	assert.Nil(t, got.Phone)

	phone := "555-0100"
	got, err = s.UpdateUserProfile(ctx, u.ID, store.ProfileUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, name, *got.BusinessName, "unset fields are preserved")
	assert.Equal(t, phone, *got.Phone)

	_, err = s.UpdateUserProfile(ctx, uuid.New(), store.ProfileUpdate{Phone: &phone})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Statement Tests ---

func TestStatements_CreateListGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)

	older := newStatement(u.ID, "jan.pdf", time.Now().Add(-time.Hour))
	newer := newStatement(u.ID, "feb.pdf", time.Now())
	require.NoError(t, s.CreateStatements(ctx, []*models.Statement{older, newer}))

	list, err := s.ListStatements(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "feb.pdf", list[0].FileName, "newest first")

	got, err := s.GetStatement(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.StorageKey, got.StorageKey)
	assert.Equal(t, int64(1024), got.FileSize)
}

func TestStatements_CreateIsAtomic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)

	a := newStatement(u.ID, "a.pdf", time.Now())
	b := newStatement(u.ID, "b.pdf", time.Now())
	b.StorageKey = a.StorageKey

	err := s.CreateStatements(ctx, []*models.Statement{a, b})
	require.ErrorIs(t, err, store.ErrDuplicateKey)

	list, err := s.ListStatements(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStatements_GetByIDsSkipsForeignAndUnknown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	owner := newUser(t, s)
	other := newUser(t, s)

	mine := newStatement(owner.ID, "mine.pdf", time.Now())
	theirs := newStatement(other.ID, "theirs.pdf", time.Now())
	require.NoError(t, s.CreateStatements(ctx, []*models.Statement{mine}))
	require.NoError(t, s.CreateStatements(ctx, []*models.Statement{theirs}))

	got, err := s.GetStatementsByIDs(ctx, owner.ID, []uuid.UUID{mine.ID, theirs.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)

	got, err = s.GetStatementsByIDs(ctx, owner.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStatements_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)

	st := newStatement(u.ID, "jan.pdf", time.Now())
	require.NoError(t, s.CreateStatements(ctx, []*models.Statement{st}))

	require.NoError(t, s.DeleteStatement(ctx, st.ID))
	_, err := s.GetStatement(ctx, st.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteStatement(ctx, st.ID), store.ErrNotFound)
}

// --- Report Tests ---

func TestReport_CreateProjectsSnapshots(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)

	r := newReport(t, s, u.ID, "2024-01", "2024-02")

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.OwnerID)
	assert.Equal(t, r.StatementIDs, got.StatementIDs)
	assert.Equal(t, "Acme", got.Analysis.BusinessName)
	require.NotNil(t, got.Analysis.ExpenseAnalysis)
	assert.Equal(t, 100.0, got.Analysis.ExpenseAnalysis.Categories["rent"])
	assert.True(t, r.UpdatedAt.Equal(got.UpdatedAt))

	months, err := s.ListSnapshotMonths(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-02"}, months)
}

func TestReport_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetReport(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReport_ListAndLatest(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)

	_, err := s.LatestReport(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	first := newReport(t, s, u.ID, "2024-01")
	time.Sleep(5 * time.Millisecond)
	second := newReport(t, s, u.ID, "2024-02")

	list, err := s.ListReports(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	latest, err := s.LatestReport(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestReport_SaveMerged(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)
	r := newReport(t, s, u.ID, "2024-01")

	merged := sampleAnalysis("2024-01", "2024-02")
	merged.Summary = "merged"
	added := uuid.New()

	saved, err := s.SaveMergedReport(ctx, store.MergedReportUpdate{
		ReportID:          r.ID,
		OwnerID:           u.ID,
		ExpectedUpdatedAt: r.UpdatedAt,
		Analysis:          merged,
		AddStatementIDs:   []uuid.UUID{r.StatementIDs[0], added},
		Snapshots:         merged.MonthlyData[1:],
	})
	require.NoError(t, err)
	assert.Equal(t, "merged", saved.Analysis.Summary)
	assert.Equal(t, []uuid.UUID{r.StatementIDs[0], added}, saved.StatementIDs)
	assert.False(t, saved.UpdatedAt.Equal(r.UpdatedAt))

	months, err := s.ListSnapshotMonths(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-02"}, months)
}

func TestReport_SaveMergedStaleVersion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)
	r := newReport(t, s, u.ID, "2024-01")

	update := store.MergedReportUpdate{
		ReportID:          r.ID,
		OwnerID:           u.ID,
		ExpectedUpdatedAt: r.UpdatedAt,
		Analysis:          sampleAnalysis("2024-01", "2024-03"),
		AddStatementIDs:   []uuid.UUID{uuid.New()},
		Snapshots:         []models.MonthlySnapshot{{Month: "2024-03"}},
	}
	_, err := s.SaveMergedReport(ctx, update)
	require.NoError(t, err)

	// Second writer saw the original version.
	update.Snapshots = []models.MonthlySnapshot{{Month: "2024-04"}}
	_, err = s.SaveMergedReport(ctx, update)
	assert.ErrorIs(t, err, store.ErrConcurrentUpdate)

	months, err := s.ListSnapshotMonths(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-03"}, months, "rejected save writes nothing")
}

func TestReport_SaveMergedWrongOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	u := newUser(t, s)
	r := newReport(t, s, u.ID, "2024-01")

	_, err := s.SaveMergedReport(context.Background(), store.MergedReportUpdate{
		ReportID:          r.ID,
		OwnerID:           uuid.New(),
		ExpectedUpdatedAt: r.UpdatedAt,
		Analysis:          sampleAnalysis("2024-01"),
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Snapshot Tests ---

func TestSnapshots_AppendSkipsExistingMonths(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	u := newUser(t, s)
	r := newReport(t, s, u.ID, "2024-01")

	n, err := s.AppendMonthlySnapshots(ctx, u.ID, r.ID, []models.MonthlySnapshot{
		{Month: "2024-01", TotalDeposits: 99999},
		{Month: "2024-02", TotalDeposits: 2000},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := s.ListSnapshotsByOwner(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-02", rows[0].Month, "month descending")
	assert.Equal(t, "2024-01", rows[1].Month)
	assert.Equal(t, 1000.0, rows[1].TotalDeposits, "existing row is never updated")
	assert.Equal(t, 2, rows[1].NegativeDays)
	assert.Equal(t, r.ID, rows[1].ReportID)
}

func TestSnapshots_OwnerScoped(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	a := newUser(t, s)
	b := newUser(t, s)
	newReport(t, s, a.ID, "2024-01")

	rows, err := s.ListSnapshotsByOwner(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// --- Lead Tests ---

func TestLead_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	lead := &models.Lead{
		ID:        uuid.New(),
		Email:     "Owner@Bakery.com",
		Source:    models.LeadSourceOrganic,
		Status:    models.LeadStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateLead(ctx, lead))

	got, err := s.GetLeadByEmail(ctx, "owner@bakery.com")
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
	assert.False(t, got.AnalysisCompleted)

	got, err = s.MarkLeadAnalysisCompleted(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, got.AnalysisCompleted)

	got, err = s.UpdateLeadStatus(ctx, lead.ID, "contacted")
	require.NoError(t, err)
	assert.Equal(t, "contacted", got.Status)

	got, err = s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "contacted", got.Status)
	assert.True(t, got.AnalysisCompleted)

	dup := *lead
	dup.ID = uuid.New()
	assert.ErrorIs(t, s.CreateLead(ctx, &dup), store.ErrDuplicateKey)
}

func TestLead_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := s.GetLead(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.UpdateLeadStatus(ctx, uuid.New(), "contacted")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
