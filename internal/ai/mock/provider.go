package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/todaycapital/statementlens/internal/ai"
	"github.com/todaycapital/statementlens/pkg/models"
)

// MockProvider satisfies models.Extractor for testing.
type MockProvider struct {
	Name_       string
	ExtractFunc func(ctx context.Context, files []models.StatementFile) (models.AnalysisResult, error)

	mu    sync.Mutex
	calls [][]models.StatementFile
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Extract(ctx context.Context, files []models.StatementFile) (models.AnalysisResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, files)
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, files)
	}
	return models.AnalysisResult{}, nil
}

// Calls returns the file batches passed to Extract, in call order.
func (m *MockProvider) Calls() [][]models.StatementFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]models.StatementFile, len(m.calls))
	copy(out, m.calls)
	return out
}

// NewMockProvider returns a MockProvider that answers every batch with
// SampleAnalysis for the given months.
func NewMockProvider(months ...string) *MockProvider {
	if len(months) == 0 {
		months = []string{"2024-01"}
	}
	return &MockProvider{
		Name_: "mock",
		ExtractFunc: func(_ context.Context, files []models.StatementFile) (models.AnalysisResult, error) {
			if err := ai.CheckFiles(files); err != nil {
				return models.AnalysisResult{}, ai.Fail("mock", err)
			}
			return SampleAnalysis(months...), nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		ExtractFunc: func(_ context.Context, _ []models.StatementFile) (models.AnalysisResult, error) {
			return models.AnalysisResult{}, err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		ExtractFunc: func(ctx context.Context, _ []models.StatementFile) (models.AnalysisResult, error) {
			<-ctx.Done()
			return models.AnalysisResult{}, ai.Fail("mock-timeout", fmt.Errorf("%w: %v", ai.ErrInferenceTimeout, ctx.Err()))
		},
	}
}

// SampleAnalysis builds a complete analysis covering months, with deposits of
// 10000 per month.
func SampleAnalysis(months ...string) models.AnalysisResult {
	data := make([]models.MonthlySnapshot, 0, len(months))
	for _, m := range months {
		data = append(data, models.MonthlySnapshot{
			Month:               m,
			MonthName:           m,
			BeginningBalance:    5000,
			EndingBalance:       6000,
			TotalDeposits:       10000,
			TotalWithdrawals:    9000,
			AverageDailyBalance: 5500,
		})
	}

	var period models.Period
	if len(months) > 0 {
		period = models.Period{Start: months[0], End: months[len(months)-1]}
	}

	return models.AnalysisResult{
		BusinessName:  "Acme Bakery LLC",
		AccountNumber: "4821",
		BankName:      "First National",
		PeriodCovered: period,
		MonthlyData:   data,
		RevenueAnalysis: &models.RevenueAnalysis{
			EstimatedMonthlyRevenue: 10000,
			PrimaryRevenueSources:   []string{"credit card processing"},
			RevenueConsistency:      "high",
		},
		ExpenseAnalysis: &models.ExpenseAnalysis{
			Categories:             map[string]float64{"payroll": 4000, "rent": 2000},
			TotalMonthlyExpenses:   9000,
			LargestExpenseCategory: "payroll",
		},
		DebtObligations: &models.DebtObligations{},
		CashFlowHealth: &models.CashFlowHealth{
			Score:  72,
			Rating: "Good",
		},
		FundabilityAssessment: &models.FundabilityAssessment{
			Score:  68,
			Rating: "Fair",
		},
		RedFlags: []models.RedFlag{},
		Insights: []models.Insight{{Category: "Revenue", Title: "Steady deposits", Priority: "low"}},
		Summary:  "Mock analysis summary for testing",
	}
}

// Compile-time check that MockProvider implements Extractor.
var _ models.Extractor = (*MockProvider)(nil)
