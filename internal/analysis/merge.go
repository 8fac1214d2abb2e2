// Package analysis combines AI-derived financial analyses of a business into
// one consistent view over time.
package analysis

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/todaycapital/statementlens/pkg/models"
)

// ErrMergeInput is matched by every *MergeInputError.
var ErrMergeInput = errors.New("malformed analysis input")

// MergeInputError reports an analysis that is missing a section every
// downstream consumer depends on.
type MergeInputError struct {
	Which   string // "existing" or "new"
	Section string
}

func (e *MergeInputError) Error() string {
	return fmt.Sprintf("%s analysis is missing %s", e.Which, e.Section)
}

func (e *MergeInputError) Unwrap() error { return ErrMergeInput }

// Validate returns a *MergeInputError naming the first missing section of a.
func Validate(a models.AnalysisResult) error {
	return validate("new", a)
}

func validate(which string, a models.AnalysisResult) error {
	switch {
	case a.RevenueAnalysis == nil:
		return &MergeInputError{Which: which, Section: "revenueAnalysis"}
	case a.ExpenseAnalysis == nil:
		return &MergeInputError{Which: which, Section: "expenseAnalysis"}
	case a.DebtObligations == nil:
		return &MergeInputError{Which: which, Section: "debtObligations"}
	case a.CashFlowHealth == nil:
		return &MergeInputError{Which: which, Section: "cashFlowHealth"}
	case a.FundabilityAssessment == nil:
		return &MergeInputError{Which: which, Section: "fundabilityAssessment"}
	}
	return nil
}

// Merge combines a stored analysis with one freshly extracted from new files
// only. Existing months, identity fields, red flags and insights win ties;
// the qualitative sections and the summary come from next. Monthly revenue is
// recomputed over the merged months.
//
// Merge has no side effects and shares no slices or maps with its inputs.
// Callers must hold the report's lock for the whole read-merge-write cycle.
func Merge(existing, next models.AnalysisResult) (models.AnalysisResult, error) {
	if err := validate("existing", existing); err != nil {
		return models.AnalysisResult{}, err
	}
	if err := validate("new", next); err != nil {
		return models.AnalysisResult{}, err
	}

	months := mergeMonths(existing.MonthlyData, next.MonthlyData)

	period := models.Period{
		Start: existing.PeriodCovered.Start,
		End:   next.PeriodCovered.End,
	}
	if len(months) > 0 {
		period.Start = months[0].Month
		period.End = months[len(months)-1].Month
	}

	revenue := *next.RevenueAnalysis
	revenue.PrimaryRevenueSources = slices.Clone(revenue.PrimaryRevenueSources)
	revenue.EstimatedMonthlyRevenue = averageDeposits(months)

	return models.AnalysisResult{
		BusinessName:          firstPresent(existing.BusinessName, next.BusinessName),
		AccountNumber:         firstPresent(existing.AccountNumber, next.AccountNumber),
		BankName:              firstPresent(existing.BankName, next.BankName),
		PeriodCovered:         period,
		MonthlyData:           months,
		RevenueAnalysis:       &revenue,
		ExpenseAnalysis:       cloneExpenses(next.ExpenseAnalysis),
		DebtObligations:       cloneDebt(next.DebtObligations),
		CashFlowHealth:        ptr(*next.CashFlowHealth),
		FundabilityAssessment: cloneFundability(next.FundabilityAssessment),
		RedFlags:              dedupe(existing.RedFlags, next.RedFlags, redFlagKey, cloneRedFlag),
		Insights:              dedupe(existing.Insights, next.Insights, insightKey, identity[models.Insight]),
		Summary:               next.Summary,
	}, nil
}

// mergeMonths keeps every existing month and appends new months not already
// present. The result is sorted by month; YYYY-MM sorts correctly as a string.
func mergeMonths(existing, next []models.MonthlySnapshot) []models.MonthlySnapshot {
	seen := make(map[string]struct{}, len(existing))
	merged := make([]models.MonthlySnapshot, 0, len(existing)+len(next))
	for _, m := range existing {
		seen[m.Month] = struct{}{}
		merged = append(merged, m)
	}
	for _, m := range next {
		if _, ok := seen[m.Month]; ok {
			continue
		}
		merged = append(merged, m)
	}
	slices.SortStableFunc(merged, func(a, b models.MonthlySnapshot) int {
		return strings.Compare(a.Month, b.Month)
	})
	return merged
}

func averageDeposits(months []models.MonthlySnapshot) float64 {
	if len(months) == 0 {
		return 0
	}
	var total float64
	for _, m := range months {
		total += m.TotalDeposits
	}
	return total / float64(len(months))
}

// dedupe concatenates a and b, keeping the first element for each key.
func dedupe[T any, K comparable](a, b []T, key func(T) K, clone func(T) T) []T {
	seen := make(map[K]struct{}, len(a)+len(b))
	out := make([]T, 0, len(a)+len(b))
	for _, list := range [][]T{a, b} {
		for _, v := range list {
			k := key(v)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, clone(v))
		}
	}
	return out
}

type flagKey struct{ typ, description string }

func redFlagKey(f models.RedFlag) flagKey { return flagKey{f.Type, f.Description} }

func insightKey(i models.Insight) string { return i.Title }

func firstPresent(preferred, fallback string) string {
	if strings.TrimSpace(preferred) != "" {
		return preferred
	}
	return fallback
}

func cloneRedFlag(f models.RedFlag) models.RedFlag {
	if f.Amount != nil {
		f.Amount = ptr(*f.Amount)
	}
	return f
}

func cloneExpenses(e *models.ExpenseAnalysis) *models.ExpenseAnalysis {
	out := *e
	out.Categories = maps.Clone(e.Categories)
	return &out
}

func cloneDebt(d *models.DebtObligations) *models.DebtObligations {
	out := *d
	out.IdentifiedMCAPositions = slices.Clone(d.IdentifiedMCAPositions)
	return &out
}

func cloneFundability(f *models.FundabilityAssessment) *models.FundabilityAssessment {
	out := *f
	out.RecommendedProducts = slices.Clone(f.RecommendedProducts)
	out.Strengths = slices.Clone(f.Strengths)
	out.Concerns = slices.Clone(f.Concerns)
	out.Recommendations = slices.Clone(f.Recommendations)
	return &out
}

func identity[T any](v T) T { return v }

func ptr[T any](v T) *T { return &v }
