package models

// AnalysisResult is the structured financial analysis of one merchant over one
// or more calendar months. JSON field names are part of the API contract and
// are consumed as-is by the dashboard and snapshot history.
type AnalysisResult struct {
	BusinessName          string                 `json:"businessName"`
	AccountNumber         string                 `json:"accountNumber"`
	BankName              string                 `json:"bankName"`
	PeriodCovered         Period                 `json:"periodCovered"`
	MonthlyData           []MonthlySnapshot      `json:"monthlyData"`
	RevenueAnalysis       *RevenueAnalysis       `json:"revenueAnalysis"`
	ExpenseAnalysis       *ExpenseAnalysis       `json:"expenseAnalysis"`
	DebtObligations       *DebtObligations       `json:"debtObligations"`
	CashFlowHealth        *CashFlowHealth        `json:"cashFlowHealth"`
	FundabilityAssessment *FundabilityAssessment `json:"fundabilityAssessment"`
	RedFlags              []RedFlag              `json:"redFlags"`
	Insights              []Insight              `json:"insights"`
	Summary               string                 `json:"summary"`
}

// Period is the span of months an analysis covers.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MonthlySnapshot is one month of aggregated balance and flow figures.
// Month is always formatted YYYY-MM.
type MonthlySnapshot struct {
	Month               string  `db:"month"                 json:"month"`
	MonthName           string  `db:"month_name"            json:"monthName"`
	BeginningBalance    float64 `db:"beginning_balance"     json:"beginningBalance"`
	EndingBalance       float64 `db:"ending_balance"        json:"endingBalance"`
	TotalDeposits       float64 `db:"total_deposits"        json:"totalDeposits"`
	TotalWithdrawals    float64 `db:"total_withdrawals"     json:"totalWithdrawals"`
	NegativeDays        int     `db:"negative_days"         json:"negativeDays"`
	AverageDailyBalance float64 `db:"average_daily_balance" json:"averageDailyBalance"`
}

type RevenueAnalysis struct {
	EstimatedMonthlyRevenue float64  `json:"estimatedMonthlyRevenue"`
	RevenueGrowthPercent    float64  `json:"revenueGrowthPercent"`
	PrimaryRevenueSources   []string `json:"primaryRevenueSources"`
	RevenueConsistency      string   `json:"revenueConsistency"`
}

type ExpenseAnalysis struct {
	Categories             map[string]float64 `json:"categories"`
	TotalMonthlyExpenses   float64            `json:"totalMonthlyExpenses"`
	LargestExpenseCategory string             `json:"largestExpenseCategory"`
}

// DebtObligations lists recurring daily-debit financing positions (MCA style).
type DebtObligations struct {
	IdentifiedMCAPositions      []MCAPosition `json:"identifiedMCAPositions"`
	TotalDailyDebtPayments      float64       `json:"totalDailyDebtPayments"`
	EstimatedMonthlyDebtService float64       `json:"estimatedMonthlyDebtService"`
}

type MCAPosition struct {
	Lender                string  `json:"lender"`
	EstimatedDailyPayment float64 `json:"estimatedDailyPayment"`
	Status                string  `json:"status"`
}

type CashFlowHealth struct {
	Score              int     `json:"score"`
	Rating             string  `json:"rating"`
	OverdraftFrequency string  `json:"overdraftFrequency"`
	TotalOverdraftFees float64 `json:"totalOverdraftFees"`
	CashFlowTiming     string  `json:"cashFlowTiming"`
}

type FundabilityAssessment struct {
	Score                    int      `json:"score"`
	Rating                   string   `json:"rating"`
	EstimatedFundingCapacity float64  `json:"estimatedFundingCapacity"`
	RecommendedProducts      []string `json:"recommendedProducts"`
	Strengths                []string `json:"strengths"`
	Concerns                 []string `json:"concerns"`
	Recommendations          []string `json:"recommendations"`
}

// RedFlag is a risk indicator found in the statements. Amount is nil when the
// flag has no associated figure.
type RedFlag struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    string   `json:"severity"`
	Amount      *float64 `json:"amount"`
}

type Insight struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Actionable  bool   `json:"actionable"`
	Priority    string `json:"priority"`
}
