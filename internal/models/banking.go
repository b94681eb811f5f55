package models

// CashFlowTrend classifies the direction of the running balance over the
// statement period.
type CashFlowTrend string

const (
	TrendImproving CashFlowTrend = "improving"
	TrendStable    CashFlowTrend = "stable"
	TrendDeclining CashFlowTrend = "declining"
)

// RiskSeverity grades a risk factor.
type RiskSeverity string

const (
	SeverityLow    RiskSeverity = "low"
	SeverityMedium RiskSeverity = "medium"
	SeverityHigh   RiskSeverity = "high"
)

// Risk factor codes emitted by the banking analyzer.
const (
	RiskNSFActivity              = "nsf_activity"
	RiskLowAverageBalance        = "low_average_balance"
	RiskNegativeCashFlow         = "negative_cash_flow"
	RiskDecliningTrend           = "declining_cash_flow_trend"
	RiskBalanceReconciliation    = "balance_reconciliation_mismatch"
	RiskRevenueInconsistent      = "revenue_inconsistent_with_deposits"
)

// RiskFactor is one rule-based flag on a banking analysis.
type RiskFactor struct {
	Code     string       `json:"code"`
	Severity RiskSeverity `json:"severity"`
	Detail   string       `json:"detail,omitempty"`
}

// BankingAnalysis is the computed financial picture of one bank-statement
// document. A record is only ever persisted for a successful analysis; a
// failed attempt leaves health indicators unset rather than writing a zero
// score.
type BankingAnalysis struct {
	ID               string        `json:"id"`
	ApplicationID    string        `json:"applicationId"`
	DocumentID       string        `json:"documentId"`
	OcrResultID      string        `json:"ocrResultId"`
	BankName         string        `json:"bankName,omitempty"`
	AccountType      string        `json:"accountType,omitempty"`
	OpeningBalance   float64       `json:"openingBalance"`
	ClosingBalance   float64       `json:"closingBalance"`
	AverageBalance   float64       `json:"averageBalance"`
	MinBalance       float64       `json:"minBalance"`
	MaxBalance       float64       `json:"maxBalance"`
	TotalDeposits    float64       `json:"totalDeposits"`
	TotalWithdrawals float64       `json:"totalWithdrawals"`
	TransactionCount int           `json:"transactionCount"`
	DepositCount     int           `json:"depositCount"`
	NetCashFlow      float64       `json:"netCashFlow"`
	CashFlowTrend    CashFlowTrend `json:"cashFlowTrend"`
	HealthScore      int           `json:"healthScore"` // always in [0,100]
	NSFCount         int           `json:"nsfCount"`
	OverdraftCount   int           `json:"overdraftCount"`
	RiskFactors      []RiskFactor  `json:"riskFactors"`
	Recommendations  []string      `json:"recommendations"`
	ProcessingMS     int64         `json:"processingMs"`
	CreatedAt        string        `json:"createdAt,omitempty"`
}
