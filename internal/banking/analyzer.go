// Package banking computes the financial health picture of an OCR'd bank
// statement. Analyze is deterministic for a given input: the same text and
// metadata always produce the same score, counts, and risk factors.
package banking

import (
	"fmt"
	"math"
	"strings"
	"time"

	"lending-workers/internal/common/errors"
	"lending-workers/internal/models"
)

// defaultMinAverageBalance is the floor below which the low_average_balance
// risk factor fires when no configured value is supplied.
const defaultMinAverageBalance = 1000.0

// Health score component weights. Revenue consistency only applies when the
// applicant declared a monthly revenue figure; otherwise its weight folds
// into the cash-flow component.
const (
	weightCashFlow           = 0.35
	weightBalanceStability   = 0.25
	weightNSF                = 0.25
	weightRevenueConsistency = 0.15
)

// DocumentMeta carries the context the analyzer cannot read from the
// statement text itself.
type DocumentMeta struct {
	ApplicationID string
	DocumentID    string
	OcrResultID   string

	// BankName overrides the parsed header when the intake form captured one.
	BankName string

	// DeclaredMonthlyRevenue is the applicant's stated figure; zero disables
	// the revenue-consistency component.
	DeclaredMonthlyRevenue float64

	// MinAverageBalance is the configured risk floor; zero uses the default.
	MinAverageBalance float64
}

var nsfMarkers = []string{"nsf", "non-sufficient", "nonsufficient", "insufficient funds", "returned item", "return item"}

var overdraftMarkers = []string{"overdraft", "od fee", "od charge"}

// Analyze parses the statement text, reconciles balances, and computes the
// health score with its supporting risk factors. Statements whose lines
// cannot be parsed with confidence fail with INSUFFICIENT_DATA rather than
// producing a low-confidence score. A reconciliation mismatch is reported as
// a risk factor, not an error.
func Analyze(ocrText string, meta DocumentMeta) (*models.BankingAnalysis, error) {
	start := time.Now()

	if strings.TrimSpace(ocrText) == "" {
		return nil, errors.NewInsufficientDataError("statement text is empty")
	}

	st, ok := parseStatement(ocrText)
	if !ok {
		return nil, errors.NewInsufficientDataError("no transaction line pattern matched a majority of statement lines")
	}
	if len(st.Transactions) == 0 {
		return nil, errors.NewInsufficientDataError("no transactions could be extracted from the statement")
	}

	analysis := &models.BankingAnalysis{
		ApplicationID: meta.ApplicationID,
		DocumentID:    meta.DocumentID,
		OcrResultID:   meta.OcrResultID,
		BankName:      st.BankName,
		AccountType:   st.AccountType,
	}
	if meta.BankName != "" {
		analysis.BankName = meta.BankName
	}

	series := balanceSeries(st)
	aggregate(analysis, st.Transactions, series)
	countIncidents(analysis, st.Transactions)
	analysis.CashFlowTrend = classifyTrend(series)

	reconciled := reconcile(analysis, st)
	score := healthScore(analysis, series, meta.DeclaredMonthlyRevenue)
	analysis.HealthScore = score.total

	assessRisks(analysis, score, meta, reconciled)

	analysis.ProcessingMS = time.Since(start).Milliseconds()
	return analysis, nil
}

// balanceSeries returns the running balance after each transaction. The
// statement's own balance column is used when a majority of lines carry one;
// otherwise the series is reconstructed from the stated opening balance and
// the signed amounts.
func balanceSeries(st *statementText) []float64 {
	withBalance := 0
	for _, txn := range st.Transactions {
		if txn.Balance != nil {
			withBalance++
		}
	}

	series := make([]float64, len(st.Transactions))
	if withBalance*2 >= len(st.Transactions) {
		running := 0.0
		if st.StatedOpening != nil {
			running = *st.StatedOpening
		} else if first := st.Transactions[0]; first.Balance != nil {
			running = *first.Balance - first.Amount
		}
		for i, txn := range st.Transactions {
			if txn.Balance != nil {
				running = *txn.Balance
			} else {
				running += txn.Amount
			}
			series[i] = running
		}
		return series
	}

	running := 0.0
	if st.StatedOpening != nil {
		running = *st.StatedOpening
	}
	for i, txn := range st.Transactions {
		running += txn.Amount
		series[i] = running
	}
	return series
}

func aggregate(a *models.BankingAnalysis, txns []Transaction, series []float64) {
	a.TransactionCount = len(txns)
	for _, txn := range txns {
		if txn.Amount > 0 {
			a.TotalDeposits += txn.Amount
			a.DepositCount++
		} else {
			a.TotalWithdrawals += -txn.Amount
		}
	}
	a.NetCashFlow = a.TotalDeposits - a.TotalWithdrawals

	a.MinBalance = series[0]
	a.MaxBalance = series[0]
	sum := 0.0
	for _, bal := range series {
		sum += bal
		a.MinBalance = math.Min(a.MinBalance, bal)
		a.MaxBalance = math.Max(a.MaxBalance, bal)
	}
	a.AverageBalance = round2(sum / float64(len(series)))
	a.ClosingBalance = round2(series[len(series)-1])
	a.OpeningBalance = round2(series[0] - txns[0].Amount)
	a.TotalDeposits = round2(a.TotalDeposits)
	a.TotalWithdrawals = round2(a.TotalWithdrawals)
	a.NetCashFlow = round2(a.NetCashFlow)
	a.MinBalance = round2(a.MinBalance)
	a.MaxBalance = round2(a.MaxBalance)
}

func countIncidents(a *models.BankingAnalysis, txns []Transaction) {
	for _, txn := range txns {
		desc := strings.ToLower(txn.Description)
		if containsAny(desc, nsfMarkers) {
			a.NSFCount++
		}
		if containsAny(desc, overdraftMarkers) {
			a.OverdraftCount++
		}
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// reconcile checks opening + net cash flow against the closing balance. The
// stated closing from the statement header wins over the computed series when
// present. Returns false on a mismatch beyond tolerance; the caller records
// the risk factor.
func reconcile(a *models.BankingAnalysis, st *statementText) bool {
	closing := a.ClosingBalance
	if st.StatedClosing != nil {
		closing = *st.StatedClosing
		a.ClosingBalance = round2(closing)
	}
	if st.StatedOpening != nil {
		a.OpeningBalance = round2(*st.StatedOpening)
	}

	expected := a.OpeningBalance + a.NetCashFlow
	discrepancy := math.Abs(expected - closing)
	tolerance := math.Max(5.0, 0.01*math.Abs(closing))
	return discrepancy <= tolerance
}

// classifyTrend fits a least-squares line through the running balance series
// and buckets the slope. The threshold is half a percent of the average
// absolute balance per transaction, so small accounts and large accounts are
// judged on the same relative scale.
func classifyTrend(series []float64) models.CashFlowTrend {
	if len(series) < 3 {
		return models.TrendStable
	}

	n := float64(len(series))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range series {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return models.TrendStable
	}
	slope := (n*sumXY - sumX*sumY) / denom

	avgAbs := 0.0
	for _, y := range series {
		avgAbs += math.Abs(y)
	}
	avgAbs /= n
	if avgAbs == 0 {
		return models.TrendStable
	}

	threshold := 0.005 * avgAbs
	switch {
	case slope > threshold:
		return models.TrendImproving
	case slope < -threshold:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// componentScores holds the per-component sub-scores, each in [0,100].
type componentScores struct {
	cashFlow           int
	balanceStability   int
	nsf                int
	revenueConsistency int
	revenueApplied     bool
	total              int
}

func healthScore(a *models.BankingAnalysis, series []float64, declaredMonthlyRevenue float64) componentScores {
	s := componentScores{
		cashFlow:         cashFlowScore(a),
		balanceStability: stabilityScore(a.AverageBalance, series),
		nsf:              nsfScore(a.NSFCount, a.OverdraftCount),
	}

	weighted := float64(s.balanceStability)*weightBalanceStability + float64(s.nsf)*weightNSF
	if declaredMonthlyRevenue > 0 {
		s.revenueApplied = true
		s.revenueConsistency = revenueConsistencyScore(a.TotalDeposits, declaredMonthlyRevenue)
		weighted += float64(s.cashFlow)*weightCashFlow + float64(s.revenueConsistency)*weightRevenueConsistency
	} else {
		weighted += float64(s.cashFlow) * (weightCashFlow + weightRevenueConsistency)
	}

	s.total = clampScore(int(math.Round(weighted)))
	return s
}

// cashFlowScore bands net cash flow relative to total deposits.
func cashFlowScore(a *models.BankingAnalysis) int {
	if a.TotalDeposits == 0 && a.TotalWithdrawals == 0 {
		return 0
	}
	base := math.Max(a.TotalDeposits, a.TotalWithdrawals)
	ratio := a.NetCashFlow / base
	switch {
	case ratio >= 0.2:
		return 100
	case ratio > 0:
		return 80
	case ratio == 0:
		return 50
	case ratio >= -0.1:
		return 30
	default:
		return 10
	}
}

// stabilityScore bands the coefficient of variation of the running balance.
// A non-positive average balance is the worst case regardless of variance.
func stabilityScore(average float64, series []float64) int {
	if average <= 0 {
		return 0
	}
	var variance float64
	for _, bal := range series {
		d := bal - average
		variance += d * d
	}
	variance /= float64(len(series))
	cv := math.Sqrt(variance) / average
	switch {
	case cv <= 0.15:
		return 100
	case cv <= 0.30:
		return 80
	case cv <= 0.50:
		return 60
	case cv <= 0.75:
		return 40
	default:
		return 20
	}
}

// nsfScore deducts a flat penalty per NSF or overdraft incident.
func nsfScore(nsfCount, overdraftCount int) int {
	return clampScore(100 - 25*(nsfCount+overdraftCount))
}

// revenueConsistencyScore compares statement deposits against the declared
// monthly revenue and bands the relative gap.
func revenueConsistencyScore(totalDeposits, declared float64) int {
	gap := math.Abs(totalDeposits-declared) / declared
	switch {
	case gap <= 0.20:
		return 100
	case gap <= 0.40:
		return 70
	case gap <= 0.60:
		return 40
	default:
		return 20
	}
}

func assessRisks(a *models.BankingAnalysis, score componentScores, meta DocumentMeta, reconciled bool) {
	minAverage := meta.MinAverageBalance
	if minAverage <= 0 {
		minAverage = defaultMinAverageBalance
	}

	if a.NSFCount > 0 {
		severity := models.SeverityMedium
		if a.NSFCount >= 2 {
			severity = models.SeverityHigh
		}
		a.RiskFactors = append(a.RiskFactors, models.RiskFactor{
			Code:     models.RiskNSFActivity,
			Severity: severity,
			Detail:   fmt.Sprintf("%d NSF incident(s) in the statement period", a.NSFCount),
		})
		a.Recommendations = append(a.Recommendations,
			"Request an explanation for NSF activity and consider a shorter funding term")
	}

	if a.AverageBalance < minAverage {
		a.RiskFactors = append(a.RiskFactors, models.RiskFactor{
			Code:     models.RiskLowAverageBalance,
			Severity: models.SeverityMedium,
			Detail:   fmt.Sprintf("average balance %.2f is below the %.2f floor", a.AverageBalance, minAverage),
		})
		a.Recommendations = append(a.Recommendations,
			"Average balance is low; verify the account is the business's primary operating account")
	}

	if a.NetCashFlow < 0 {
		a.RiskFactors = append(a.RiskFactors, models.RiskFactor{
			Code:     models.RiskNegativeCashFlow,
			Severity: models.SeverityHigh,
			Detail:   fmt.Sprintf("net cash flow is %.2f for the period", a.NetCashFlow),
		})
		a.Recommendations = append(a.Recommendations,
			"Withdrawals exceed deposits; request additional statements before approval")
	}

	if a.CashFlowTrend == models.TrendDeclining {
		a.RiskFactors = append(a.RiskFactors, models.RiskFactor{
			Code:     models.RiskDecliningTrend,
			Severity: models.SeverityMedium,
			Detail:   "running balance is trending downward over the statement period",
		})
		a.Recommendations = append(a.Recommendations,
			"Balance trend is declining; request the most recent month's statement")
	}

	if !reconciled {
		a.RiskFactors = append(a.RiskFactors, models.RiskFactor{
			Code:     models.RiskBalanceReconciliation,
			Severity: models.SeverityMedium,
			Detail:   "opening balance plus net cash flow does not match the closing balance",
		})
		a.Recommendations = append(a.Recommendations,
			"Statement totals do not reconcile; the document may be incomplete or OCR may have dropped lines")
	}

	if score.revenueApplied && score.revenueConsistency <= 40 {
		a.RiskFactors = append(a.RiskFactors, models.RiskFactor{
			Code:     models.RiskRevenueInconsistent,
			Severity: models.SeverityMedium,
			Detail: fmt.Sprintf("statement deposits %.2f diverge from declared monthly revenue %.2f",
				a.TotalDeposits, meta.DeclaredMonthlyRevenue),
		})
		a.Recommendations = append(a.Recommendations,
			"Deposits do not support the declared revenue; request supporting documentation")
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
