package analyzebanking

import "lending-workers/internal/models"

type Input struct {
	ApplicationID          string  `json:"applicationId"`
	DocumentID             string  `json:"documentId"`
	DeclaredMonthlyRevenue float64 `json:"declaredMonthlyRevenue,omitempty"`
}

type Output struct {
	AnalysisID      string               `json:"analysisId"`
	ApplicationID   string               `json:"applicationId"`
	DocumentID      string               `json:"documentId"`
	HealthScore     int                  `json:"healthScore"`
	CashFlowTrend   models.CashFlowTrend `json:"cashFlowTrend"`
	NSFCount        int                  `json:"nsfCount"`
	RiskFactors     []models.RiskFactor  `json:"riskFactors"`
	Recommendations []string             `json:"recommendations"`
	AnalyzedAt      string               `json:"analyzedAt"`
}
