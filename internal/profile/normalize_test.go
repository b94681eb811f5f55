package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lending-workers/internal/models"
)

func TestNormalize_FlatPayload(t *testing.T) {
	p := Normalize(map[string]interface{}{
		"requestedAmount": float64(30000),
		"monthlyRevenue":  float64(8000),
		"country":         "US",
		"industry":        "Retail",
		"useOfFunds":      "inventory purchase",
		"creditScore":     float64(705),
	})

	assert.Equal(t, int64(30000), p.RequestedAmount)
	assert.Equal(t, 8000.0, p.MonthlyRevenue)
	assert.Equal(t, models.CountryUS, p.Country)
	assert.Equal(t, "retail", p.Industry)
	assert.Equal(t, "inventory purchase", p.UseOfFunds)
	assert.Equal(t, "good", p.CreditScoreBand)
}

func TestNormalize_StepBasedPayload(t *testing.T) {
	p := Normalize(map[string]interface{}{
		"step1": map[string]interface{}{
			"loanAmount": float64(50000),
			"country":    "Canada",
		},
		"step2": map[string]interface{}{
			"annualRevenue":   float64(240000),
			"yearsInBusiness": float64(3),
		},
	})

	assert.Equal(t, int64(50000), p.RequestedAmount)
	assert.Equal(t, models.CountryCA, p.Country)
	assert.Equal(t, 20000.0, p.MonthlyRevenue) // derived from annual
	assert.Equal(t, 36, p.TimeInBusinessMonths)
}

func TestNormalize_LegacyAliasesAndCurrencyStrings(t *testing.T) {
	p := Normalize(map[string]interface{}{
		"fundingAmount":         "$25,000",
		"averageMonthlyRevenue": "12,500",
		"businessType":          "Construction",
	})

	assert.Equal(t, int64(25000), p.RequestedAmount)
	assert.Equal(t, 12500.0, p.MonthlyRevenue)
	assert.Equal(t, "construction", p.Industry)
}

func TestNormalize_MonthlyRevenueWinsOverAnnual(t *testing.T) {
	p := Normalize(map[string]interface{}{
		"monthlyRevenue": float64(10000),
		"annualRevenue":  float64(60000),
	})

	assert.Equal(t, 10000.0, p.MonthlyRevenue)
}

func TestNormalize_TopLevelFieldWinsOverStep(t *testing.T) {
	p := Normalize(map[string]interface{}{
		"requestedAmount": float64(40000),
		"step1": map[string]interface{}{
			"requestedAmount": float64(10000),
		},
	})

	assert.Equal(t, int64(40000), p.RequestedAmount)
}

func TestNormalize_CountryDefaults(t *testing.T) {
	assert.Equal(t, models.CountryUS, Normalize(map[string]interface{}{}).Country)
	assert.Equal(t, models.CountryINTL, Normalize(map[string]interface{}{"country": "Germany"}).Country)
	assert.Equal(t, models.CountryUS, Normalize(map[string]interface{}{"country": "United States"}).Country)
}

func TestNormalize_MissingAmountStaysZero(t *testing.T) {
	// Zero is passed through; the matcher is responsible for rejecting it.
	p := Normalize(map[string]interface{}{"monthlyRevenue": float64(5000)})
	assert.Equal(t, int64(0), p.RequestedAmount)
}

func TestNormalize_ExplicitCreditBandWinsOverScore(t *testing.T) {
	p := Normalize(map[string]interface{}{
		"creditScoreBand": "Fair",
		"creditScore":     float64(760),
	})
	assert.Equal(t, "fair", p.CreditScoreBand)
}
