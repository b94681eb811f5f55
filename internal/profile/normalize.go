// Package profile maps raw intake payloads onto the canonical
// ApplicantProfile. Every known input shape funnels through Normalize so the
// defaulting rules live in exactly one place.
package profile

import (
	"strconv"
	"strings"

	"lending-workers/internal/models"
)

// Field aliases accepted from the intake surface, in lookup priority order.
// Older clients submit legacy names; step-based submissions nest fields under
// "step1".."stepN" maps and are flattened before lookup.
var (
	requestedAmountKeys = []string{"requestedAmount", "loanAmount", "amountRequested", "fundingAmount"}
	monthlyRevenueKeys  = []string{"monthlyRevenue", "averageMonthlyRevenue", "monthlyIncome"}
	annualRevenueKeys   = []string{"annualRevenue", "yearlyRevenue", "grossAnnualRevenue"}
	countryKeys         = []string{"country", "businessCountry"}
	industryKeys        = []string{"industry", "industryType", "businessType"}
	timeInBusinessKeys  = []string{"timeInBusinessMonths", "monthsInBusiness"}
	yearsInBusinessKeys = []string{"yearsInBusiness", "timeInBusinessYears"}
	useOfFundsKeys      = []string{"useOfFunds", "purposeOfFunds", "loanPurpose"}
	creditScoreKeys     = []string{"creditScore", "ficoScore"}
	creditBandKeys      = []string{"creditScoreBand", "creditRating"}
)

// Normalize maps a raw intake payload (flat or step-based) to the canonical
// profile. Defaulting rules:
//   - monthly revenue is canonical; annual revenue is divided by 12 only when
//     no monthly figure is present
//   - an absent or unrecognized country defaults to US (the primary market)
//   - a numeric credit score is converted to a band; an explicit band wins
//   - absent numeric fields stay zero and are validated downstream, never
//     silently substituted
func Normalize(raw map[string]interface{}) *models.ApplicantProfile {
	flat := flatten(raw)

	p := &models.ApplicantProfile{
		RequestedAmount: int64(lookupNumber(flat, requestedAmountKeys)),
		MonthlyRevenue:  lookupNumber(flat, monthlyRevenueKeys),
		AnnualRevenue:   lookupNumber(flat, annualRevenueKeys),
		Country:         normalizeCountry(lookupString(flat, countryKeys)),
		Industry:        strings.ToLower(strings.TrimSpace(lookupString(flat, industryKeys))),
		UseOfFunds:      lookupString(flat, useOfFundsKeys),
	}

	if p.MonthlyRevenue == 0 && p.AnnualRevenue > 0 {
		p.MonthlyRevenue = p.AnnualRevenue / 12.0
	}

	if months := lookupNumber(flat, timeInBusinessKeys); months > 0 {
		p.TimeInBusinessMonths = int(months)
	} else if years := lookupNumber(flat, yearsInBusinessKeys); years > 0 {
		p.TimeInBusinessMonths = int(years * 12)
	}

	if band := lookupString(flat, creditBandKeys); band != "" {
		p.CreditScoreBand = strings.ToLower(band)
	} else if score := lookupNumber(flat, creditScoreKeys); score > 0 {
		p.CreditScoreBand = creditBand(score)
	}

	return p
}

// flatten merges stepN sub-maps into a single lookup map. Top-level fields win
// over step fields with the same name; earlier steps win over later ones.
func flatten(raw map[string]interface{}) map[string]interface{} {
	flat := make(map[string]interface{}, len(raw))
	for i := 1; i <= 10; i++ {
		stepKey := "step" + strconv.Itoa(i)
		step, ok := raw[stepKey].(map[string]interface{})
		if !ok {
			continue
		}
		for k, v := range step {
			if _, exists := flat[k]; !exists {
				flat[k] = v
			}
		}
	}
	for k, v := range raw {
		if strings.HasPrefix(k, "step") {
			continue
		}
		flat[k] = v
	}
	return flat
}

func lookupString(flat map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if s, ok := flat[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func lookupNumber(flat map[string]interface{}, keys []string) float64 {
	for _, key := range keys {
		if n, ok := toNumber(flat[key]); ok {
			return n
		}
	}
	return 0
}

// toNumber accepts JSON numbers and the currency-formatted strings older
// intake forms submit ("$30,000").
func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		cleaned := strings.TrimSpace(n)
		cleaned = strings.ReplaceAll(cleaned, "$", "")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if cleaned == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}

func normalizeCountry(s string) models.Country {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "US", "USA", "UNITED STATES", "UNITED STATES OF AMERICA":
		return models.CountryUS
	case "CA", "CAN", "CANADA":
		return models.CountryCA
	case "INTL", "INTERNATIONAL":
		return models.CountryINTL
	case "":
		return models.CountryUS
	default:
		return models.CountryINTL
	}
}

func creditBand(score float64) string {
	switch {
	case score >= 720:
		return "excellent"
	case score >= 680:
		return "good"
	case score >= 620:
		return "fair"
	default:
		return "poor"
	}
}
