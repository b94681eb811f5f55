// Package matching implements the lender-product eligibility and ranking
// engine. Match is a pure function over its inputs: no storage, no network,
// safe for concurrent use.
package matching

import (
	"math"
	"sort"
	"strings"

	"lending-workers/internal/common/errors"
	"lending-workers/internal/models"
)

// RejectionReason is the fixed vocabulary for failed eligibility filters.
type RejectionReason string

const (
	ReasonInactiveProduct     RejectionReason = "inactive_product"
	ReasonCountryNotServed    RejectionReason = "country_not_served"
	ReasonAmountOutOfRange    RejectionReason = "amount_out_of_range"
	ReasonRevenueBelowMinimum RejectionReason = "revenue_below_minimum"
	ReasonIndustryExcluded    RejectionReason = "industry_excluded"
)

// MatchResult pairs a catalog product with its eligibility outcome. Ineligible
// products are returned too, with one rejection reason per failed filter, so
// the UI can show applicants why a product was excluded.
type MatchResult struct {
	Product          *models.LenderProduct `json:"product"`
	Eligible         bool                  `json:"eligible"`
	Score            float64               `json:"score,omitempty"` // amount-fit, [0,1]
	RejectionReasons []RejectionReason     `json:"rejectionReasons,omitempty"`
}

// Match filters catalog to products the profile is eligible for and ranks
// them. Eligible results come first, ordered by descending amount-fit score
// with deterministic tie-breaks (lower minimum rate, then shorter minimum
// term, then product ID); ineligible results follow in ID order. An empty
// catalog yields an empty result. A profile without a requested amount fails
// fast rather than treating the field as zero, which would claim false
// ineligibility on every product.
func Match(profile *models.ApplicantProfile, catalog []*models.LenderProduct) ([]MatchResult, error) {
	if profile == nil {
		return nil, errors.NewValidationError("profile", "profile is required")
	}
	if profile.RequestedAmount <= 0 {
		return nil, errors.NewValidationError("requestedAmount", "requested amount is required and must be positive")
	}
	if !profile.Country.Valid() {
		return nil, errors.NewValidationError("country", "country must be one of US, CA, INTL")
	}

	results := make([]MatchResult, 0, len(catalog))
	for _, product := range catalog {
		reasons := evaluate(profile, product)
		result := MatchResult{
			Product:          product,
			Eligible:         len(reasons) == 0,
			RejectionReasons: reasons,
		}
		if result.Eligible {
			result.Score = amountFit(profile.RequestedAmount, product)
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Eligible != b.Eligible {
			return a.Eligible
		}
		if !a.Eligible {
			return a.Product.ID < b.Product.ID
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Product.RateMin != b.Product.RateMin {
			return a.Product.RateMin < b.Product.RateMin
		}
		if a.Product.TermMinMonths != b.Product.TermMinMonths {
			return a.Product.TermMinMonths < b.Product.TermMinMonths
		}
		return a.Product.ID < b.Product.ID
	})

	return results, nil
}

// evaluate runs every filter and collects one reason per failure.
func evaluate(profile *models.ApplicantProfile, product *models.LenderProduct) []RejectionReason {
	var reasons []RejectionReason

	if !product.Active {
		reasons = append(reasons, ReasonInactiveProduct)
	}
	if product.Country != models.CountryINTL && product.Country != profile.Country {
		reasons = append(reasons, ReasonCountryNotServed)
	}
	if profile.RequestedAmount < product.AmountMin || profile.RequestedAmount > product.AmountMax {
		reasons = append(reasons, ReasonAmountOutOfRange)
	}
	// A product with no stated threshold imposes no minimum.
	if product.MinMonthlyRevenue > 0 && profile.MonthlyRevenue < float64(product.MinMonthlyRevenue) {
		reasons = append(reasons, ReasonRevenueBelowMinimum)
	}
	if profile.Industry != "" {
		for _, excluded := range product.ExcludedIndustries {
			if strings.EqualFold(excluded, profile.Industry) {
				reasons = append(reasons, ReasonIndustryExcluded)
				break
			}
		}
	}

	return reasons
}

// amountFit scores how close the requested amount sits to the center of the
// product's range: 1 at the midpoint, falling off linearly, clamped to [0,1].
func amountFit(requested int64, product *models.LenderProduct) float64 {
	span := float64(product.AmountMax - product.AmountMin)
	if span == 0 {
		// Degenerate range; eligibility already guarantees an exact hit.
		return 1.0
	}
	fit := 1.0 - math.Abs(float64(requested)-product.AmountMidpoint())/span
	return math.Min(math.Max(fit, 0.0), 1.0)
}
