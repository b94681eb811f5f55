package matchlenderproducts

import (
	"lending-workers/internal/matching"
	"lending-workers/internal/models"
)

type Input struct {
	ApplicationID   string                 `json:"applicationId"`
	ApplicationData map[string]interface{} `json:"applicationData"`
}

// Output carries the ranked match list back to the process. Ineligible
// products are included with their rejection reasons so downstream steps can
// explain the outcome to the applicant.
type Output struct {
	ApplicationID string                   `json:"applicationId"`
	Profile       *models.ApplicantProfile `json:"profile"`
	Matches       []matching.MatchResult   `json:"matches"`
	EligibleCount int                      `json:"eligibleCount"`
	TopProductID  string                   `json:"topProductId,omitempty"`
	MatchedAt     string                   `json:"matchedAt"`
}
