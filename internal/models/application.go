package models

// ApplicationStatus is the closed set of application lifecycle states.
type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "draft"
	StatusSubmitted   ApplicationStatus = "submitted"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusApproved    ApplicationStatus = "approved"
	StatusSigned      ApplicationStatus = "signed"
	StatusFunded      ApplicationStatus = "funded"
	StatusDeclined    ApplicationStatus = "declined"
	StatusWithdrawn   ApplicationStatus = "withdrawn"
)

// allowedTransitions is the full lifecycle graph. Declined, funded, and
// withdrawn are terminal.
var allowedTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusDraft:       {StatusSubmitted, StatusWithdrawn},
	StatusSubmitted:   {StatusUnderReview, StatusDeclined, StatusWithdrawn},
	StatusUnderReview: {StatusApproved, StatusDeclined, StatusWithdrawn},
	StatusApproved:    {StatusSigned, StatusDeclined, StatusWithdrawn},
	StatusSigned:      {StatusFunded, StatusDeclined},
	StatusFunded:      {},
	StatusDeclined:    {},
	StatusWithdrawn:   {},
}

func (s ApplicationStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Application is the aggregate root for all applicant-facing state. Documents,
// OCR results, banking analyses, and signing jobs are scoped to exactly one
// application.
type Application struct {
	ID              string                 `json:"id"`
	BusinessName    string                 `json:"businessName"`
	ContactEmail    string                 `json:"contactEmail"`
	ContactPhone    string                 `json:"contactPhone,omitempty"`
	Status          ApplicationStatus      `json:"status"`
	ApplicationData map[string]interface{} `json:"applicationData"`
	SigningURL      string                 `json:"signingUrl,omitempty"`
	HealthScore     *int                   `json:"healthScore,omitempty"` // nil until an analysis succeeds
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt"`
}

// ApplicantProfile is the normalized view of an application's financial and
// business attributes used for matching. Derived per request, never persisted.
type ApplicantProfile struct {
	RequestedAmount      int64   `json:"requestedAmount"`
	MonthlyRevenue       float64 `json:"monthlyRevenue"`
	AnnualRevenue        float64 `json:"annualRevenue,omitempty"`
	Country              Country `json:"country"`
	Industry             string  `json:"industry,omitempty"`
	TimeInBusinessMonths int     `json:"timeInBusinessMonths,omitempty"`
	UseOfFunds           string  `json:"useOfFunds,omitempty"`
	CreditScoreBand      string  `json:"creditScoreBand,omitempty"`
}
