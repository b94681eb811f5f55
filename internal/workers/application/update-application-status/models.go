package updateapplicationstatus

import "lending-workers/internal/models"

type Input struct {
	ApplicationID string                   `json:"applicationId"`
	NewStatus     models.ApplicationStatus `json:"newStatus"`
	Actor         string                   `json:"actor,omitempty"`
	Reason        string                   `json:"reason,omitempty"`
}

type Output struct {
	ApplicationID  string                   `json:"applicationId"`
	PreviousStatus models.ApplicationStatus `json:"previousStatus"`
	NewStatus      models.ApplicationStatus `json:"newStatus"`
	UpdatedAt      string                   `json:"updatedAt"`
}
