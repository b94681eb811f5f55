package models

// SigningJobStatus tracks an e-signature request. A job transitions exactly
// once from pending to processing to a terminal state; retries create a new
// job rather than resetting a failed one.
type SigningJobStatus string

const (
	SigningPending    SigningJobStatus = "pending"
	SigningProcessing SigningJobStatus = "processing"
	SigningCompleted  SigningJobStatus = "completed"
	SigningFailed     SigningJobStatus = "failed"
)

// InFlight reports whether the job still occupies the per-application slot.
func (s SigningJobStatus) InFlight() bool {
	return s == SigningPending || s == SigningProcessing
}

// SigningJob is an asynchronous e-signature request owned by one application.
type SigningJob struct {
	ID                 string           `json:"id"`
	ApplicationID      string           `json:"applicationId"`
	Status             SigningJobStatus `json:"status"`
	ProviderDocumentID string           `json:"providerDocumentId,omitempty"`
	SigningURL         string           `json:"signingUrl,omitempty"`
	ErrorMessage       string           `json:"errorMessage,omitempty"`
	CreatedAt          string           `json:"createdAt"`
	UpdatedAt          string           `json:"updatedAt"`
}
