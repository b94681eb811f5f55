package createsigningrequest

type Input struct {
	ApplicationID string `json:"applicationId"`
	TemplateID    string `json:"templateId,omitempty"`
}

type Output struct {
	SigningJobID string `json:"signingJobId"`
	RequestID    string `json:"requestId"`
	SigningURL   string `json:"signingUrl"`
	CreatedAt    string `json:"createdAt"`
}
