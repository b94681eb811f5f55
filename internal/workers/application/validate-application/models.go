package validateapplication

type Input struct {
	ApplicationID   string                 `json:"applicationId"`
	ApplicationData map[string]interface{} `json:"applicationData"`
}

type Output struct {
	ApplicationID string   `json:"applicationId"`
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors,omitempty"`
	ValidatedAt   string   `json:"validatedAt"`
}
