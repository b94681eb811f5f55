package synccrmcontact

type Input struct {
	ApplicationID string `json:"applicationId"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	Phone         string `json:"phone,omitempty"`
	BusinessName  string `json:"businessName,omitempty"`
	Stage         string `json:"stage,omitempty"`
}

type Output struct {
	ContactID string `json:"contactId"`
	SyncedAt  string `json:"syncedAt"`
}
