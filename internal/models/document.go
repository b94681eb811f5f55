package models

// DocumentType tags what an uploaded file is supposed to contain.
type DocumentType string

const (
	DocTypeBankStatements   DocumentType = "bank_statements"
	DocTypeTaxReturns       DocumentType = "tax_returns"
	DocTypeDriversLicense   DocumentType = "drivers_license"
	DocTypeVoidedCheck      DocumentType = "voided_check"
	DocTypeBusinessLicense  DocumentType = "business_license"
	DocTypeProofOfOwnership DocumentType = "proof_of_ownership"
)

// DocumentStatus tracks a document through the OCR pipeline.
type DocumentStatus string

const (
	DocStatusUploaded    DocumentStatus = "uploaded"
	DocStatusOCRPending  DocumentStatus = "ocr_pending"
	DocStatusOCRComplete DocumentStatus = "ocr_complete"
	DocStatusOCRFailed   DocumentStatus = "ocr_failed"
)

// Document is an uploaded file owned by exactly one application.
type Document struct {
	ID            string         `json:"id"`
	ApplicationID string         `json:"applicationId"`
	FileName      string         `json:"fileName"`
	FileSize      int64          `json:"fileSize"`
	MimeType      string         `json:"mimeType"`
	DocumentType  DocumentType   `json:"documentType"`
	StorageKey    string         `json:"storageKey"`
	Status        DocumentStatus `json:"status"`
	CreatedAt     string         `json:"createdAt"`
}

// OcrResult holds the provider's extraction for one OCR pass over a document.
// Re-runs create new rows rather than overwriting old ones.
type OcrResult struct {
	ID           string                 `json:"id"`
	DocumentID   string                 `json:"documentId"`
	RawText      string                 `json:"rawText"`
	Fields       map[string]interface{} `json:"fields,omitempty"`
	Confidence   float64                `json:"confidence"`
	Status       string                 `json:"status"`
	ProcessingMS int64                  `json:"processingMs"`
	CreatedAt    string                 `json:"createdAt"`
}
