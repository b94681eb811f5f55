package ocrextract

type Input struct {
	DocumentID string `json:"documentId"`
}

type Output struct {
	DocumentID  string  `json:"documentId"`
	OcrResultID string  `json:"ocrResultId"`
	Status      string  `json:"status"`
	Confidence  float64 `json:"confidence"`
	TextLength  int     `json:"textLength"`
	ExtractedAt string  `json:"extractedAt"`
}
